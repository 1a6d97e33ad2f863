package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/resource"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ManagerState is the state of the manager's session slot.
type ManagerState int

const (
	NoSession ManagerState = iota
	Acquiring
	Open
)

func (s ManagerState) String() string {
	switch s {
	case Acquiring:
		return "acquiring"
	case Open:
		return "open"
	default:
		return "no_session"
	}
}

// Manager owns the single authoritative session of the process.
//
// GetSession calls are not queued: each call supersedes the acquisition in flight.
// The superseded acquisition's context is cancelled and anything it publishes
// afterwards is dropped, so observers only ever see the active acquisition.
//
// Observers of the stream run while the manager's delivery lock is held; they may
// read Current and State but must not call GetSession or CloseSession synchronously.
type Manager struct {
	opener Opener
	stream *Stream
	logger zerolog.Logger

	deliver sync.Mutex // orders supersession against delivery of published states

	mu         sync.Mutex
	current    *Session
	state      ManagerState
	generation uint64
	terminated bool
	cancel     context.CancelFunc
	acquiring  string
}

type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(opener Opener, options ...ManagerOption) (*Manager, error) {
	if opener == nil {
		return nil, errors.New("[sessions NewManager] opener is required")
	}
	m := &Manager{
		opener: opener,
		stream: resource.NewStream(resource.Pending[Progress, Session]()),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Stream returns the manager's observable stream. It is the same value for the manager's lifetime.
func (m *Manager) Stream() *Stream {
	return m.stream
}

// Current returns the open session, if any.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// AccessToken returns the access token of the open session, or "" when none is open.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}

func (m *Manager) State() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetSession starts a new acquisition, superseding any in flight, and returns the stream.
// silent suppresses the interactive login signal; refresh forces re-acquisition of an open session.
// The acquisition runs on its own goroutine bound to ctx.
func (m *Manager) GetSession(ctx context.Context, silent, refresh bool) *Stream {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.logger.Debug().Str("acquisition", m.acquiring).Msg("superseding session acquisition")
	}
	m.generation++
	gen := m.generation
	m.terminated = false
	m.state = Acquiring
	m.acquiring = uuid.NewString()
	acquisitionID := m.acquiring
	acquireCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	req := OpenRequest{Silent: silent, Refresh: refresh}
	if m.current != nil {
		current := *m.current
		req.Current = &current
	}
	m.mu.Unlock()

	m.stream.Publish(resource.Running[Progress, Session]())
	m.logger.Debug().
		Str("acquisition", acquisitionID).
		Bool("silent", silent).
		Bool("refresh", refresh).
		Msg("session acquisition started")

	go m.run(acquireCtx, gen, acquisitionID, req)
	return m.stream
}

func (m *Manager) run(ctx context.Context, gen uint64, acquisitionID string, req OpenRequest) {
	publish := m.publisher(gen, acquisitionID)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Str("acquisition", acquisitionID).Msg("session opener panicked")
			publish(resource.Fail[Progress, Session](fmt.Errorf("%w: %v", autherrors.ErrInternal, r)))
		}
	}()
	m.opener.Open(ctx, req, publish)
}

func (m *Manager) publisher(gen uint64, acquisitionID string) func(State) {
	return func(st State) {
		m.deliver.Lock()
		defer m.deliver.Unlock()

		m.mu.Lock()
		if gen != m.generation || m.terminated {
			m.mu.Unlock()
			m.logger.Debug().Str("acquisition", acquisitionID).Stringer("state", st).Msg("dropping state from inactive acquisition")
			return
		}
		if st.IsTerminal() {
			m.terminated = true
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
		}
		if session, ok := st.Result(); ok && st.IsSuccess() {
			m.current = &session
		}
		if st.IsTerminal() {
			if m.current != nil {
				m.state = Open
			} else {
				m.state = NoSession
			}
		}
		m.mu.Unlock()

		if st.IsTerminal() {
			m.logger.Info().Str("acquisition", acquisitionID).Stringer("state", st).Msg("session acquisition finished")
		}
		m.stream.Publish(st)
	}
}

// CloseSession closes the open session. It returns false, leaving the stream untouched,
// when no session is open. With logOut the stored credentials are cleared as well.
// Any acquisition in flight is detached. The opener's Close runs outside the delivery
// lock; Pending is not published if a GetSession started while it ran.
func (m *Manager) CloseSession(ctx context.Context, logOut bool) (bool, error) {
	m.deliver.Lock()
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		m.deliver.Unlock()
		return false, nil
	}
	session := *m.current
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.generation++
	gen := m.generation
	m.terminated = true
	m.current = nil
	m.state = NoSession
	m.mu.Unlock()
	m.deliver.Unlock()

	err := m.opener.Close(ctx, session, logOut)

	m.deliver.Lock()
	m.mu.Lock()
	superseded := gen != m.generation
	m.mu.Unlock()
	if !superseded {
		m.stream.Publish(resource.Pending[Progress, Session]())
	}
	m.deliver.Unlock()
	m.logger.Info().Str("account", session.Account.Name).Bool("log_out", logOut).Msg("session closed")
	if err != nil {
		return true, errors.Wrap(err, "Manager.CloseSession")
	}
	return true, nil
}
