package credentialsrepofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-session/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

type entry struct {
	accessTokens map[string]string // token type to access token
	refreshToken string
	userData     map[string]string
}

// FakeStore is an in-memory credential store. It counts writes so tests can assert
// that a code path left the stored tokens untouched.
type FakeStore struct {
	accounts map[string]*entry
	writes   int
	lock     sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		accounts: make(map[string]*entry),
	}
}

func (fs *FakeStore) get(account credentials.Account) *entry {
	e, ok := fs.accounts[account.Key()]
	if !ok {
		e = &entry{
			accessTokens: make(map[string]string),
			userData:     make(map[string]string),
		}
		fs.accounts[account.Key()] = e
	}
	return e
}

func (fs *FakeStore) PeekAccessToken(_ context.Context, account credentials.Account, tokenType string) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if e, ok := fs.accounts[account.Key()]; ok {
		return e.accessTokens[tokenType], nil
	}
	return "", nil
}

func (fs *FakeStore) SetAccessToken(_ context.Context, account credentials.Account, tokenType, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.writes++
	e := fs.get(account)
	if value == "" {
		delete(e.accessTokens, tokenType)
		return nil
	}
	e.accessTokens[tokenType] = value
	return nil
}

func (fs *FakeStore) GetRefreshToken(_ context.Context, account credentials.Account) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if e, ok := fs.accounts[account.Key()]; ok {
		return e.refreshToken, nil
	}
	return "", nil
}

func (fs *FakeStore) SetRefreshToken(_ context.Context, account credentials.Account, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.writes++
	fs.get(account).refreshToken = value
	return nil
}

func (fs *FakeStore) GetUserData(_ context.Context, account credentials.Account, key string) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if e, ok := fs.accounts[account.Key()]; ok {
		return e.userData[key], nil
	}
	return "", nil
}

func (fs *FakeStore) SetUserData(_ context.Context, account credentials.Account, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.writes++
	fs.get(account).userData[key] = value
	return nil
}

func (fs *FakeStore) RemoveAccount(_ context.Context, account credentials.Account) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.writes++
	delete(fs.accounts, account.Key())
	return nil
}

// Writes returns the number of mutating calls made so far.
func (fs *FakeStore) Writes() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.writes
}
