package users

import (
	"context"
	"database/sql"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

var _ Repo = (*SQLRepo)(nil)

type profileRow struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	AccountKey string     `bun:"account_key,pk"`
	ID         string     `bun:"id,notnull"`
	Email      string     `bun:"email"`
	Username   string     `bun:"username"`
	FirstName  string     `bun:"first_name"`
	LastName   string     `bun:"last_name"`
	Verified   bool       `bun:"verified,notnull"`
	Roles      []RoleType `bun:"roles,type:json"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
}

func (r *profileRow) user() User {
	return User{
		ID:        r.ID,
		Email:     r.Email,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Verified:  r.Verified,
		Roles:     r.Roles,
		UpdatedAt: r.UpdatedAt,
	}
}

// SQLRepo caches user profiles in a sqlite database.
type SQLRepo struct {
	db *bun.DB
}

// OpenSQLRepo opens (creating if needed) the sqlite profile cache at dsn.
// Use "file::memory:?cache=shared" for a throwaway cache.
func OpenSQLRepo(ctx context.Context, dsn string) (*SQLRepo, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "SQLRepo.Open")
	}
	// sqlite serialises writers; a single connection also keeps in-memory databases alive
	sqldb.SetMaxOpenConns(1)

	repo := &SQLRepo{db: bun.NewDB(sqldb, sqlitedialect.New())}
	if err := repo.migrate(ctx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLRepo) migrate(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*profileRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "SQLRepo.migrate")
	}
	return nil
}

func (r *SQLRepo) Close() error {
	return r.db.Close()
}

func (r *SQLRepo) Upsert(ctx context.Context, accountKey string, user User) error {
	row := &profileRow{
		AccountKey: accountKey,
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Verified:   user.Verified,
		Roles:      user.Roles,
		UpdatedAt:  user.UpdatedAt,
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (account_key) DO UPDATE").
		Set("id = EXCLUDED.id").
		Set("email = EXCLUDED.email").
		Set("username = EXCLUDED.username").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Set("verified = EXCLUDED.verified").
		Set("roles = EXCLUDED.roles").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "SQLRepo.Upsert")
	}
	return nil
}

func (r *SQLRepo) Delete(ctx context.Context, accountKey string) error {
	res, err := r.db.NewDelete().
		Model((*profileRow)(nil)).
		Where("account_key = ?", accountKey).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "SQLRepo.Delete")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return autherrors.ErrNotFound
	}
	return nil
}

func (r *SQLRepo) Get(ctx context.Context, accountKey string) (User, error) {
	row := new(profileRow)
	err := r.db.NewSelect().
		Model(row).
		Where("account_key = ?", accountKey).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, autherrors.ErrNotFound
	}
	if err != nil {
		return User{}, errors.Wrap(err, "SQLRepo.Get")
	}
	return row.user(), nil
}

func (r *SQLRepo) List(ctx context.Context, offset, limit int) ([]User, error) {
	var rows []profileRow
	q := r.db.NewSelect().
		Model(&rows).
		OrderExpr("id ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	} else {
		q = q.Limit(-1) // sqlite rejects OFFSET without LIMIT
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "SQLRepo.List")
	}
	out := make([]User, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].user())
	}
	return out, nil
}
