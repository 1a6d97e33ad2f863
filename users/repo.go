package users

import "context"

// Repo is the local cache of resolved user profiles, keyed by credential account key.
type Repo interface {
	Upsert(ctx context.Context, accountKey string, user User) error
	Delete(ctx context.Context, accountKey string) error
	Get(ctx context.Context, accountKey string) (User, error)
	List(ctx context.Context, offset, limit int) ([]User, error)
}
