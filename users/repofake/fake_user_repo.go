package fakeuserrepo

import (
	"context"
	"sort"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[string]users.User // account key to user
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]users.User),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, accountKey string, user users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.users[accountKey] = user
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, accountKey string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[accountKey]; !ok {
		return autherrors.ErrNotFound
	}
	delete(ur.users, accountKey)
	return nil
}

func (ur *FakeUserRepo) Get(_ context.Context, accountKey string) (users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[accountKey]
	if !ok {
		return users.User{}, autherrors.ErrNotFound
	}
	return user, nil
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) ([]users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]users.User, 0, len(ur.users))
	for _, v := range ur.users {
		userList = append(userList, v)
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].ID < userList[j].ID
	})

	if offset >= len(userList) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(userList) {
		end = len(userList)
	}
	return userList[offset:end], nil
}
