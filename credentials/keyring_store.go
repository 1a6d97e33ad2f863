package credentials

import (
	"context"
	"strings"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
)

var _ Store = (*KeyringStore)(nil)

// KeyringStore keeps credentials in the operating system keyring
// (Keychain, Secret Service, Windows Credential Manager, or an encrypted file).
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyringStore opens the OS keyring described by cfg.
// Leaving AllowedBackends empty lets the keyring library choose the platform default.
func OpenKeyringStore(cfg keyring.Config) (*KeyringStore, error) {
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "KeyringStore.Open")
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func accountPrefix(account Account) string {
	return account.Key() + "|"
}

func accessKey(account Account, tokenType string) string {
	return accountPrefix(account) + "access|" + tokenType
}

func refreshKey(account Account) string {
	return accountPrefix(account) + "refresh"
}

func userDataKey(account Account, key string) string {
	return accountPrefix(account) + "data|" + key
}

func (ks *KeyringStore) read(key string) (string, error) {
	item, err := ks.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "KeyringStore.Get %s", key)
	}
	return string(item.Data), nil
}

func (ks *KeyringStore) write(key, label, value string) error {
	if value == "" {
		return ks.delete(key)
	}
	if err := ks.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: label,
	}); err != nil {
		return errors.Wrapf(err, "KeyringStore.Set %s", key)
	}
	return nil
}

func (ks *KeyringStore) delete(key string) error {
	if err := ks.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return errors.Wrapf(err, "KeyringStore.Remove %s", key)
	}
	return nil
}

func (ks *KeyringStore) PeekAccessToken(_ context.Context, account Account, tokenType string) (string, error) {
	return ks.read(accessKey(account, tokenType))
}

func (ks *KeyringStore) SetAccessToken(_ context.Context, account Account, tokenType, value string) error {
	return ks.write(accessKey(account, tokenType), "access token "+account.Name, value)
}

func (ks *KeyringStore) GetRefreshToken(_ context.Context, account Account) (string, error) {
	return ks.read(refreshKey(account))
}

func (ks *KeyringStore) SetRefreshToken(_ context.Context, account Account, value string) error {
	return ks.write(refreshKey(account), "refresh token "+account.Name, value)
}

func (ks *KeyringStore) GetUserData(_ context.Context, account Account, key string) (string, error) {
	return ks.read(userDataKey(account, key))
}

func (ks *KeyringStore) SetUserData(_ context.Context, account Account, key, value string) error {
	return ks.write(userDataKey(account, key), key+" "+account.Name, value)
}

func (ks *KeyringStore) RemoveAccount(_ context.Context, account Account) error {
	keys, err := ks.ring.Keys()
	if err != nil {
		return errors.Wrap(err, "KeyringStore.Keys")
	}
	prefix := accountPrefix(account)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := ks.delete(key); err != nil {
			return err
		}
	}
	return nil
}
