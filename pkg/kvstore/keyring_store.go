package kvstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the service name entries are filed under
const DefaultKeyringService = "coinclicker"

// KeyringStore keeps values in the operating system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-backed store after checking that the
// keychain is reachable.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		service = DefaultKeyringService
	}

	const check = "availability_check"
	if err := keyring.Set(service, check, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(service, check)

	return &KeyringStore{service: service}, nil
}

// Get returns the stored value for key
func (k *KeyringStore) Get(key string) (string, bool, error) {
	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return value, true, nil
}

// Set stores value under key
func (k *KeyringStore) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := keyring.Set(k.service, key, value); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Remove deletes key
func (k *KeyringStore) Remove(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return unavailable("remove", key, err)
	}
	return nil
}
