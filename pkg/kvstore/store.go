package kvstore

import (
	"errors"
	"fmt"
)

// Store is the persistence port used by the coin controller and the session.
// Values are opaque strings; a missing key is reported with ok == false and
// a nil error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Errors
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrEmptyKey           = errors.New("key must not be empty")
	ErrNoStores           = errors.New("no stores configured")
)

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", ErrStorageUnavailable, op, key, err)
}

// Chain reads from the first store that has a key and writes to the first
// store that accepts the write. Remove is applied to every store so a stale
// copy in a later store cannot resurface.
type Chain struct {
	stores []Store
}

// NewChain builds a Chain over stores in priority order
func NewChain(stores ...Store) *Chain {
	var filtered []Store
	for _, s := range stores {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &Chain{stores: filtered}
}

// Get returns the value from the first store holding key
func (c *Chain) Get(key string) (string, bool, error) {
	if len(c.stores) == 0 {
		return "", false, ErrNoStores
	}

	var errs []error
	for _, s := range c.stores {
		value, ok, err := s.Get(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return value, true, nil
		}
	}

	if len(errs) == len(c.stores) {
		return "", false, errors.Join(errs...)
	}
	return "", false, nil
}

// Set writes key to the first store that accepts it
func (c *Chain) Set(key, value string) error {
	if len(c.stores) == 0 {
		return ErrNoStores
	}

	var errs []error
	for _, s := range c.stores {
		err := s.Set(key, value)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Remove deletes key from every store
func (c *Chain) Remove(key string) error {
	if len(c.stores) == 0 {
		return ErrNoStores
	}

	var removed bool
	var errs []error
	for _, s := range c.stores {
		if err := s.Remove(key); err != nil {
			errs = append(errs, err)
		} else {
			removed = true
		}
	}

	if !removed {
		return errors.Join(errs...)
	}
	return nil
}

// Len returns the number of stores in the chain
func (c *Chain) Len() int {
	return len(c.stores)
}

// Prefixed namespaces every key of an underlying store, so several accounts
// can share one state store without seeing each other's values.
type Prefixed struct {
	store  Store
	prefix string
}

// WithPrefix returns a view of s where every key is stored as prefix+key
func WithPrefix(s Store, prefix string) *Prefixed {
	return &Prefixed{store: s, prefix: prefix}
}

func (p *Prefixed) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	return p.store.Get(p.prefix + key)
}

func (p *Prefixed) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return p.store.Set(p.prefix+key, value)
}

func (p *Prefixed) Remove(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return p.store.Remove(p.prefix + key)
}
