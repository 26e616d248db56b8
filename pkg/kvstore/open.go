package kvstore

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"coinclicker/pkg/config"
	"coinclicker/pkg/logger"
)

// Stores bundles the two stores the application needs: one for coin
// progress and one for the session token.
type Stores struct {
	State   Store
	Secrets Store

	closers []io.Closer
}

// Close releases any open database handles
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open builds the state and secret stores described by cfg. dataDir is used
// when cfg.Path is empty.
func Open(cfg config.StorageConfig, dataDir string, log logger.Logger) (*Stores, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	base := cfg.Path
	if base == "" {
		base = dataDir
	}

	stores := &Stores{}

	switch strings.ToLower(cfg.Backend) {
	case "memory":
		stores.State = NewMemoryStore()
		stores.Secrets = NewMemoryStore()
		return stores, nil
	case "sqlite":
		db, err := NewSQLiteStore(filepath.Join(base, "state.db"))
		if err != nil {
			return nil, err
		}
		stores.State = db
		stores.closers = append(stores.closers, db)
	case "file", "":
		fs, err := NewFileStore(filepath.Join(base, "state.json"))
		if err != nil {
			return nil, err
		}
		stores.State = fs
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	secrets, err := openSecrets(strings.ToLower(cfg.SecretBackend), base, log)
	if err != nil {
		stores.Close()
		return nil, err
	}
	stores.Secrets = secrets

	log.DebugWithFields("storage opened", map[string]interface{}{
		"backend":        cfg.Backend,
		"secret_backend": cfg.SecretBackend,
		"path":           base,
	})
	return stores, nil
}

func openSecrets(backend, base string, log logger.Logger) (Store, error) {
	encPath := filepath.Join(base, "secrets.enc")

	switch backend {
	case "keyring":
		return NewKeyringStore(DefaultKeyringService)
	case "encrypted":
		return NewEncryptedFileStore(encPath)
	}

	// auto: keychain first, encrypted file as fallback
	var chain []Store
	if kr, err := NewKeyringStore(DefaultKeyringService); err == nil {
		chain = append(chain, kr)
	} else {
		log.WithError(err).Debug("system keyring unavailable, using encrypted file")
	}

	enc, err := NewEncryptedFileStore(encPath)
	if err != nil {
		if len(chain) == 0 {
			return nil, err
		}
		log.WithError(err).Warn("encrypted secret store unavailable")
	} else {
		chain = append(chain, enc)
	}

	return NewChain(chain...), nil
}
