package kvstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps all keys in one JSON document. Every write replaces the
// document atomically through a temp file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path, creating parent directories
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the backing document
func (f *FileStore) Path() string {
	return f.path
}

// Get returns the stored value for key
func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	value, ok := data[key]
	return value, ok, nil
}

// Set stores value under key
func (f *FileStore) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return unavailable("set", key, err)
	}
	data[key] = value

	if err := f.save(data); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Remove deletes key
func (f *FileStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return unavailable("remove", key, err)
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)

	if err := f.save(data); err != nil {
		return unavailable("remove", key, err)
	}
	return nil
}

func (f *FileStore) load() (map[string]string, error) {
	content, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	data := make(map[string]string)
	if len(content) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("corrupt store file: %w", err)
	}
	return data, nil
}

func (f *FileStore) save(data map[string]string) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
