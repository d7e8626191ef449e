package store

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/spf13/afero"
)

// Scope selects a storage area.
type Scope int

const (
	ScopeSync Scope = iota
	ScopeLocal
)

func (s Scope) String() string {
	switch s {
	case ScopeSync:
		return "sync"
	case ScopeLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Store maps scopes to backends and JSON-encodes values.
type Store struct {
	sync  Backend
	local Backend
}

// New creates a store over the given backends.
func New(sync, local Backend) *Store {
	return &Store{sync: sync, local: local}
}

// NewMemory creates a store that forgets everything at exit.
func NewMemory() *Store {
	return New(NewMemoryBackend(), NewMemoryBackend())
}

// Open creates a file-backed store under dir.
func Open(fs afero.Fs, dir string, compress bool) (*Store, error) {
	ext := ".json"
	if compress {
		ext = ".json.zst"
	}

	syncBackend, err := NewFileBackend(fs, filepath.Join(dir, "sync"+ext), compress)
	if err != nil {
		return nil, fmt.Errorf("open sync scope: %w", err)
	}
	localBackend, err := NewFileBackend(fs, filepath.Join(dir, "local"+ext), compress)
	if err != nil {
		syncBackend.Close()
		return nil, fmt.Errorf("open local scope: %w", err)
	}
	return New(syncBackend, localBackend), nil
}

func (s *Store) backend(scope Scope) (Backend, error) {
	switch scope {
	case ScopeSync:
		return s.sync, nil
	case ScopeLocal:
		return s.local, nil
	default:
		return nil, fmt.Errorf("unknown scope %d", scope)
	}
}

// Get decodes the value under key into v. It reports false when the key is
// absent, leaving v untouched.
func (s *Store) Get(scope Scope, key string, v interface{}) (bool, error) {
	b, err := s.backend(scope)
	if err != nil {
		return false, err
	}
	raw, ok, err := b.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := sonic.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", scope, key, err)
	}
	return true, nil
}

// Set encodes v and stores it under key.
func (s *Store) Set(scope Scope, key string, v interface{}) error {
	b, err := s.backend(scope)
	if err != nil {
		return err
	}
	raw, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	return b.Set(key, raw)
}

// Delete removes key; absent keys are not an error.
func (s *Store) Delete(scope Scope, key string) error {
	b, err := s.backend(scope)
	if err != nil {
		return err
	}
	return b.Delete(key)
}

// Keys lists the keys of a scope in sorted order.
func (s *Store) Keys(scope Scope) ([]string, error) {
	b, err := s.backend(scope)
	if err != nil {
		return nil, err
	}
	return b.Keys()
}

// Close releases backend resources. Every backend is closed even when an
// earlier one fails.
func (s *Store) Close() error {
	var errs []error
	for _, b := range []Backend{s.sync, s.local} {
		if c, ok := b.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
