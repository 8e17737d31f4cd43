// Package file provides a durable single-context backing store persisted as
// one JSON document on disk. Writes go through a temp-file rename so a crash
// mid-write never corrupts the previous image. There are no other execution
// contexts sharing the file, so subscriptions never fire.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/kv"
)

// Store implements kv.Store on top of a single JSON file.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]string
	log  zerolog.Logger
}

var _ kv.Store = (*Store)(nil)

// Open loads the store from path. A missing file starts empty; an unparsable
// file is logged and replaced on the next write rather than failing startup.
func Open(path string, log zerolog.Logger) *Store {
	s := &Store{path: path, data: make(map[string]string), log: log}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// first run
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("reading store file failed, starting empty")
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("store file unparsable, starting empty")
			s.data = make(map[string]string)
		}
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flushLocked()
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.flushLocked()
}

// Subscribe satisfies kv.Store. A file store has no peer contexts, so the
// subscription never fires.
func (s *Store) Subscribe(_ string, _ func(kv.Change)) (cancel func()) {
	return func() {}
}

func (s *Store) Close() error {
	return nil
}

// flushLocked writes the full map atomically. The in-memory map is already
// updated when this runs: persistence failure degrades to memory-only.
func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode store file: %v", domain.ErrStorageUnavailable, err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
