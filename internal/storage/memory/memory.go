// Package memory is a process-local session store, lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"spendboard/internal/storage"
)

type entry struct {
	value   string
	updated time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]map[string]entry
	now      func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{sessions: map[string]map[string]entry{}, now: time.Now}
}

func (s *Store) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	if sessionID == "" {
		return "", false, storage.ErrEmptySession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID][key]
	return e.value, ok, nil
}

func (s *Store) Set(_ context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return storage.ErrEmptySession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	vals, ok := s.sessions[sessionID]
	if !ok {
		vals = map[string]entry{}
		s.sessions[sessionID] = vals
	}
	vals[key] = entry{value: value, updated: s.now()}
	return nil
}

func (s *Store) Delete(_ context.Context, sessionID, key string) error {
	if sessionID == "" {
		return storage.ErrEmptySession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions[sessionID], key)
	return nil
}

func (s *Store) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return storage.ErrEmptySession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// PurgeBefore removes sessions whose newest value is older than cutoff.
func (s *Store) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for sid, vals := range s.sessions {
		var newest time.Time
		for _, e := range vals {
			if e.updated.After(newest) {
				newest = e.updated
			}
		}
		if newest.Before(cutoff) {
			removed += int64(len(vals))
			delete(s.sessions, sid)
		}
	}
	return removed, nil
}

func (s *Store) Close() error { return nil }
