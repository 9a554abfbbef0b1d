package storage

import (
	"context"
	"errors"
	"time"
)

// ErrEmptySession is returned when a call is made without a session id.
var ErrEmptySession = errors.New("empty session id")

// Store is a durable key-value store namespaced by browser session.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
	// Clear removes every key of the session.
	Clear(ctx context.Context, sessionID string) error
	// PurgeBefore drops sessions not written since cutoff and returns how many
	// values were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
