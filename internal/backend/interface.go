package backend

import (
	"context"

	"spendboard/internal/storage"
)

// StoreResult pairs an opened session store with the function that closes it.
type StoreResult struct {
	Store   storage.Store
	Cleanup func() error
}

// Factory opens the session store described by a Config.
type Factory interface {
	CreateStore(ctx context.Context, cfg Config) (*StoreResult, error)
}

type Config struct {
	Type         BackendType
	SQLiteDBPath string // sqlite only
}

// BackendType is a SESSION_BACKEND value.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (t BackendType) String() string { return string(t) }

func (t BackendType) IsValid() bool {
	return t == SQLiteBackend || t == MemoryBackend
}
