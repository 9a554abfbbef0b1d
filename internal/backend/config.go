package backend

import (
	"errors"
	"fmt"

	"spendboard/internal/config"
)

// FromAppConfig picks the session store settings out of cfg.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("backend: nil app config")
	}
	c := Config{Type: BackendType(cfg.SessionBackend), SQLiteDBPath: cfg.SQLiteDBPath}
	if !c.Type.IsValid() {
		return Config{}, fmt.Errorf("backend: SESSION_BACKEND %q is not one of %v", cfg.SessionBackend, BackendTypes())
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case !c.Type.IsValid():
		return fmt.Errorf("backend: unknown type %q", c.Type)
	case c.Type == SQLiteBackend && c.SQLiteDBPath == "":
		return errors.New("backend: sqlite needs a database path")
	}
	return nil
}

// BackendTypes lists the accepted SESSION_BACKEND values.
func BackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
