package dashboard

import (
	"context"
	"sync/atomic"
	"time"

	"spendboard/internal/cache"
	"spendboard/internal/session"
	"spendboard/internal/storage"
)

// BuildFunc creates the dashboard for a browser session.
type BuildFunc func(ctx context.Context, sessionID string) (*Dashboard, error)

// SessionBuilder builds dashboards from the settings saved for the session
// and persists every later change back to store.
func SessionBuilder(store storage.Store, defaultCurrency string, opts Options) BuildFunc {
	return func(ctx context.Context, sessionID string) (*Dashboard, error) {
		sess := session.New(store, sessionID, defaultCurrency)
		settings, err := sess.Load(ctx)
		if err != nil {
			return nil, err
		}
		o := opts
		o.Save = sess.Save
		return New(settings, o), nil
	}
}

// Registry keeps one live Dashboard per browser session. Idle dashboards
// expire after ttl and are rebuilt, with their saved settings, on next use.
type Registry struct {
	dashboards *cache.LRUCache[*Dashboard]
	build      BuildFunc
	evicted    atomic.Int64
}

func NewRegistry(size int, ttl time.Duration, build BuildFunc) *Registry {
	r := &Registry{
		dashboards: cache.NewLRUCache[*Dashboard](size, ttl),
		build:      build,
	}
	r.dashboards.OnEvict(func(string, *Dashboard) { r.evicted.Add(1) })
	return r
}

// Get returns the session's dashboard, building it on first use.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Dashboard, error) {
	if d, ok := r.dashboards.Get(sessionID); ok {
		return d, nil
	}
	built, err := r.build(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// a concurrent request may have won; keep whichever got in first
	return r.dashboards.GetOrCreate(sessionID, func() *Dashboard { return built }), nil
}

// Forget drops the session's dashboard, e.g. on logout.
func (r *Registry) Forget(sessionID string) {
	r.dashboards.Delete(sessionID)
}

func (r *Registry) Size() int {
	return r.dashboards.Size()
}

// Evicted counts dashboards dropped for capacity or idleness. Forget is not
// counted.
func (r *Registry) Evicted() int64 {
	return r.evicted.Load()
}

// Cleaner exposes expiry to a cache.Manager.
func (r *Registry) Cleaner() cache.Cleaner {
	return r.dashboards
}
