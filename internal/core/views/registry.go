package views

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"Moxie/internal/metrics"
)

// DefaultSessions is the number of viewer stores kept when none is configured
const DefaultSessions = 1024

// Registry owns one Store per viewer. Least recently used viewers are evicted;
// an evicted viewer simply starts over with an empty cache.
type Registry struct {
	stores  *lru.Cache[string, *Store]
	loader  Loader
	metrics *metrics.Metrics
	ttl     time.Duration
	mu      sync.Mutex
}

// NewRegistry creates a registry holding up to sessions viewer stores
func NewRegistry(loader Loader, ttl time.Duration, sessions int, m *metrics.Metrics) (*Registry, error) {
	if sessions <= 0 {
		sessions = DefaultSessions
	}
	cache, err := lru.New[string, *Store](sessions)
	if err != nil {
		return nil, err
	}
	return &Registry{
		stores:  cache,
		loader:  loader,
		ttl:     ttl,
		metrics: m,
	}, nil
}

// For returns viewerID's store, creating it on first use
func (r *Registry) For(viewerID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores.Get(viewerID); ok {
		return s
	}
	s := NewStore(viewerID, r.loader, r.ttl, r.metrics)
	r.stores.Add(viewerID, s)
	return s
}

// Each calls fn for every live viewer store
func (r *Registry) Each(fn func(*Store)) {
	r.mu.Lock()
	keys := r.stores.Keys()
	stores := make([]*Store, 0, len(keys))
	for _, k := range keys {
		if s, ok := r.stores.Peek(k); ok {
			stores = append(stores, s)
		}
	}
	r.mu.Unlock()

	for _, s := range stores {
		fn(s)
	}
}

// Len returns the number of live viewer stores
func (r *Registry) Len() int {
	return r.stores.Len()
}
