package views

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"Moxie/internal/core/entities"
	"Moxie/internal/metrics"
)

// maxLoadAttempts bounds how often Get retries a load that raced a write
const maxLoadAttempts = 3

// Failure is a user-visible notice attached to the view a mutation came from
type Failure struct {
	At      time.Time       `json:"at"`
	Target  entities.Target `json:"target"`
	Op      string          `json:"op"`
	Message string          `json:"message"`
}

type entry struct {
	loadedAt time.Time
	items    []entities.ItemView
}

// Store holds one viewer's cached view collections.
//
// Only the invalidation router and optimistic patches write to it. Every read
// returns a copy, so callers never alias cached state.
type Store struct {
	loader   Loader
	metrics  *metrics.Metrics
	now      func() time.Time
	entries  map[Context]*entry
	gens     map[Context]uint64
	failures map[Context][]Failure
	overlays map[entities.Target]func(*entities.ItemView)
	viewerID string
	group    singleflight.Group
	ttl      time.Duration
	epoch    uint64
	mu       sync.Mutex
}

// NewStore creates an empty store for viewerID. ttl <= 0 disables expiry.
func NewStore(viewerID string, loader Loader, ttl time.Duration, m *metrics.Metrics) *Store {
	return &Store{
		viewerID: viewerID,
		loader:   loader,
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
		entries:  make(map[Context]*entry),
		gens:     make(map[Context]uint64),
		failures: make(map[Context][]Failure),
		overlays: make(map[entities.Target]func(*entities.ItemView)),
	}
}

// ViewerID returns the viewer this store belongs to ("" for anonymous)
func (s *Store) ViewerID() string {
	return s.viewerID
}

// Get returns the cached collection for vc, loading it on a miss or after expiry.
// Concurrent misses for the same context share one load. A load that races an
// invalidation or a patch is not cached and is retried.
func (s *Store) Get(ctx context.Context, vc Context) ([]entities.ItemView, error) {
	if err := vc.Validate(); err != nil {
		return nil, err
	}

	var items []entities.ItemView
	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		s.mu.Lock()
		if e, ok := s.entries[vc]; ok && !s.expired(e) {
			out := cloneItems(e.items)
			s.mu.Unlock()
			s.metrics.ObserveViewRead(string(vc.Kind), "hit")
			return out, nil
		}
		gen, epoch := s.gens[vc], s.epoch
		s.mu.Unlock()

		key := fmt.Sprintf("%s#%d#%d", vc, gen, epoch)
		// The shared load outlives any one caller; each caller stops waiting on its own ctx
		results := s.group.DoChan(key, func() (interface{}, error) {
			return s.loader.Load(context.WithoutCancel(ctx), s.viewerID, vc)
		})
		var res singleflight.Result
		select {
		case res = <-results:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if res.Err != nil {
			s.metrics.ObserveViewRead(string(vc.Kind), "error")
			return nil, res.Err
		}
		items = res.Val.([]entities.ItemView)

		s.mu.Lock()
		if s.gens[vc] == gen && s.epoch == epoch {
			cached := s.overlay(cloneItems(items))
			s.entries[vc] = &entry{items: cached, loadedAt: s.now()}
			s.mu.Unlock()
			s.metrics.ObserveViewRead(string(vc.Kind), "miss")
			return cloneItems(cached), nil
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	out := s.overlay(cloneItems(items))
	s.mu.Unlock()
	s.metrics.ObserveViewRead(string(vc.Kind), "miss")
	return out, nil
}

// Refresh drops vc and loads it again
func (s *Store) Refresh(ctx context.Context, vc Context) ([]entities.ItemView, error) {
	s.Invalidate(vc)
	return s.Get(ctx, vc)
}

// Peek returns the cached collection without loading
func (s *Store) Peek(vc Context) ([]entities.ItemView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[vc]
	if !ok || s.expired(e) {
		return nil, false
	}
	return cloneItems(e.items), true
}

// Invalidate drops the given contexts; the next Get refetches them
func (s *Store) Invalidate(vcs ...Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, vc := range vcs {
		delete(s.entries, vc)
		s.gens[vc]++
	}
}

// Patch applies fn to every cached copy of target and returns how many were changed
func (s *Store) Patch(target entities.Target, fn func(*entities.ItemView)) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	n := 0
	for _, e := range s.entries {
		for i := range e.items {
			if e.items[i].Target == target {
				fn(&e.items[i])
				n++
			}
		}
	}
	return n
}

// Lookup returns the displayed state of target from any cached context
func (s *Store) Lookup(target entities.Target) (entities.ItemView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if s.expired(e) {
			continue
		}
		for _, item := range e.items {
			if item.Target == target {
				return item, true
			}
		}
	}
	return entities.ItemView{}, false
}

// LookupIn is Lookup preferring origin's copy when origin is cached
func (s *Store) LookupIn(origin Context, target entities.Target) (entities.ItemView, bool) {
	s.mu.Lock()
	e, ok := s.entries[origin]
	if ok && !s.expired(e) {
		for _, item := range e.items {
			if item.Target == target {
				s.mu.Unlock()
				return item, true
			}
		}
	}
	s.mu.Unlock()
	return s.Lookup(target)
}

// SetOverlay makes fn apply to target in every collection loaded from now on,
// until ClearOverlay. Unsettled optimistic state survives reloads this way.
func (s *Store) SetOverlay(target entities.Target, fn func(*entities.ItemView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays[target] = fn
}

// ClearOverlay removes target's overlay
func (s *Store) ClearOverlay(target entities.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlays, target)
}

// Cached returns the contexts currently held
func (s *Store) Cached() []Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Context, 0, len(s.entries))
	for vc := range s.entries {
		out = append(out, vc)
	}
	return out
}

// ReportFailure attaches a failure notice to origin
func (s *Store) ReportFailure(origin Context, f Failure) {
	if f.At.IsZero() {
		f.At = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[origin] = append(s.failures[origin], f)
}

// Failures drains and returns the notices attached to origin
func (s *Store) Failures(origin Context) []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.failures[origin]
	delete(s.failures, origin)
	return out
}

// overlay must be called with mu held
func (s *Store) overlay(items []entities.ItemView) []entities.ItemView {
	if len(s.overlays) == 0 {
		return items
	}
	for i := range items {
		if fn, ok := s.overlays[items[i].Target]; ok {
			fn(&items[i])
		}
	}
	return items
}

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.loadedAt) >= s.ttl
}

func cloneItems(items []entities.ItemView) []entities.ItemView {
	if items == nil {
		return []entities.ItemView{}
	}
	out := make([]entities.ItemView, len(items))
	copy(out, items)
	return out
}
