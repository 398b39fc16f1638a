// Package likes toggles likes with an immediate optimistic flip in the actor's
// views and authoritative reconciliation against the entity store.
package likes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/invalidation"
	"Moxie/internal/core/views"
	"Moxie/internal/metrics"
)

type pairKey struct {
	userID string
	target entities.Target
}

// chain serializes the intents of one (user, target) pair
type chain struct {
	tail *Pending
	// cancelThrough marks every intent with seq <= it as cancelled
	cancelThrough uint64
	seq           uint64
	inFlight      int
}

// Coordinator issues like toggles. Requests of one pair reach the store one at
// a time in request order; different pairs run concurrently.
type Coordinator struct {
	store   entities.Store
	router  *invalidation.Router
	logger  *slog.Logger
	metrics *metrics.Metrics
	chains  map[pairKey]*chain
	mu      sync.Mutex
}

// NewCoordinator creates a like coordinator over store. Display patches go
// through router's plan for toggleLike.
func NewCoordinator(store entities.Store, router *invalidation.Router, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if router == nil {
		router = invalidation.NewRouter(nil, logger, m)
	}
	return &Coordinator{
		store:   store,
		router:  router,
		logger:  logger,
		metrics: m,
		chains:  make(map[pairKey]*chain),
	}
}

// Toggle flips the displayed like state of target in the actor's views and
// issues the authoritative toggle in the background.
//
// The target must be displayed in vs, either already cached or in origin.
// On failure the display reverts to this intent's prior state, intents queued
// behind it are cancelled, and a failure notice is attached to origin.
func (c *Coordinator) Toggle(ctx context.Context, actor entities.Actor, vs *views.Store, origin views.Context, target entities.Target) (*Pending, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	if _, ok := vs.Lookup(target); !ok {
		if _, err := vs.Get(ctx, origin); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := vs.LookupIn(origin, target)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", views.ErrNotDisplayed, target, origin)
	}

	prior := State{Liked: current.Liked, LikeCount: current.LikeCount}
	next := flip(prior)
	c.router.Patch(vs, likeMutation(origin, target), apply(next))
	// Reloads before settlement keep showing the flip
	vs.SetOverlay(target, apply(next))

	key := pairKey{userID: actor.UserID, target: target}
	ch, ok := c.chains[key]
	if !ok {
		ch = &chain{}
		c.chains[key] = ch
	}
	ch.seq++
	ch.inFlight++

	p := newPending(Intent{
		Origin: origin,
		Target: target,
		Prior:  &prior,
		Next:   next,
		seq:    ch.seq,
	})
	prev := ch.tail
	ch.tail = p

	go c.settle(context.WithoutCancel(ctx), actor, vs, key, ch, prev, p)

	return p, nil
}

func (c *Coordinator) settle(ctx context.Context, actor entities.Actor, vs *views.Store, key pairKey, ch *chain, prev, p *Pending) {
	if prev != nil {
		<-prev.done
	}

	c.mu.Lock()
	cancelled := p.intent.seq <= ch.cancelThrough
	c.mu.Unlock()

	if cancelled {
		c.release(key, ch, vs)
		c.metrics.ObserveLikeToggle(metrics.OutcomeCancelled)
		p.finish(ErrCancelled)
		return
	}

	err := c.store.ToggleLike(ctx, actor, key.target)
	if err != nil {
		c.rollback(vs, ch, p, err)
		c.release(key, ch, vs)
		c.metrics.ObserveLikeToggle(metrics.OutcomeFailure)
		p.finish(err)
		return
	}

	if c.release(key, ch, vs) {
		// Last intent of the pair settled; the origin now reflects the store
		if _, err := vs.Refresh(ctx, p.intent.Origin); err != nil {
			c.logger.Warn("failed to reload origin view after like",
				"user", vs.ViewerID(),
				"origin", p.intent.Origin.String(),
				"error", err)
		}
	}
	c.metrics.ObserveLikeToggle(metrics.OutcomeSuccess)
	p.finish(nil)
}

func (c *Coordinator) rollback(vs *views.Store, ch *chain, p *Pending, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch.cancelThrough = ch.seq
	prior := *p.intent.Prior
	vs.ClearOverlay(p.intent.Target)
	c.router.Patch(vs, likeMutation(p.intent.Origin, p.intent.Target), apply(prior))

	vs.ReportFailure(p.intent.Origin, views.Failure{
		Target:  p.intent.Target,
		Op:      "like",
		Message: failureMessage(cause),
	})
	c.metrics.ObserveRollback()

	c.logger.Warn("like toggle failed, rolled back",
		"user", vs.ViewerID(),
		"target", p.intent.Target.String(),
		"origin", p.intent.Origin.String(),
		"error", cause)
}

// release reports whether ch has no intents left, dropping the display overlay
// if so
func (c *Coordinator) release(key pairKey, ch *chain, vs *views.Store) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch.inFlight--
	if ch.inFlight > 0 {
		return false
	}
	vs.ClearOverlay(key.target)
	if c.chains[key] == ch {
		delete(c.chains, key)
	}
	return true
}

func likeMutation(origin views.Context, target entities.Target) invalidation.Mutation {
	return invalidation.Mutation{Origin: origin, Kind: invalidation.ToggleLike, Target: target}
}

func flip(s State) State {
	if s.Liked {
		count := s.LikeCount - 1
		if count < 0 {
			count = 0
		}
		return State{Liked: false, LikeCount: count}
	}
	return State{Liked: true, LikeCount: s.LikeCount + 1}
}

func apply(s State) func(*entities.ItemView) {
	return func(v *entities.ItemView) {
		v.Liked = s.Liked
		v.LikeCount = s.LikeCount
	}
}
