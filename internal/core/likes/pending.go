package likes

import (
	"context"
	"sync"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/views"
)

// State is the displayed like state of one target
type State struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// Intent records one optimistic toggle. Prior is kept only until the intent
// settles and is the sole input to rollback.
type Intent struct {
	Origin views.Context
	Target entities.Target
	Prior  *State
	Next   State
	seq    uint64
}

// Pending is the handle of an in-flight toggle. Callers may ignore it.
type Pending struct {
	err    error
	done   chan struct{}
	intent Intent
	mu     sync.Mutex
}

func newPending(intent Intent) *Pending {
	return &Pending{intent: intent, done: make(chan struct{})}
}

// Done is closed once the authoritative request has settled
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the toggle settles or ctx is done, and returns its outcome.
// Cancelling ctx stops the wait, not the toggle.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the settled outcome, or nil while pending
func (p *Pending) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Displayed returns the optimistic state shown when the toggle was issued
func (p *Pending) Displayed() State {
	return p.intent.Next
}

// Intent returns a copy of the recorded intent; Prior is nil once settled
func (p *Pending) Intent() Intent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.intent
	if out.Prior != nil {
		prior := *out.Prior
		out.Prior = &prior
	}
	return out
}

func (p *Pending) finish(err error) {
	p.mu.Lock()
	p.err = err
	p.intent.Prior = nil
	p.mu.Unlock()
	close(p.done)
}
