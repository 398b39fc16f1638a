// Package breaker guards an object store with a per-operation circuit breaker,
// so uploads fail fast while the bucket is unreachable instead of each request
// waiting out its own timeout.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"Moxie/internal/core/media"
)

// ErrCircuitOpen is returned without calling the backend while the circuit is open
var ErrCircuitOpen = errors.New("object store circuit open")

// Defaults: open after 3 consecutive failures, retry after 30 seconds
const (
	DefaultThreshold = 3
	DefaultOpenFor   = 30 * time.Second
)

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type circuit struct {
	lastFailure time.Time
	failures    int
	state       state
	probing     bool
}

// Store wraps a media.ObjectStore. Put, PresignGet and Remove trip independently.
type Store struct {
	next      media.ObjectStore
	logger    *slog.Logger
	now       func() time.Time
	circuits  map[string]*circuit
	threshold int
	openFor   time.Duration
	mu        sync.Mutex
}

// Wrap guards next. Non-positive threshold or openFor fall back to the defaults.
func Wrap(next media.ObjectStore, threshold int, openFor time.Duration, logger *slog.Logger) *Store {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if openFor <= 0 {
		openFor = DefaultOpenFor
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		next:      next,
		logger:    logger,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
		threshold: threshold,
		openFor:   openFor,
	}
}

func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	return s.call("put", func() error {
		return s.next.Put(ctx, key, contentType, data)
	})
}

func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (*url.URL, error) {
	var u *url.URL
	err := s.call("presign", func() error {
		var err error
		u, err = s.next.PresignGet(ctx, key, ttl)
		return err
	})
	return u, err
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.call("remove", func() error {
		return s.next.Remove(ctx, key)
	})
}

func (s *Store) call(op string, fn func() error) error {
	if err := s.allow(op); err != nil {
		return err
	}

	err := fn()
	// A caller giving up says nothing about the backend
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		s.settleTrial(op)
		return err
	}
	if err != nil {
		s.recordFailure(op, err)
		return err
	}
	s.recordSuccess(op)
	return nil
}

// allow admits calls while closed, and a single trial call once the open period has passed
func (s *Store) allow(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(op)
	switch c.state {
	case stateOpen:
		if s.now().Sub(c.lastFailure) < s.openFor {
			return fmt.Errorf("%w for %s (failures: %d, next retry: %s)",
				ErrCircuitOpen, op, c.failures, c.lastFailure.Add(s.openFor).Format(time.TimeOnly))
		}
		s.transition(op, c, stateHalfOpen)
		c.probing = true
		return nil
	case stateHalfOpen:
		if c.probing {
			return fmt.Errorf("%w for %s (trial call in flight)", ErrCircuitOpen, op)
		}
		c.probing = true
		return nil
	default:
		return nil
	}
}

func (s *Store) recordSuccess(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(op)
	c.failures = 0
	c.probing = false
	if c.state != stateClosed {
		s.transition(op, c, stateClosed)
	}
}

func (s *Store) recordFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(op)
	c.failures++
	c.lastFailure = s.now()
	c.probing = false

	if c.state == stateHalfOpen || c.failures >= s.threshold {
		if c.state != stateOpen {
			s.logger.Warn("object store circuit opened",
				"op", op,
				"failures", c.failures,
				"error", err)
		}
		c.state = stateOpen
		return
	}
	s.logger.Debug("object store failure",
		"op", op,
		"failures", c.failures,
		"threshold", s.threshold,
		"error", err)
}

// settleTrial frees the half-open slot without judging the backend
func (s *Store) settleTrial(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuit(op).probing = false
}

// State reports op's circuit state: closed, open or half-open
func (s *Store) State(op string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.circuit(op).state.String()
}

// circuit must be called with mu held
func (s *Store) circuit(op string) *circuit {
	c, ok := s.circuits[op]
	if !ok {
		c = &circuit{}
		s.circuits[op] = c
	}
	return c
}

// transition must be called with mu held
func (s *Store) transition(op string, c *circuit, to state) {
	s.logger.Info("object store circuit state changed",
		"op", op,
		"from", c.state.String(),
		"to", to.String())
	c.state = to
}
