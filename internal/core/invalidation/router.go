// Package invalidation decides which cached view collections a committed
// mutation makes stale, and applies that decision to the view registry.
package invalidation

import (
	"context"
	"errors"
	"log/slog"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/views"
	"Moxie/internal/metrics"
)

// Kind is the committed mutation's type
type Kind string

const (
	CreatePost  Kind = "createPost"
	DeletePost  Kind = "deletePost"
	CreateReply Kind = "createReply"
	DeleteReply Kind = "deleteReply"
	ToggleLike  Kind = "toggleLike"
)

// Mutation describes a committed change and the view it was issued from
type Mutation struct {
	Origin views.Context
	Kind   Kind
	Target entities.Target
	// AuthorID is the author of the created/deleted entity
	AuthorID string
	// PostID is the thread the entity belongs to (the post itself for posts)
	PostID string
	// ReplyAuthorIDs lists authors of replies cascaded by a post deletion
	ReplyAuthorIDs []string
}

// Plan is the routing decision for one mutation
type Plan struct {
	// Invalidate lists contexts to drop and refetch
	Invalidate []views.Context
	// Patch lists targets to update in place wherever they are displayed
	Patch []entities.Target
}

// PlanFor maps a mutation to the contexts it invalidates or patches.
//
//	createPost   FEED, PROFILE(author)
//	deletePost   FEED, PROFILE(author), POST_THREAD(post), REPLY_LIST(post),
//	             PROFILE of every cascaded reply author
//	createReply  PROFILE(author), POST_THREAD(post), REPLY_LIST(post)
//	deleteReply  PROFILE(author), POST_THREAD(post), REPLY_LIST(post)
//	toggleLike   patch only
//
// The origin context is always invalidated for membership changes.
func PlanFor(m Mutation) Plan {
	if m.Kind == ToggleLike {
		return Plan{Patch: []entities.Target{m.Target}}
	}

	var set contextSet
	switch m.Kind {
	case CreatePost:
		set.add(views.Feed(), views.Profile(m.AuthorID))
	case DeletePost:
		set.add(views.Feed(), views.Profile(m.AuthorID),
			views.PostThread(m.PostID), views.ReplyList(m.PostID))
		for _, author := range m.ReplyAuthorIDs {
			set.add(views.Profile(author))
		}
	case CreateReply, DeleteReply:
		set.add(views.Profile(m.AuthorID),
			views.PostThread(m.PostID), views.ReplyList(m.PostID))
	default:
		return Plan{}
	}

	if m.Origin.Validate() == nil {
		set.add(m.Origin)
	}
	return Plan{Invalidate: set.items}
}

// Router applies plans to every viewer's store
type Router struct {
	registry *views.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewRouter creates a router over registry
func NewRouter(registry *views.Registry, logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, logger: logger, metrics: m}
}

// Apply invalidates the planned contexts in every viewer's store, then reloads
// the acting viewer's origin context so it reflects the mutation right away.
// Reload failures are logged; the mutation itself has already committed.
func (r *Router) Apply(ctx context.Context, actorID string, m Mutation) Plan {
	plan := PlanFor(m)
	if len(plan.Invalidate) == 0 {
		return plan
	}

	r.registry.Each(func(s *views.Store) {
		s.Invalidate(plan.Invalidate...)
	})
	for _, vc := range plan.Invalidate {
		r.metrics.ObserveInvalidation(string(vc.Kind))
	}

	r.logger.Debug("views invalidated",
		"mutation", string(m.Kind),
		"target", m.Target.String(),
		"contexts", len(plan.Invalidate))

	if m.Origin.Validate() != nil {
		return plan
	}
	if _, err := r.registry.For(actorID).Get(ctx, m.Origin); err != nil {
		// The origin of a deleted post's thread is expected to be gone
		if errors.Is(err, entities.ErrNotFound) {
			return plan
		}
		r.logger.Warn("failed to reload origin view",
			"origin", m.Origin.String(),
			"mutation", string(m.Kind),
			"error", err)
	}
	return plan
}

// Patch applies fn to every planned patch target in the actor's store vs and
// returns the number of items updated. Other viewers' stores are untouched.
func (r *Router) Patch(vs *views.Store, m Mutation, fn func(*entities.ItemView)) int {
	n := 0
	for _, target := range PlanFor(m).Patch {
		n += vs.Patch(target, fn)
	}
	return n
}

type contextSet struct {
	items []views.Context
}

func (s *contextSet) add(vcs ...views.Context) {
	for _, vc := range vcs {
		if vc.Validate() != nil {
			continue
		}
		dup := false
		for _, have := range s.items {
			if have == vc {
				dup = true
				break
			}
		}
		if !dup {
			s.items = append(s.items, vc)
		}
	}
}
