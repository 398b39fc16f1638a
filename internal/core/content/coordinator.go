// Package content creates and deletes posts and replies, pairing media ingest
// with entity persistence and routing the committed change to the view caches.
package content

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rivo/uniseg"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/invalidation"
	"Moxie/internal/core/media"
	"Moxie/internal/core/views"
	"Moxie/internal/metrics"
)

// MaxBodyGraphemes is the maximum body length in user-perceived characters
const MaxBodyGraphemes = 500

// Upload is a media attachment as received from the client
type Upload struct {
	MimeType string
	Payload  []byte
}

// Coordinator orchestrates content mutations
type Coordinator struct {
	store   entities.Store
	media   media.Service
	router  *invalidation.Router
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCoordinator creates a content coordinator
func NewCoordinator(store entities.Store, mediaService media.Service, router *invalidation.Router, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		media:   mediaService,
		router:  router,
		logger:  logger,
		metrics: m,
	}
}

// CreatePost creates a post
// Flow:
// 1. Validate actor, body and media size (no network calls)
// 2. Store media, if any
// 3. Persist the post; on failure remove the stored media
// 4. Invalidate FEED and the author's PROFILE
func (c *Coordinator) CreatePost(ctx context.Context, actor entities.Actor, origin views.Context, body string, upload *Upload) (*entities.Post, error) {
	const kind = invalidation.CreatePost

	body, err := c.validate(actor, body, upload)
	if err != nil {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeRejected)
		return nil, err
	}

	obj, err := c.storeMedia(ctx, upload)
	if err != nil {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeFailure)
		return nil, err
	}

	post, err := c.store.CreatePost(ctx, actor, body, obj)
	if err != nil {
		c.compensate(ctx, obj, err)
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeFailure)
		return nil, err
	}

	c.router.Apply(ctx, actor.UserID, invalidation.Mutation{
		Kind:     kind,
		Target:   post.Target(),
		AuthorID: post.AuthorID,
		PostID:   post.ID,
		Origin:   origin,
	})
	c.metrics.ObserveMutation(string(kind), metrics.OutcomeSuccess)

	c.logger.Info("post created",
		"post", post.ID,
		"author", post.AuthorID,
		"has_media", obj != nil)

	return post, nil
}

// CreateReply creates a reply in postID's thread
func (c *Coordinator) CreateReply(ctx context.Context, actor entities.Actor, origin views.Context, postID, body string, upload *Upload) (*entities.Reply, error) {
	const kind = invalidation.CreateReply

	body, err := c.validate(actor, body, upload)
	if err != nil {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeRejected)
		return nil, err
	}
	if strings.TrimSpace(postID) == "" {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeRejected)
		return nil, &ValidationError{Field: "postId", Message: "postId is required", Err: entities.ErrInvalidTarget}
	}

	obj, err := c.storeMedia(ctx, upload)
	if err != nil {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeFailure)
		return nil, err
	}

	reply, err := c.store.CreateReply(ctx, actor, postID, body, obj)
	if err != nil {
		c.compensate(ctx, obj, err)
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeFailure)
		return nil, err
	}

	c.router.Apply(ctx, actor.UserID, invalidation.Mutation{
		Kind:     kind,
		Target:   reply.Target(),
		AuthorID: reply.AuthorID,
		PostID:   reply.PostID,
		Origin:   origin,
	})
	c.metrics.ObserveMutation(string(kind), metrics.OutcomeSuccess)

	c.logger.Info("reply created",
		"reply", reply.ID,
		"post", reply.PostID,
		"author", reply.AuthorID,
		"has_media", obj != nil)

	return reply, nil
}

// DeletePost deletes a post with its replies, likes and media
func (c *Coordinator) DeletePost(ctx context.Context, actor entities.Actor, origin views.Context, id string) error {
	return c.delete(ctx, actor, origin, invalidation.DeletePost, id, c.store.DeletePost)
}

// DeleteReply deletes a reply with its likes and media
func (c *Coordinator) DeleteReply(ctx context.Context, actor entities.Actor, origin views.Context, id string) error {
	return c.delete(ctx, actor, origin, invalidation.DeleteReply, id, c.store.DeleteReply)
}

type deleteFunc func(ctx context.Context, actor entities.Actor, id string) (*entities.Deletion, error)

// delete is not optimistic: views change only after the store commits
func (c *Coordinator) delete(ctx context.Context, actor entities.Actor, origin views.Context, kind invalidation.Kind, id string, del deleteFunc) error {
	if !actor.IsAuthenticated() {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeRejected)
		return entities.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeRejected)
		return &ValidationError{Field: "id", Message: "id is required", Err: entities.ErrInvalidTarget}
	}

	deletion, err := del(ctx, actor, id)
	if err != nil {
		c.metrics.ObserveMutation(string(kind), metrics.OutcomeFailure)
		return err
	}

	// The entity is gone; media left behind is only a storage leak
	for _, key := range deletion.MediaKeys {
		if err := c.media.Remove(ctx, key); err != nil {
			c.logger.Error("failed to remove media of deleted entity",
				"key", key,
				"target", deletion.Target.String(),
				"error", err)
		}
	}

	c.router.Apply(ctx, actor.UserID, invalidation.Mutation{
		Kind:           kind,
		Target:         deletion.Target,
		AuthorID:       deletion.AuthorID,
		PostID:         deletion.PostID,
		ReplyAuthorIDs: deletion.ReplyAuthorIDs,
		Origin:         origin,
	})
	c.metrics.ObserveMutation(string(kind), metrics.OutcomeSuccess)

	c.logger.Info("content deleted",
		"target", deletion.Target.String(),
		"media_removed", len(deletion.MediaKeys),
		"replies_cascaded", len(deletion.ReplyAuthorIDs) > 0)

	return nil
}

// validate returns the trimmed body
func (c *Coordinator) validate(actor entities.Actor, body string, upload *Upload) (string, error) {
	if !actor.IsAuthenticated() {
		return "", entities.ErrUnauthenticated
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", newValidationError("body", ErrEmptyBody)
	}
	if uniseg.GraphemeClusterCount(body) > MaxBodyGraphemes {
		return "", newValidationError("body", ErrBodyTooLong)
	}

	if upload != nil {
		if err := media.ValidatePayload(upload.Payload); err != nil {
			return "", newValidationError("media", err)
		}
	}
	return body, nil
}

func (c *Coordinator) storeMedia(ctx context.Context, upload *Upload) (*media.Object, error) {
	if upload == nil {
		return nil, nil
	}
	obj, err := c.media.Store(ctx, upload.Payload, upload.MimeType)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveMediaBytes(len(upload.Payload))
	return obj, nil
}

// compensate removes media stored for an entity that was never persisted.
// It runs even when ctx is already cancelled.
func (c *Coordinator) compensate(ctx context.Context, obj *media.Object, cause error) {
	if obj == nil {
		return
	}

	if err := c.media.Remove(context.WithoutCancel(ctx), obj.Key); err != nil {
		c.logger.Error("failed to remove orphaned media",
			"key", obj.Key,
			"cause", cause,
			"error", err)
		return
	}

	c.logger.Warn("entity persistence failed, media removed",
		"key", obj.Key,
		"error", cause)
}
