package entities

import (
	"context"

	"Moxie/internal/core/media"
)

// Store is the entity mutation gateway. The store is authoritative for
// authorization: it derives the author/user from the actor and rejects
// mutations of entities the actor does not own.
type Store interface {
	// CreatePost persists a post. m is an already-stored media object, or nil.
	CreatePost(ctx context.Context, actor Actor, body string, m *media.Object) (*Post, error)

	// CreateReply persists a reply in postID's thread.
	// Returns ErrNotFound when the post does not exist.
	CreateReply(ctx context.Context, actor Actor, postID, body string, m *media.Object) (*Reply, error)

	// DeletePost removes a post and cascades to its likes, replies and the
	// replies' likes in one transaction. The Deletion lists the media keys the
	// caller must remove from object storage.
	DeletePost(ctx context.Context, actor Actor, id string) (*Deletion, error)

	// DeleteReply removes a reply and its likes
	DeleteReply(ctx context.Context, actor Actor, id string) (*Deletion, error)

	// ToggleLike creates the actor's like on target, or removes it if present
	ToggleLike(ctx context.Context, actor Actor, target Target) error
}

// Reader is the read side of the gateway. Every aggregate carries counts and
// the viewer's liked flag; an empty viewerID yields liked=false everywhere.
type Reader interface {
	// GetPost returns a single post aggregate (the POST_THREAD view)
	GetPost(ctx context.Context, viewerID, id string) (*ItemView, error)

	// ListFeed returns the newest posts across all users
	ListFeed(ctx context.Context, viewerID string, limit int) ([]ItemView, error)

	// ListByAuthor returns a user's posts and replies, newest first
	ListByAuthor(ctx context.Context, viewerID, authorID string, limit int) ([]ItemView, error)

	// ListReplies returns a post's replies, oldest first
	ListReplies(ctx context.Context, viewerID, postID string, limit int) ([]ItemView, error)
}
