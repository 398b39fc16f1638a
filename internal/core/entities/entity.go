package entities

import (
	"time"

	"Moxie/internal/core/media"
)

// Post is a top-level message. Body and media are immutable after creation.
type Post struct {
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	Media      *media.Object `json:"media,omitempty"`
	ID         string        `json:"id" db:"id"`
	AuthorID   string        `json:"authorId" db:"author_id"`
	Body       string        `json:"body" db:"body"`
	LikeCount  int           `json:"likeCount" db:"like_count"`
	ReplyCount int           `json:"replyCount" db:"reply_count"`
}

// Target returns the post as a like/mutation target
func (p *Post) Target() Target {
	return PostTarget(p.ID)
}

// Reply is a message inside a post's thread
type Reply struct {
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	Media     *media.Object `json:"media,omitempty"`
	ID        string        `json:"id" db:"id"`
	PostID    string        `json:"postId" db:"post_id"`
	AuthorID  string        `json:"authorId" db:"author_id"`
	Body      string        `json:"body" db:"body"`
	LikeCount int           `json:"likeCount" db:"like_count"`
}

// Target returns the reply as a like/mutation target
func (r *Reply) Target() Target {
	return ReplyTarget(r.ID)
}

// Like is a single user's like on a post or reply.
// At most one Like exists per (UserID, Target).
type Like struct {
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UserID    string    `json:"userId" db:"user_id"`
	Target    Target    `json:"target"`
}

// ItemView is the denormalized aggregate a view displays for one post or reply.
// For posts PostID equals Target.ID; for replies it is the thread's post.
type ItemView struct {
	CreatedAt  time.Time     `json:"createdAt"`
	Media      *media.Object `json:"media,omitempty"`
	Target     Target        `json:"target"`
	PostID     string        `json:"postId"`
	AuthorID   string        `json:"authorId"`
	Body       string        `json:"body"`
	LikeCount  int           `json:"likeCount"`
	ReplyCount int           `json:"replyCount"`
	Liked      bool          `json:"liked"`
}

// Deletion describes everything the authoritative store removed for one delete
type Deletion struct {
	Target   Target `json:"target"`
	AuthorID string `json:"authorId"`
	PostID   string `json:"postId"`
	// MediaKeys lists media of the deleted entity and of every cascaded reply
	MediaKeys []string `json:"mediaKeys,omitempty"`
	// ReplyAuthorIDs lists distinct authors of cascaded replies (post deletes only)
	ReplyAuthorIDs []string `json:"replyAuthorIds,omitempty"`
}

// Actor is the caller behind a mutation, derived from the authenticated token
type Actor struct {
	UserID string
}

// Anonymous returns the unauthenticated actor
func Anonymous() Actor {
	return Actor{}
}

// IsAuthenticated reports whether the actor carries a user identity
func (a Actor) IsAuthenticated() bool {
	return a.UserID != ""
}
