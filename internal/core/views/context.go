package views

import (
	"fmt"
	"strings"
)

// Kind identifies a family of cached view collections
type Kind string

const (
	KindFeed       Kind = "FEED"
	KindProfile    Kind = "PROFILE"
	KindPostThread Kind = "POST_THREAD"
	KindReplyList  Kind = "REPLY_LIST"
)

// Context addresses one cached collection. ID is empty for FEED, a user id for
// PROFILE, and a post id for POST_THREAD and REPLY_LIST.
type Context struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id,omitempty"`
}

func Feed() Context {
	return Context{Kind: KindFeed}
}

func Profile(userID string) Context {
	return Context{Kind: KindProfile, ID: userID}
}

func PostThread(postID string) Context {
	return Context{Kind: KindPostThread, ID: postID}
}

func ReplyList(postID string) Context {
	return Context{Kind: KindReplyList, ID: postID}
}

// Validate checks that the context is addressable
func (c Context) Validate() error {
	switch c.Kind {
	case KindFeed:
		if c.ID != "" {
			return fmt.Errorf("%w: FEED takes no id", ErrInvalidContext)
		}
		return nil
	case KindProfile, KindPostThread, KindReplyList:
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: %s requires an id", ErrInvalidContext, c.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidContext, c.Kind)
	}
}

func (c Context) String() string {
	if c.ID == "" {
		return string(c.Kind)
	}
	return string(c.Kind) + "(" + c.ID + ")"
}

// Parse builds a validated context from its wire form
func Parse(kind, id string) (Context, error) {
	c := Context{Kind: Kind(strings.ToUpper(strings.TrimSpace(kind))), ID: strings.TrimSpace(id)}
	if err := c.Validate(); err != nil {
		return Context{}, err
	}
	return c, nil
}
