package entities

import (
	"fmt"
	"strings"
)

// TargetType distinguishes the two likeable/deletable entity kinds
type TargetType string

const (
	TargetPost  TargetType = "POST"
	TargetReply TargetType = "REPLY"
)

// Valid reports whether t is a known target type
func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetReply
}

// Target is the tagged reference {type, id} used by every coordinator
type Target struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}

// PostTarget builds a post target
func PostTarget(id string) Target {
	return Target{Type: TargetPost, ID: id}
}

// ReplyTarget builds a reply target
func ReplyTarget(id string) Target {
	return Target{Type: TargetReply, ID: id}
}

// Validate checks the type tag and id
func (t Target) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown target type %q", ErrInvalidTarget, t.Type)
	}
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: target id is required", ErrInvalidTarget)
	}
	return nil
}

func (t Target) String() string {
	return string(t.Type) + ":" + t.ID
}

// ParseTargetType accepts POST/REPLY in any case
func ParseTargetType(s string) (TargetType, error) {
	t := TargetType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown target type %q", ErrInvalidTarget, s)
	}
	return t, nil
}
