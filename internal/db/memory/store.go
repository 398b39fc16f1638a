// Package memory is an in-process entity gateway used in development mode and tests.
// It honours the same contract as the postgres gateway: authorization by actor,
// cascading deletes, and one like per (user, target).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/media"
)

type likeKey struct {
	userID string
	target entities.Target
}

// Store implements entities.Store and entities.Reader in memory
type Store struct {
	lastCreated   time.Time
	posts         map[string]*entities.Post
	replies       map[string]*entities.Reply
	repliesByPost map[string][]string
	likes         map[likeKey]time.Time
	now           func() time.Time
	mu            sync.RWMutex
}

// New creates an empty store
func New() *Store {
	return &Store{
		posts:         make(map[string]*entities.Post),
		replies:       make(map[string]*entities.Reply),
		repliesByPost: make(map[string][]string),
		likes:         make(map[likeKey]time.Time),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// === Mutations ===

func (s *Store) CreatePost(ctx context.Context, actor entities.Actor, body string, m *media.Object) (*entities.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !actor.IsAuthenticated() {
		return nil, entities.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post := &entities.Post{
		ID:        uuid.NewString(),
		AuthorID:  actor.UserID,
		Body:      body,
		Media:     cloneMedia(m),
		CreatedAt: s.tick(),
	}
	s.posts[post.ID] = post

	out := *post
	return &out, nil
}

func (s *Store) CreateReply(ctx context.Context, actor entities.Actor, postID, body string, m *media.Object) (*entities.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !actor.IsAuthenticated() {
		return nil, entities.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return nil, entities.ErrNotFound
	}

	reply := &entities.Reply{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  actor.UserID,
		Body:      body,
		Media:     cloneMedia(m),
		CreatedAt: s.tick(),
	}
	s.replies[reply.ID] = reply
	s.repliesByPost[postID] = append(s.repliesByPost[postID], reply.ID)
	post.ReplyCount++

	out := *reply
	return &out, nil
}

func (s *Store) DeletePost(ctx context.Context, actor entities.Actor, id string) (*entities.Deletion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !actor.IsAuthenticated() {
		return nil, entities.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	if post.AuthorID != actor.UserID {
		return nil, entities.ErrUnauthorized
	}

	del := &entities.Deletion{
		Target:   post.Target(),
		AuthorID: post.AuthorID,
		PostID:   post.ID,
	}
	if post.Media != nil {
		del.MediaKeys = append(del.MediaKeys, post.Media.Key)
	}

	seen := make(map[string]struct{})
	for _, replyID := range s.repliesByPost[id] {
		reply := s.replies[replyID]
		if reply.Media != nil {
			del.MediaKeys = append(del.MediaKeys, reply.Media.Key)
		}
		if _, dup := seen[reply.AuthorID]; !dup {
			seen[reply.AuthorID] = struct{}{}
			del.ReplyAuthorIDs = append(del.ReplyAuthorIDs, reply.AuthorID)
		}
		s.dropLikes(reply.Target())
		delete(s.replies, replyID)
	}
	delete(s.repliesByPost, id)

	s.dropLikes(post.Target())
	delete(s.posts, id)

	return del, nil
}

func (s *Store) DeleteReply(ctx context.Context, actor entities.Actor, id string) (*entities.Deletion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !actor.IsAuthenticated() {
		return nil, entities.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reply, ok := s.replies[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	if reply.AuthorID != actor.UserID {
		return nil, entities.ErrUnauthorized
	}

	del := &entities.Deletion{
		Target:   reply.Target(),
		AuthorID: reply.AuthorID,
		PostID:   reply.PostID,
	}
	if reply.Media != nil {
		del.MediaKeys = []string{reply.Media.Key}
	}

	s.dropLikes(reply.Target())
	delete(s.replies, id)

	ids := s.repliesByPost[reply.PostID]
	for i, rid := range ids {
		if rid == id {
			s.repliesByPost[reply.PostID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if post, ok := s.posts[reply.PostID]; ok && post.ReplyCount > 0 {
		post.ReplyCount--
	}

	return del, nil
}

func (s *Store) ToggleLike(ctx context.Context, actor entities.Actor, target entities.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !actor.IsAuthenticated() {
		return entities.ErrUnauthenticated
	}
	if err := target.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, ok := s.likeCounter(target)
	if !ok {
		return entities.ErrNotFound
	}

	key := likeKey{userID: actor.UserID, target: target}
	if _, liked := s.likes[key]; liked {
		delete(s.likes, key)
		if *count > 0 {
			*count--
		}
		return nil
	}

	s.likes[key] = s.now()
	*count++
	return nil
}

// === Reads ===

func (s *Store) GetPost(ctx context.Context, viewerID, id string) (*entities.ItemView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	view := s.postView(viewerID, post)
	return &view, nil
}

func (s *Store) ListFeed(ctx context.Context, viewerID string, limit int) ([]entities.ItemView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.ItemView, 0, len(s.posts))
	for _, p := range s.posts {
		items = append(items, s.postView(viewerID, p))
	}
	return newestFirst(items, limit), nil
}

func (s *Store) ListByAuthor(ctx context.Context, viewerID, authorID string, limit int) ([]entities.ItemView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entities.ItemView
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			items = append(items, s.postView(viewerID, p))
		}
	}
	for _, r := range s.replies {
		if r.AuthorID == authorID {
			items = append(items, s.replyView(viewerID, r))
		}
	}
	return newestFirst(items, limit), nil
}

func (s *Store) ListReplies(ctx context.Context, viewerID, postID string, limit int) ([]entities.ItemView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return nil, entities.ErrNotFound
	}

	ids := s.repliesByPost[postID]
	items := make([]entities.ItemView, 0, len(ids))
	for _, id := range ids {
		items = append(items, s.replyView(viewerID, s.replies[id]))
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// HasLike reports whether userID currently likes target
func (s *Store) HasLike(userID string, target entities.Target) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.likes[likeKey{userID: userID, target: target}]
	return ok
}

// LikeRows returns the number of like rows referencing target
func (s *Store) LikeRows(target entities.Target) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.likes {
		if k.target == target {
			n++
		}
	}
	return n
}

// PostCount returns the number of stored posts
func (s *Store) PostCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// ReplyExists reports whether the reply is still stored
func (s *Store) ReplyExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.replies[id]
	return ok
}

// === Helpers (caller holds the lock) ===

// tick returns a strictly increasing timestamp so ordering is stable in tests
func (s *Store) tick() time.Time {
	t := s.now()
	if !t.After(s.lastCreated) {
		t = s.lastCreated.Add(time.Microsecond)
	}
	s.lastCreated = t
	return t
}

func (s *Store) likeCounter(target entities.Target) (*int, bool) {
	switch target.Type {
	case entities.TargetPost:
		if p, ok := s.posts[target.ID]; ok {
			return &p.LikeCount, true
		}
	case entities.TargetReply:
		if r, ok := s.replies[target.ID]; ok {
			return &r.LikeCount, true
		}
	}
	return nil, false
}

func (s *Store) dropLikes(target entities.Target) {
	for k := range s.likes {
		if k.target == target {
			delete(s.likes, k)
		}
	}
}

func (s *Store) liked(viewerID string, target entities.Target) bool {
	if viewerID == "" {
		return false
	}
	_, ok := s.likes[likeKey{userID: viewerID, target: target}]
	return ok
}

func (s *Store) postView(viewerID string, p *entities.Post) entities.ItemView {
	return entities.ItemView{
		Target:     p.Target(),
		PostID:     p.ID,
		AuthorID:   p.AuthorID,
		Body:       p.Body,
		Media:      cloneMedia(p.Media),
		CreatedAt:  p.CreatedAt,
		LikeCount:  p.LikeCount,
		ReplyCount: p.ReplyCount,
		Liked:      s.liked(viewerID, p.Target()),
	}
}

func (s *Store) replyView(viewerID string, r *entities.Reply) entities.ItemView {
	return entities.ItemView{
		Target:    r.Target(),
		PostID:    r.PostID,
		AuthorID:  r.AuthorID,
		Body:      r.Body,
		Media:     cloneMedia(r.Media),
		CreatedAt: r.CreatedAt,
		LikeCount: r.LikeCount,
		Liked:     s.liked(viewerID, r.Target()),
	}
}

func newestFirst(items []entities.ItemView, limit int) []entities.ItemView {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []entities.ItemView{}
	}
	return items
}

func cloneMedia(m *media.Object) *media.Object {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}
