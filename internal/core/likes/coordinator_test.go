package likes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/invalidation"
	"Moxie/internal/core/views"
	"Moxie/internal/db/memory"
)

// scriptedStore delegates to the in-memory gateway, optionally holding each
// ToggleLike until released and failing chosen calls
type scriptedStore struct {
	*memory.Store
	release chan struct{}
	failOn  map[int]error
	calls   int
	mu      sync.Mutex
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{Store: memory.New(), failOn: map[int]error{}}
}

func (s *scriptedStore) ToggleLike(ctx context.Context, actor entities.Actor, target entities.Target) error {
	s.mu.Lock()
	s.calls++
	n := s.calls
	err := s.failOn[n]
	release := s.release
	s.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return err
	}
	return s.Store.ToggleLike(ctx, actor, target)
}

func (s *scriptedStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	store  *scriptedStore
	views  *views.Store
	coord  *Coordinator
	post   *entities.Post
	target entities.Target
	bob    entities.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := newScriptedStore()
	post, err := store.CreatePost(ctx, entities.Actor{UserID: "alice"}, "hello", nil)
	require.NoError(t, err)

	vs := views.NewStore("bob", views.NewReaderLoader(store, 0), 0, nil)
	_, err = vs.Get(ctx, views.Feed())
	require.NoError(t, err)
	_, err = vs.Get(ctx, views.PostThread(post.ID))
	require.NoError(t, err)

	return &fixture{
		store:  store,
		views:  vs,
		coord:  NewCoordinator(store, invalidation.NewRouter(nil, nil, nil), nil, nil),
		post:   post,
		target: post.Target(),
		bob:    entities.Actor{UserID: "bob"},
	}
}

func (f *fixture) displayed(t *testing.T, vc views.Context) State {
	t.Helper()
	items, ok := f.views.Peek(vc)
	require.True(t, ok, "%s should be cached", vc)
	for _, it := range items {
		if it.Target == f.target {
			return State{Liked: it.Liked, LikeCount: it.LikeCount}
		}
	}
	t.Fatalf("%s not displayed in %s", f.target, vc)
	return State{}
}

func wait(t *testing.T, p *Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-p.Done():
	case <-ctx.Done():
		t.Fatal("toggle did not settle")
	}
	return p.Err()
}

func TestToggle_AnonymousIsNoOp(t *testing.T) {
	f := newFixture(t)

	p, err := f.coord.Toggle(context.Background(), entities.Anonymous(), f.views, views.Feed(), f.target)
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Nil(t, p)
	assert.Equal(t, 0, f.store.callCount())
	assert.Equal(t, State{}, f.displayed(t, views.Feed()))
}

func TestToggle_OptimisticFlipThenSettle(t *testing.T) {
	f := newFixture(t)
	f.store.release = make(chan struct{})

	p, err := f.coord.Toggle(context.Background(), f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)

	want := State{Liked: true, LikeCount: 1}
	assert.Equal(t, want, p.Displayed())
	assert.Equal(t, want, f.displayed(t, views.Feed()), "flip is visible before the store answers")
	assert.Equal(t, want, f.displayed(t, views.PostThread(f.post.ID)))
	require.NotNil(t, p.Intent().Prior)
	assert.Equal(t, State{}, *p.Intent().Prior)

	close(f.store.release)
	require.NoError(t, wait(t, p))

	assert.True(t, f.store.HasLike("bob", f.target))
	assert.Equal(t, want, f.displayed(t, views.Feed()))
	assert.Nil(t, p.Intent().Prior, "prior state is discarded once settled")
}

func TestToggle_FailureRestoresPriorState(t *testing.T) {
	failures := []error{
		entities.NewNetworkError("toggleLike", errors.New("connection reset")),
		entities.ErrNotFound,
		entities.ErrUnauthenticated,
	}

	for _, cause := range failures {
		t.Run(cause.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.store.failOn[1] = cause

			before := f.displayed(t, views.Feed())
			p, err := f.coord.Toggle(context.Background(), f.bob, f.views, views.Feed(), f.target)
			require.NoError(t, err)

			assert.ErrorIs(t, wait(t, p), cause)
			assert.Equal(t, before, f.displayed(t, views.Feed()))
			assert.Equal(t, before, f.displayed(t, views.PostThread(f.post.ID)))
			assert.False(t, f.store.HasLike("bob", f.target))

			notices := f.views.Failures(views.Feed())
			require.Len(t, notices, 1, "failure is surfaced to the originating view")
			assert.Equal(t, f.target, notices[0].Target)
			assert.Empty(t, f.views.Failures(views.PostThread(f.post.ID)), "and only there")
		})
	}
}

func TestToggle_DoubleToggleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.release = make(chan struct{})
	ctx := context.Background()

	before := f.displayed(t, views.Feed())

	first, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)
	second, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)

	assert.Equal(t, before, f.displayed(t, views.Feed()), "latest flip wins on display")

	close(f.store.release)
	require.NoError(t, wait(t, first))
	require.NoError(t, wait(t, second))

	assert.Equal(t, 2, f.store.callCount())
	assert.False(t, f.store.HasLike("bob", f.target))
	assert.Equal(t, before, f.displayed(t, views.Feed()))
}

func TestToggle_RequestsOfOnePairRunInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var order []State
	var mu sync.Mutex
	f.store.release = make(chan struct{})

	pendings := make([]*Pending, 0, 3)
	for i := 0; i < 3; i++ {
		p, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
		require.NoError(t, err)
		pendings = append(pendings, p)
	}

	// Only the head of the chain may be in flight
	require.Eventually(t, func() bool { return f.store.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.store.callCount())

	close(f.store.release)
	for _, p := range pendings {
		require.NoError(t, wait(t, p))
		mu.Lock()
		order = append(order, p.Displayed())
		mu.Unlock()
	}

	assert.Equal(t, []State{
		{Liked: true, LikeCount: 1},
		{Liked: false, LikeCount: 0},
		{Liked: true, LikeCount: 1},
	}, order)
	assert.True(t, f.store.HasLike("bob", f.target))
}

func TestToggle_FailureCancelsQueuedIntents(t *testing.T) {
	f := newFixture(t)
	f.store.release = make(chan struct{})
	f.store.failOn[1] = entities.NewNetworkError("toggleLike", errors.New("timeout"))
	ctx := context.Background()

	before := f.displayed(t, views.Feed())

	first, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)
	second, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)

	close(f.store.release)
	assert.True(t, entities.IsNetworkError(wait(t, first)))
	assert.ErrorIs(t, wait(t, second), ErrCancelled)

	assert.Equal(t, 1, f.store.callCount())
	assert.False(t, f.store.HasLike("bob", f.target))
	assert.Equal(t, before, f.displayed(t, views.Feed()))
	assert.Len(t, f.views.Failures(views.Feed()), 1)

	// The pair is usable again afterwards
	third, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)
	require.NoError(t, wait(t, third))
	assert.True(t, f.store.HasLike("bob", f.target))
}

func TestToggle_FeedAndThreadConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	like, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)
	unlike, err := f.coord.Toggle(ctx, f.bob, f.views, views.PostThread(f.post.ID), f.target)
	require.NoError(t, err)

	require.NoError(t, wait(t, like))
	require.NoError(t, wait(t, unlike))

	feed := f.displayed(t, views.Feed())
	thread := f.displayed(t, views.PostThread(f.post.ID))
	assert.Equal(t, feed, thread)
	assert.Equal(t, State{Liked: false, LikeCount: 0}, feed)

	// And both agree with the authoritative store after a refetch
	f.views.Invalidate(views.Feed(), views.PostThread(f.post.ID))
	_, err = f.views.Get(ctx, views.Feed())
	require.NoError(t, err)
	_, err = f.views.Get(ctx, views.PostThread(f.post.ID))
	require.NoError(t, err)
	assert.Equal(t, feed, f.displayed(t, views.Feed()))
	assert.Equal(t, feed, f.displayed(t, views.PostThread(f.post.ID)))
}

func TestToggle_DifferentTargetsRunConcurrently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.CreatePost(ctx, entities.Actor{UserID: "alice"}, "second", nil)
	require.NoError(t, err)
	f.views.Invalidate(views.Feed())
	_, err = f.views.Get(ctx, views.Feed())
	require.NoError(t, err)

	f.store.release = make(chan struct{})
	a, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)
	b, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), other.Target())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.store.callCount() == 2 }, time.Second, time.Millisecond)
	close(f.store.release)
	require.NoError(t, wait(t, a))
	require.NoError(t, wait(t, b))
}

func TestToggle_LoadsOriginWhenNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fresh := views.NewStore("bob", views.NewReaderLoader(f.store, 0), 0, nil)

	p, err := f.coord.Toggle(ctx, f.bob, fresh, views.PostThread(f.post.ID), f.target)
	require.NoError(t, err)
	require.NoError(t, wait(t, p))
	assert.True(t, f.store.HasLike("bob", f.target))
}

func TestToggle_NotDisplayed(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Toggle(context.Background(), f.bob, f.views, views.Feed(), entities.ReplyTarget("nope"))
	assert.ErrorIs(t, err, views.ErrNotDisplayed)
	assert.Equal(t, 0, f.store.callCount())
}

func TestPending_WaitHonoursContext(t *testing.T) {
	f := newFixture(t)
	f.store.release = make(chan struct{})
	defer close(f.store.release)

	p, err := f.coord.Toggle(context.Background(), f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
	assert.NoError(t, p.Err(), "still pending")
}

func TestToggle_ReloadWhilePendingKeepsFlip(t *testing.T) {
	f := newFixture(t)
	f.store.release = make(chan struct{})
	ctx := context.Background()

	p, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)

	// The store has not seen the like yet; a reload must not erase the flip
	_, err = f.views.Refresh(ctx, views.Feed())
	require.NoError(t, err)
	liked := State{Liked: true, LikeCount: 1}
	assert.Equal(t, liked, f.displayed(t, views.Feed()))

	close(f.store.release)
	require.NoError(t, wait(t, p))
	assert.True(t, f.store.HasLike("bob", f.target))
	assert.Equal(t, liked, f.displayed(t, views.Feed()))
	assert.Equal(t, liked, f.displayed(t, views.PostThread(f.post.ID)))

	// A second toggle flips from the settled state and unlikes
	p, err = f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)
	assert.Equal(t, State{}, p.Displayed())
	require.NoError(t, wait(t, p))
	assert.False(t, f.store.HasLike("bob", f.target))
	assert.Equal(t, State{}, f.displayed(t, views.Feed()))
}

func TestToggle_ReloadAfterFailureShowsStoreState(t *testing.T) {
	f := newFixture(t)
	f.store.failOn[1] = entities.NewNetworkError("toggleLike", errors.New("timeout"))
	ctx := context.Background()

	p, err := f.coord.Toggle(ctx, f.bob, f.views, views.Feed(), f.target)
	require.NoError(t, err)
	assert.Error(t, wait(t, p))

	_, err = f.views.Refresh(ctx, views.Feed())
	require.NoError(t, err)
	assert.Equal(t, State{}, f.displayed(t, views.Feed()))
}

func TestToggle_FlipsFromOriginCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Someone else likes the post; only the thread is reloaded
	require.NoError(t, f.store.Store.ToggleLike(ctx, entities.Actor{UserID: "carol"}, f.target))
	_, err := f.views.Refresh(ctx, views.PostThread(f.post.ID))
	require.NoError(t, err)
	require.Equal(t, 0, f.displayed(t, views.Feed()).LikeCount)
	require.Equal(t, 1, f.displayed(t, views.PostThread(f.post.ID)).LikeCount)

	p, err := f.coord.Toggle(ctx, f.bob, f.views, views.PostThread(f.post.ID), f.target)
	require.NoError(t, err)
	want := State{Liked: true, LikeCount: 2}
	assert.Equal(t, want, p.Displayed())

	require.NoError(t, wait(t, p))
	assert.Equal(t, want, f.displayed(t, views.PostThread(f.post.ID)))
	assert.Equal(t, want, f.displayed(t, views.Feed()), "the stale copy is patched too")
}
