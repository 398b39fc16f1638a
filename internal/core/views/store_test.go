package views

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Moxie/internal/core/entities"
	"Moxie/internal/db/memory"
)

type countingLoader struct {
	items []entities.ItemView
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (l *countingLoader) Load(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.items, nil
}

func item(id string, likes int) entities.ItemView {
	return entities.ItemView{Target: entities.PostTarget(id), PostID: id, LikeCount: likes}
}

func TestGet_ReadThroughAndHit(t *testing.T) {
	loader := &countingLoader{items: []entities.ItemView{item("p1", 0)}}
	s := NewStore("alice", loader, 0, nil)

	first, err := s.Get(context.Background(), Feed())
	require.NoError(t, err)
	second, err := s.Get(context.Background(), Feed())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestGet_ReturnsCopies(t *testing.T) {
	loader := &countingLoader{items: []entities.ItemView{item("p1", 0)}}
	s := NewStore("alice", loader, 0, nil)

	got, err := s.Get(context.Background(), Feed())
	require.NoError(t, err)
	got[0].LikeCount = 99

	cached, ok := s.Peek(Feed())
	require.True(t, ok)
	assert.Equal(t, 0, cached[0].LikeCount)
}

func TestGet_ExpiresAfterTTL(t *testing.T) {
	loader := &countingLoader{items: []entities.ItemView{item("p1", 0)}}
	s := NewStore("alice", loader, time.Minute, nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Get(context.Background(), Feed())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, ok := s.Peek(Feed())
	assert.False(t, ok)

	_, err = s.Get(context.Background(), Feed())
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestGet_ConcurrentMissesShareOneLoad(t *testing.T) {
	loader := &countingLoader{items: []entities.ItemView{item("p1", 0)}, gate: make(chan struct{})}
	s := NewStore("alice", loader, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Get(context.Background(), Feed())
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestGet_LoadRacingInvalidationIsNotCached(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32
	var s *Store
	loader := LoaderFunc(func(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error) {
		if calls.Add(1) == 1 {
			<-gate
			return []entities.ItemView{item("stale", 0)}, nil
		}
		return []entities.ItemView{item("fresh", 0)}, nil
	})
	s = NewStore("alice", loader, 0, nil)

	done := make(chan []entities.ItemView)
	go func() {
		items, _ := s.Get(context.Background(), Feed())
		done <- items
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Invalidate(Feed())
	close(gate)

	items := <-done
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].Target.ID)

	cached, ok := s.Peek(Feed())
	require.True(t, ok)
	assert.Equal(t, "fresh", cached[0].Target.ID)
}

func TestGet_ErrorIsNotCached(t *testing.T) {
	loader := &countingLoader{err: errors.New("boom")}
	s := NewStore("alice", loader, 0, nil)

	_, err := s.Get(context.Background(), Feed())
	assert.Error(t, err)
	_, ok := s.Peek(Feed())
	assert.False(t, ok)
}

func TestGet_InvalidContext(t *testing.T) {
	s := NewStore("alice", &countingLoader{}, 0, nil)
	_, err := s.Get(context.Background(), Context{Kind: KindProfile})
	assert.ErrorIs(t, err, ErrInvalidContext)
}

func TestPatch_AppliesAcrossContexts(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error) {
		return []entities.ItemView{item("p1", 3), item("p2", 1)}, nil
	})
	s := NewStore("alice", loader, 0, nil)
	ctx := context.Background()

	_, err := s.Get(ctx, Feed())
	require.NoError(t, err)
	_, err = s.Get(ctx, Profile("bob"))
	require.NoError(t, err)

	n := s.Patch(entities.PostTarget("p1"), func(v *entities.ItemView) {
		v.Liked = true
		v.LikeCount++
	})
	assert.Equal(t, 2, n)

	for _, vc := range []Context{Feed(), Profile("bob")} {
		items, ok := s.Peek(vc)
		require.True(t, ok)
		assert.True(t, items[0].Liked)
		assert.Equal(t, 4, items[0].LikeCount)
		assert.False(t, items[1].Liked)
	}

	got, ok := s.Lookup(entities.PostTarget("p1"))
	require.True(t, ok)
	assert.Equal(t, 4, got.LikeCount)

	_, ok = s.Lookup(entities.PostTarget("unknown"))
	assert.False(t, ok)
}

func TestFailures_DrainPerOrigin(t *testing.T) {
	s := NewStore("alice", &countingLoader{}, 0, nil)

	s.ReportFailure(Feed(), Failure{Op: "like", Message: "network error"})
	s.ReportFailure(PostThread("p1"), Failure{Op: "like", Message: "not found"})

	feed := s.Failures(Feed())
	require.Len(t, feed, 1)
	assert.Equal(t, "network error", feed[0].Message)
	assert.False(t, feed[0].At.IsZero())

	assert.Empty(t, s.Failures(Feed()), "failures are drained")
	assert.Len(t, s.Failures(PostThread("p1")), 1)
}

func TestReaderLoader(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	alice := entities.Actor{UserID: "alice"}

	post, err := db.CreatePost(ctx, alice, "hello", nil)
	require.NoError(t, err)
	_, err = db.CreateReply(ctx, alice, post.ID, "reply", nil)
	require.NoError(t, err)

	loader := NewReaderLoader(db, 10)

	feed, err := loader.Load(ctx, "", Feed())
	require.NoError(t, err)
	assert.Len(t, feed, 1)

	profile, err := loader.Load(ctx, "", Profile("alice"))
	require.NoError(t, err)
	assert.Len(t, profile, 2)

	thread, err := loader.Load(ctx, "", PostThread(post.ID))
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, 1, thread[0].ReplyCount)

	replies, err := loader.Load(ctx, "", ReplyList(post.ID))
	require.NoError(t, err)
	assert.Len(t, replies, 1)

	_, err = loader.Load(ctx, "", PostThread("missing"))
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestGet_CancelledCallerLeavesSharedLoadRunning(t *testing.T) {
	loader := &countingLoader{items: []entities.ItemView{item("p1", 0)}, gate: make(chan struct{})}
	s := NewStore("alice", loader, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx, Feed())
		first <- err
	}()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan []entities.ItemView, 1)
	go func() {
		items, err := s.Get(context.Background(), Feed())
		assert.NoError(t, err)
		second <- items
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(loader.gate)
	items := <-second
	require.Len(t, items, 1)
	assert.Equal(t, int32(1), loader.calls.Load())

	_, ok := s.Peek(Feed())
	assert.True(t, ok, "the shared load is still cached")
}

func TestOverlay_SurvivesReload(t *testing.T) {
	loader := &countingLoader{items: []entities.ItemView{item("p1", 3), item("p2", 1)}}
	s := NewStore("alice", loader, 0, nil)
	ctx := context.Background()

	s.SetOverlay(entities.PostTarget("p1"), func(v *entities.ItemView) {
		v.Liked = true
		v.LikeCount++
	})
	items, err := s.Refresh(ctx, Feed())
	require.NoError(t, err)
	assert.True(t, items[0].Liked)
	assert.Equal(t, 4, items[0].LikeCount)
	assert.Equal(t, 1, items[1].LikeCount)
	assert.Equal(t, 3, loader.items[0].LikeCount, "loader results are not mutated")

	s.ClearOverlay(entities.PostTarget("p1"))
	items, err = s.Refresh(ctx, Feed())
	require.NoError(t, err)
	assert.False(t, items[0].Liked)
	assert.Equal(t, 3, items[0].LikeCount)
}

func TestLookupIn_PrefersOrigin(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error) {
		if vc.Kind == KindFeed {
			return []entities.ItemView{item("p1", 1)}, nil
		}
		return []entities.ItemView{item("p1", 5)}, nil
	})
	s := NewStore("alice", loader, 0, nil)
	ctx := context.Background()

	_, err := s.Get(ctx, Feed())
	require.NoError(t, err)
	_, err = s.Get(ctx, PostThread("p1"))
	require.NoError(t, err)

	got, ok := s.LookupIn(PostThread("p1"), entities.PostTarget("p1"))
	require.True(t, ok)
	assert.Equal(t, 5, got.LikeCount)

	got, ok = s.LookupIn(Feed(), entities.PostTarget("p1"))
	require.True(t, ok)
	assert.Equal(t, 1, got.LikeCount)

	// Falls back to any cached copy when origin is not held
	_, ok = s.LookupIn(Profile("bob"), entities.PostTarget("p1"))
	assert.True(t, ok)
}
