package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addItem(id int64, author string) func(*State) error {
	return func(s *State) error {
		s.Items = append(s.Items, models.Entry{ID: id, Author: author, Title: "t"})
		s.AuthorOrder = models.NormalizeAuthorOrder(s.AuthorOrder, s.Items)
		s.ItemCounter = id
		return nil
	}
}

func TestGetState_ReturnsDeepCopy(t *testing.T) {
	c := NewContainer(nil)
	require.NoError(t, c.SetState(context.Background(), addItem(1, "a")))

	s := c.GetState()
	s.Items[0].Author = "mutated"
	s.AuthorOrder[0] = "mutated"

	assert.Equal(t, "a", c.GetState().Items[0].Author)
	assert.Equal(t, []string{"a"}, c.Get(FieldAuthorOrder))
	assert.Nil(t, c.Get(Field("nope")))
}

func TestSetState_NotifiesInSubscriptionOrder(t *testing.T) {
	c := NewContainer(nil)
	var calls []string

	c.Subscribe(TopicTitles, func(_ context.Context, _, _ State, _ []Field) { calls = append(calls, "titles") })
	c.Subscribe(TopicItems, func(_ context.Context, n, o State, changed []Field) {
		calls = append(calls, "items")
		assert.Len(t, n.Items, 1)
		assert.Empty(t, o.Items)
		assert.Contains(t, changed, FieldItems)
		assert.True(t, Touches(changed, TopicItems))
		assert.True(t, Touches(changed, TopicAuthors))
		assert.False(t, Touches(changed, TopicTitles))
	})
	c.Subscribe(TopicAll, func(_ context.Context, _, _ State, _ []Field) { calls = append(calls, "all") })

	require.NoError(t, c.SetState(context.Background(), addItem(1, "a")))
	assert.Equal(t, []string{"titles", "items", "all"}, calls, "every subscriber is called regardless of topic")
}

func TestSetState_NoChangeStillNotifies(t *testing.T) {
	c := NewContainer(nil)
	n := 0
	c.Subscribe(TopicAll, func(_ context.Context, _, _ State, changed []Field) {
		n++
		assert.Empty(t, changed)
	})
	require.NoError(t, c.SetState(context.Background(), func(*State) error { return nil }))
	assert.Equal(t, 1, n)
}

func TestSetState_MutateErrorLeavesStateUntouched(t *testing.T) {
	c := NewContainer(nil)
	notified := false
	c.Subscribe(TopicAll, func(context.Context, State, State, []Field) { notified = true })

	err := c.SetState(context.Background(), func(s *State) error {
		s.Items = append(s.Items, models.Entry{ID: 1, Author: "a"})
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, c.GetState().Items)
	assert.False(t, notified)
}

func TestSetState_ReentrantUpdateIsDropped(t *testing.T) {
	c := NewContainer(nil)
	var innerErr error
	calls := 0

	c.Subscribe(TopicItems, func(ctx context.Context, _, _ State, _ []Field) {
		calls++
		innerErr = c.SetState(ctx, addItem(99, "storm"))
	})

	require.NoError(t, c.SetState(context.Background(), addItem(1, "a")))
	require.ErrorIs(t, innerErr, ErrReentrantUpdate)
	assert.Equal(t, 1, calls, "no notification storm")

	s := c.GetState()
	require.Len(t, s.Items, 1)
	assert.Equal(t, int64(1), s.Items[0].ID)
}

func TestUnsubscribe(t *testing.T) {
	c := NewContainer(nil)
	n := 0
	unsub := c.Subscribe(TopicAll, func(context.Context, State, State, []Field) { n++ })
	require.NoError(t, c.SetState(context.Background(), addItem(1, "a")))
	unsub()
	require.NoError(t, c.SetState(context.Background(), addItem(2, "a")))
	assert.Equal(t, 1, n)
}

func TestLoadStateAndGetStateForSaving(t *testing.T) {
	c := NewContainer(nil)
	doc := models.NewDocument()
	doc.Items = []models.Entry{{ID: 5, Author: "z"}, {ID: 6, Author: "y"}}
	doc.AuthorOrder = []string{"y", "z"}
	doc.ItemCounter = 6
	doc.Titles.MainTitle = "Mine"
	doc.Timestamp = "2024-05-01T10:00:00.000Z"

	require.NoError(t, c.LoadState(context.Background(), doc))
	assert.Equal(t, doc.TimestampMillis(), c.LastSaveTimestamp())

	out := c.GetStateForSaving()
	assert.Equal(t, doc.Items, out.Items)
	assert.Equal(t, []string{"y", "z"}, out.AuthorOrder)
	assert.Equal(t, "Mine", out.Titles.MainTitle)
	assert.Equal(t, doc.Timestamp, out.Timestamp)

	out.Items[0].Author = "changed"
	assert.Equal(t, "z", c.GetState().Items[0].Author)

	require.Error(t, c.LoadState(context.Background(), nil))
}

func TestSetLastSaveTimestamp_SilentAndAllowedInListener(t *testing.T) {
	c := NewContainer(nil)
	n := 0
	c.Subscribe(TopicAll, func(context.Context, State, State, []Field) {
		n++
		c.SetLastSaveTimestamp(42)
	})
	require.NoError(t, c.SetState(context.Background(), addItem(1, "a")))
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(42), c.LastSaveTimestamp())

	c.SetLastSaveTimestamp(43)
	assert.Equal(t, 1, n)
	assert.Equal(t, "1970-01-01T00:00:00.043Z", c.GetStateForSaving().Timestamp)
}

func TestSetState_ListenerWithFreshContextIsDropped(t *testing.T) {
	c := NewContainer(nil)
	var inner error
	calls := 0
	c.Subscribe(TopicAll, func(context.Context, State, State, []Field) {
		calls++
		inner = c.SetState(context.Background(), addItem(99, "storm"))
	})

	done := make(chan error, 1)
	go func() { done <- c.SetState(context.Background(), addItem(1, "a")) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SetState from a listener blocked")
	}
	assert.ErrorIs(t, inner, ErrReentrantUpdate)
	assert.Equal(t, 1, calls)
	assert.Len(t, c.GetState().Items, 1)

	require.NoError(t, c.SetState(context.Background(), addItem(2, "b")))
	assert.Len(t, c.GetState().Items, 2)
}

func TestSetState_ConcurrentWritersAreSerialized(t *testing.T) {
	c := NewContainer(nil)
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errs <- c.SetState(context.Background(), func(s *State) error {
				s.Items = append(s.Items, models.Entry{ID: id, Author: "a", Title: "t"})
				return nil
			})
		}(int64(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, c.GetState().Items, writers)
}

func TestSetLastSaveTimestamp_NeverMovesBackwards(t *testing.T) {
	c := NewContainer(nil)
	c.SetLastSaveTimestamp(100)
	c.SetLastSaveTimestamp(50)
	assert.Equal(t, int64(100), c.LastSaveTimestamp())
	c.SetLastSaveTimestamp(101)
	assert.Equal(t, int64(101), c.LastSaveTimestamp())
}
