package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/client/cache"
	"github.com/dmitrijs2005/growthvault/internal/client/remote"
	"github.com/dmitrijs2005/growthvault/internal/client/state"
	"github.com/dmitrijs2005/growthvault/internal/models"
	"github.com/dmitrijs2005/growthvault/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// countingCache records how many writes reach the local cache.
type countingCache struct {
	*cache.Store
	mu     sync.Mutex
	writes []string
}

func (c *countingCache) Save(ctx context.Context, doc *models.Document, opts cache.SaveOptions) (*cache.SaveResult, error) {
	res, err := c.Store.Save(ctx, doc, opts)
	if err == nil {
		c.mu.Lock()
		c.writes = append(c.writes, res.Timestamp)
		c.mu.Unlock()
	}
	return res, err
}

func (c *countingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// hookStore lets a test run code in the middle of remote calls and capture
// the subscription callback.
type hookStore struct {
	*remote.MemoryStore
	onGet    func()
	onPut    func()
	override *models.Document
	onChange remote.ChangeFunc
}

func (h *hookStore) Get(ctx context.Context, userID string) (*models.Document, error) {
	doc, err := h.MemoryStore.Get(ctx, userID)
	if h.override != nil {
		doc, err = h.override, nil
	}
	if h.onGet != nil {
		h.onGet()
	}
	return doc, err
}

// Put runs onPut once, before the write reaches the store.
func (h *hookStore) Put(ctx context.Context, userID string, doc *models.Document) error {
	if fn := h.onPut; fn != nil {
		h.onPut = nil
		fn()
	}
	return h.MemoryStore.Put(ctx, userID, doc)
}

func (h *hookStore) Subscribe(ctx context.Context, userID string, fn remote.ChangeFunc) (*remote.Subscription, error) {
	h.onChange = fn
	return h.MemoryStore.Subscribe(ctx, userID, fn)
}

type fixture struct {
	orch   *Orchestrator
	cache  *countingCache
	remote *hookStore
	state  *state.Container
	clock  *timex.ManualClock
}

func newFixture(t *testing.T, quota int64) *fixture {
	t.Helper()
	clock := timex.NewManualClock(epoch)
	cc := &countingCache{Store: cache.NewStore(cache.NewFileStore(t.TempDir(), quota), cache.WithClock(clock))}
	rs := &hookStore{MemoryStore: remote.NewMemoryStore()}
	require.NoError(t, rs.Register(context.Background(), "ann", "pw"))
	st := state.NewContainer(nil)
	return &fixture{
		orch:   New(cc, rs, st, WithClock(clock)),
		cache:  cc,
		remote: rs,
		state:  st,
		clock:  clock,
	}
}

func (f *fixture) signIn(t *testing.T) *remote.Identity {
	t.Helper()
	id, _, err := f.orch.SignIn(context.Background(), "ann", "pw")
	require.NoError(t, err)
	return id
}

func docWith(ts int64, ids ...int64) *models.Document {
	d := models.NewDocument()
	for _, id := range ids {
		d.Items = append(d.Items, models.Entry{ID: id, Author: "ann", Title: "t", RichText: "<p>x</p>"})
	}
	d.Normalize()
	if ts > 0 {
		d.Timestamp = models.FormatTimestamp(ts)
	}
	return d
}

func TestSave_TimestampsStrictlyIncreaseUnderClockStallAndRegression(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 10; i++ {
		switch {
		case i == 4:
			f.clock.Advance(-time.Hour)
		case i%3 == 0:
			f.clock.Advance(time.Millisecond)
		}
		res, err := f.orch.Save(ctx, f.state.GetStateForSaving(), SaveOptions{})
		require.NoError(t, err)
		ts, err := models.ParseTimestamp(res.Timestamp)
		require.NoError(t, err)
		assert.Greater(t, ts, prev, "save %d", i)
		assert.Equal(t, ts, f.state.LastSaveTimestamp())
		prev = ts
	}
}

func TestSave_LocalWhenSignedOut(t *testing.T) {
	f := newFixture(t, 1<<20)
	res, err := f.orch.Save(context.Background(), docWith(0, 1), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Nil(t, res.Warning)
	assert.Equal(t, models.FormatTimestamp(epoch.UnixMilli()), res.Timestamp)
}

func TestSave_RemoteFirstThenReadThroughCache(t *testing.T) {
	f := newFixture(t, 1<<20)
	id := f.signIn(t)
	ctx := context.Background()
	writesBefore := f.cache.count()

	res, err := f.orch.Save(ctx, docWith(0, 1), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Nil(t, res.Warning)

	stored := f.remote.Stored(id.UserID)
	require.NotNil(t, stored)
	assert.Equal(t, res.Timestamp, stored.Timestamp)

	cached, err := f.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Timestamp, cached.Timestamp, "cache carries the remote timestamp verbatim")
	assert.Equal(t, writesBefore+1, f.cache.count(), "own echo does not cause a second cache write")
}

func TestSave_RemoteFailureDegradesToLocalWithWarning(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.signIn(t)
	ctx := context.Background()

	offline := errors.New("network down")
	f.remote.SetError(offline)

	res, err := f.orch.Save(ctx, docWith(0, 1), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	require.NotNil(t, res.Warning)
	assert.ErrorIs(t, res.Warning, offline)

	var w *SyncWarning
	require.ErrorAs(t, error(res.Warning), &w)
}

func TestSave_LocalOnlySkipsRemote(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.signIn(t)
	puts := f.remote.Puts()

	res, err := f.orch.Save(context.Background(), docWith(0, 1), SaveOptions{LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Equal(t, puts, f.remote.Puts())
}

func TestSave_PreserveTimestamp(t *testing.T) {
	f := newFixture(t, 1<<20)
	res, err := f.orch.Save(context.Background(), docWith(1000, 1), SaveOptions{PreserveTimestamp: true})
	require.NoError(t, err)
	assert.Equal(t, models.FormatTimestamp(1000), res.Timestamp)
}

func TestSave_QuotaFailureLeavesLastSaveUntouched(t *testing.T) {
	f := newFixture(t, 64)
	before := f.state.LastSaveTimestamp()

	big := docWith(0, 1)
	big.Items[0].RichText = string(make([]byte, 1000))
	_, err := f.orch.Save(context.Background(), big, SaveOptions{})
	require.ErrorIs(t, err, cache.ErrQuotaExceeded)

	var qe *cache.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Positive(t, qe.Attempted)
	assert.Equal(t, before, f.state.LastSaveTimestamp())
}

func TestReconcile_SameNotificationTwiceWritesCacheOnce(t *testing.T) {
	f := newFixture(t, 1<<20)
	id := f.signIn(t)
	writes := f.cache.count()

	newer := docWith(epoch.UnixMilli()+5000, 1, 2)
	f.remote.Inject(id.UserID, newer)
	f.remote.Inject(id.UserID, newer)

	assert.Equal(t, writes+1, f.cache.count())
}

func TestReconcile_RemoteWinsViaSubscription(t *testing.T) {
	f := newFixture(t, 1<<20)
	id := f.signIn(t)
	ctx := context.Background()

	_, err := f.orch.Save(ctx, docWith(0, 1), SaveOptions{})
	require.NoError(t, err)
	t0 := f.state.LastSaveTimestamp()
	puts := f.remote.Puts()

	t1 := t0 + 60_000
	f.remote.Inject(id.UserID, docWith(t1, 7, 8))

	s := f.state.GetState()
	require.Len(t, s.Items, 2)
	assert.Equal(t, int64(7), s.Items[0].ID)
	assert.Equal(t, t1, s.LastSaveTimestamp)

	cached, err := f.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, t1, cached.TimestampMillis())
	assert.Equal(t, puts, f.remote.Puts(), "no push back to remote")
}

func TestReconcile_OlderRemotePushesLocal(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.signIn(t)
	_, err := f.orch.Save(context.Background(), docWith(0, 1), SaveOptions{})
	require.NoError(t, err)
	writes := f.cache.count()
	puts := f.remote.Puts()

	// Stale echo: older than the local state; local wins and is pushed.
	res, err := f.orch.Reconcile(context.Background(), docWith(f.state.LastSaveTimestamp()-10, 9))
	require.NoError(t, err)
	assert.Equal(t, ResolutionLocalWins, res)
	assert.Equal(t, writes, f.cache.count())
	assert.Equal(t, puts+1, f.remote.Puts())
	assert.Equal(t, int64(1), f.state.GetState().Items[0].ID)
}

func TestLoad_LocalWinsPushesToRemote(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	// Work done offline: local cache holds T2.
	t2 := epoch.UnixMilli() + 10_000
	_, err := f.cache.Save(ctx, docWith(t2, 1, 2, 3), cache.SaveOptions{PreserveTimestamp: true})
	require.NoError(t, err)

	// Remote still holds older T1.
	t1 := epoch.UnixMilli()
	f.remote.Inject("user-ann", docWith(t1, 1))

	_, res, err := f.orch.SignIn(ctx, "ann", "pw")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, ResolutionLocalWins, res.Resolution)

	stored := f.remote.Stored("user-ann")
	assert.Equal(t, t2, stored.TimestampMillis())
	assert.Len(t, stored.Items, 3)
}

func TestLoad_RemoteWinsOnLoad(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	_, err := f.cache.Save(ctx, docWith(1000, 1), cache.SaveOptions{PreserveTimestamp: true})
	require.NoError(t, err)
	f.remote.Inject("user-ann", docWith(2000, 5, 6))

	_, res, err := f.orch.SignIn(ctx, "ann", "pw")
	require.NoError(t, err)
	assert.Equal(t, ResolutionRemoteWins, res.Resolution)
	assert.Len(t, f.state.GetState().Items, 2)

	cached, err := f.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), cached.TimestampMillis())
}

func TestLoad_FallsBackToLocal(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.signIn(t)
	ctx := context.Background()

	_, err := f.cache.Save(ctx, docWith(5000, 4), cache.SaveOptions{PreserveTimestamp: true})
	require.NoError(t, err)
	f.remote.SetError(errors.New("offline"))

	res, err := f.orch.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Equal(t, int64(5000), f.state.LastSaveTimestamp())
}

func TestLoad_NoDataAnywhere(t *testing.T) {
	f := newFixture(t, 1<<20)
	_, err := f.orch.Load(context.Background())
	require.ErrorIs(t, err, ErrNoData)
}

func TestLoad_DiscardsResultForPreviousIdentity(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.signIn(t)
	ctx := context.Background()
	f.remote.override = docWith(epoch.UnixMilli()+1000, 1, 2)

	before := f.state.GetState()
	f.remote.onGet = func() { require.NoError(t, f.orch.SignOut(ctx)) }

	_, err := f.orch.Load(ctx)
	require.ErrorIs(t, err, ErrIdentityChanged)
	assert.Equal(t, before.Items, f.state.GetState().Items)
	assert.Zero(t, f.cache.count())
}

func TestNotificationAfterSignOutIsDropped(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.signIn(t)
	ctx := context.Background()
	callback := f.remote.onChange
	require.NotNil(t, callback)

	require.NoError(t, f.orch.SignOut(ctx))
	assert.Nil(t, f.orch.Identity())
	assert.Zero(t, f.remote.Subscribers())

	writes := f.cache.count()
	callback(docWith(epoch.UnixMilli()+99_000, 42))
	assert.Equal(t, writes, f.cache.count())
	for _, it := range f.state.GetState().Items {
		assert.NotEqual(t, int64(42), it.ID)
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	f := newFixture(t, 1<<20)
	_, _, err := f.orch.SignIn(context.Background(), "ann", "bad")
	require.ErrorIs(t, err, remote.ErrUnauthorized)
	assert.Nil(t, f.orch.Identity())
}

func TestLocalOnlyOrchestrator(t *testing.T) {
	clock := timex.NewManualClock(epoch)
	st := state.NewContainer(nil)
	o := New(cache.NewStore(cache.NewFileStore(t.TempDir(), 1<<20)), nil, st, WithClock(clock))

	res, err := o.Save(context.Background(), docWith(0, 1), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)

	_, _, err = o.SignIn(context.Background(), "a", "b")
	require.Error(t, err)
	require.NoError(t, o.SignOut(context.Background()))
}

func TestSave_NewerRemoteDuringPutWinsEverywhere(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()
	id := f.signIn(t)

	otherTS := epoch.Add(time.Minute).UnixMilli()
	f.remote.onPut = func() {
		f.remote.Inject(id.UserID, docWith(otherTS, 7))
	}

	res, err := f.orch.Save(ctx, docWith(0, 42), SaveOptions{})
	require.NoError(t, err)
	assert.True(t, res.Superseded)
	assert.Equal(t, models.FormatTimestamp(otherTS), res.Timestamp)

	assert.Equal(t, otherTS, f.state.LastSaveTimestamp())
	assert.Equal(t, []int64{7}, itemIDs(f.state.GetState().Items))

	cached, err := f.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.FormatTimestamp(otherTS), cached.Timestamp)
	assert.Equal(t, []int64{7}, itemIDs(cached.Items))

	stored := f.remote.Stored(id.UserID)
	require.NotNil(t, stored)
	assert.Equal(t, models.FormatTimestamp(otherTS), stored.Timestamp)
	assert.Equal(t, []int64{7}, itemIDs(stored.Items))

	assert.Greater(t, f.orch.NextTimestamp(), otherTS)
}

func TestSave_OlderRemoteDuringPutIsOverwritten(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()
	id := f.signIn(t)

	f.clock.Advance(time.Minute)
	olderTS := epoch.Add(time.Second).UnixMilli()
	f.remote.onPut = func() {
		f.remote.Inject(id.UserID, docWith(olderTS, 7))
	}

	res, err := f.orch.Save(ctx, docWith(0, 42), SaveOptions{})
	require.NoError(t, err)
	assert.False(t, res.Superseded)

	ts := epoch.Add(time.Minute).UnixMilli()
	assert.Equal(t, ts, f.state.LastSaveTimestamp())
	stored := f.remote.Stored(id.UserID)
	require.NotNil(t, stored)
	assert.Equal(t, []int64{42}, itemIDs(stored.Items))
	cached, err := f.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, itemIDs(cached.Items))
}

func TestSave_LocalSaveAfterRemoteAppliedIsSuperseded(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()
	id := f.signIn(t)

	failing := errors.New("offline")
	otherTS := epoch.Add(time.Minute).UnixMilli()
	f.remote.onPut = func() {
		f.remote.Inject(id.UserID, docWith(otherTS, 7))
		f.remote.SetError(failing)
	}
	t.Cleanup(func() { f.remote.SetError(nil) })

	res, err := f.orch.Save(ctx, docWith(0, 42), SaveOptions{})
	require.NoError(t, err)
	assert.True(t, res.Superseded)
	require.NotNil(t, res.Warning)
	assert.Equal(t, otherTS, f.state.LastSaveTimestamp())

	cached, err := f.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, itemIDs(cached.Items))
}

func itemIDs(items []models.Entry) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
