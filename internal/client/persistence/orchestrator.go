package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/client/cache"
	"github.com/dmitrijs2005/growthvault/internal/client/remote"
	"github.com/dmitrijs2005/growthvault/internal/client/state"
	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/models"
	"github.com/dmitrijs2005/growthvault/internal/timex"
)

// Orchestrator routes saves and loads between the local cache and the
// remote store. It never edits document content; it only stamps timestamps
// and moves whole documents.
//
// Callers must not issue overlapping Save calls for the same document; the
// entry service serializes them. State listeners must not call Save: a
// remote document is applied to the state while applyMu is held.
type Orchestrator struct {
	local  LocalCache
	remote remote.Store
	state  StateContainer
	clock  timex.Clock
	logger logging.Logger

	mu         sync.Mutex
	identity   *remote.Identity
	generation uint64
	sub        *remote.Subscription
	lastIssued int64
	// inflight is the timestamp of the remote write in progress, 0 if none.
	inflight int64
	// applied counts remote documents that replaced the state.
	applied uint64

	// applyMu orders a save's cache write against remote documents being
	// applied, so neither overwrites the other in the cache.
	applyMu sync.Mutex
}

// A remote change that collides with a running state notification is
// retried a few times before it is given up until the next change arrives.
const (
	remoteApplyAttempts = 5
	remoteApplyBackoff  = 20 * time.Millisecond
)

type Option func(*Orchestrator)

func WithClock(c timex.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New wires an orchestrator. rs may be nil for a local-only client.
func New(local LocalCache, rs remote.Store, st StateContainer, opts ...Option) *Orchestrator {
	o := &Orchestrator{local: local, remote: rs, state: st, clock: timex.RealClock{}}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNop(o.logger).With("module", "persistence")
	return o
}

// NextTimestamp returns max(now, last+1) in Unix milliseconds, where last is
// the greater of the state's last save and the last value handed out.
func (o *Orchestrator) NextTimestamp() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nextTimestampLocked()
}

func (o *Orchestrator) nextTimestampLocked() int64 {
	last := max(o.state.LastSaveTimestamp(), o.lastIssued)
	next := max(o.clock.Now().UnixMilli(), last+1)
	o.lastIssued = next
	return next
}

// Identity returns the active remote identity, or nil.
func (o *Orchestrator) Identity() *remote.Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.identity == nil {
		return nil
	}
	id := *o.identity
	return &id
}

func (o *Orchestrator) current() (*remote.Identity, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.identity == nil || o.remote == nil {
		return nil, o.generation
	}
	id := *o.identity
	return &id, o.generation
}

func (o *Orchestrator) isCurrent(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation == gen && o.identity != nil
}

// Save persists doc. With a remote identity and without LocalOnly the
// document goes to the remote store first and then, with the same
// timestamp, to the local cache. Otherwise, or when the remote write fails,
// it goes to the local cache only; a remote failure is reported through
// SaveResult.Warning, not as an error.
//
// A newer remote document applied while the save was in flight wins: the
// cache keeps it, the state's document is pushed back over ours and the
// result is marked Superseded.
func (o *Orchestrator) Save(ctx context.Context, doc *models.Document, opts SaveOptions) (*SaveResult, error) {
	if doc == nil {
		return nil, errors.New("save: nil document")
	}
	doc = doc.Clone()

	o.mu.Lock()
	if !opts.PreserveTimestamp || doc.Timestamp == "" {
		doc.Timestamp = models.FormatTimestamp(o.nextTimestampLocked())
	}
	applied := o.applied
	o.mu.Unlock()
	ts := doc.TimestampMillis()

	var warning *SyncWarning

	id, _ := o.current()
	if id != nil && !opts.LocalOnly {
		err := o.putRemote(ctx, id.UserID, doc, ts)
		if err == nil {
			o.applyMu.Lock()
			if o.supersededSince(applied) {
				o.applyMu.Unlock()
				o.clearInflight(ts)
				return o.restoreRemote(ctx, id), nil
			}
			res := &SaveResult{Source: SourceRemote, Timestamp: doc.Timestamp}
			if lr, lerr := o.writeLocal(ctx, doc, opts.ClearLocal); lerr != nil {
				o.logger.Warn(ctx, "read-through cache update failed", "timestamp", doc.Timestamp, "error", lerr)
			} else {
				res.SizeBytes = lr.SizeBytes
			}
			o.recordSave(ts)
			o.applyMu.Unlock()
			o.logger.Debug(ctx, "document saved", "source", SourceRemote, "timestamp", doc.Timestamp)
			return res, nil
		}
		o.logger.Warn(ctx, "remote save failed, saving locally", "error", err)
		warning = &SyncWarning{Err: err}
	}

	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	if o.supersededSince(applied) {
		cur := o.state.LastSaveTimestamp()
		o.logger.Info(ctx, "save superseded by a newer remote document", "timestamp", doc.Timestamp, "remote_ts", cur)
		return &SaveResult{Source: SourceLocal, Timestamp: models.FormatTimestamp(cur), Warning: warning, Superseded: true}, nil
	}
	lr, err := o.writeLocal(ctx, doc, opts.ClearLocal)
	if err != nil {
		if warning != nil {
			return nil, fmt.Errorf("%w (remote: %v)", err, warning.Err)
		}
		return nil, err
	}
	o.recordSave(ts)
	o.logger.Debug(ctx, "document saved", "source", SourceLocal, "timestamp", lr.Timestamp)

	return &SaveResult{Source: SourceLocal, Timestamp: lr.Timestamp, SizeBytes: lr.SizeBytes, Warning: warning}, nil
}

func (o *Orchestrator) writeLocal(ctx context.Context, doc *models.Document, wipe bool) (*cache.SaveResult, error) {
	if wipe {
		if err := o.local.Clear(ctx); err != nil {
			o.logger.Warn(ctx, "cannot clear local cache", "error", err)
		}
	}
	return o.local.Save(ctx, doc, cache.SaveOptions{PreserveTimestamp: true})
}

func (o *Orchestrator) supersededSince(applied uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.applied != applied
}

// restoreRemote runs after our write reached the remote store although a
// newer remote document had already replaced the state and the cache. The
// state's document is written back so the remote store matches them again.
func (o *Orchestrator) restoreRemote(ctx context.Context, id *remote.Identity) *SaveResult {
	doc := o.state.GetStateForSaving()
	o.logger.Info(ctx, "save superseded by a newer remote document", "remote_ts", doc.Timestamp)
	res := &SaveResult{Source: SourceRemote, Timestamp: doc.Timestamp, Superseded: true}
	if err := o.remote.Put(ctx, id.UserID, doc); err != nil {
		o.logger.Warn(ctx, "cannot restore newer document on remote", "error", err)
		res.Warning = &SyncWarning{Err: err}
	}
	return res
}

func (o *Orchestrator) putRemote(ctx context.Context, userID string, doc *models.Document, ts int64) error {
	o.mu.Lock()
	o.inflight = ts
	o.mu.Unlock()

	err := o.remote.Put(ctx, userID, doc)
	if err != nil {
		o.clearInflight(ts)
	}
	return err
}

// recordSave publishes ts as the last save time and ends echo suppression
// for it.
func (o *Orchestrator) recordSave(ts int64) {
	o.state.SetLastSaveTimestamp(ts)
	o.clearInflight(ts)
}

func (o *Orchestrator) clearInflight(ts int64) {
	o.mu.Lock()
	if o.inflight == ts {
		o.inflight = 0
	}
	o.mu.Unlock()
}

// Load brings the state up to date. When signed in, the remote document is
// fetched and reconciled against the state (which is first primed from the
// local cache if it is still empty). Without a remote identity, or when the
// remote store cannot be read, the cached document is applied. ErrNoData is
// returned when there is nothing to load.
func (o *Orchestrator) Load(ctx context.Context) (*LoadResult, error) {
	id, gen := o.current()
	if id != nil {
		if o.state.LastSaveTimestamp() == 0 {
			if _, err := o.applyLocal(ctx); err != nil && !errors.Is(err, ErrNoData) {
				o.logger.Warn(ctx, "cannot prime state from local cache", "error", err)
			}
		}

		doc, err := o.remote.Get(ctx, id.UserID)
		if !o.isCurrent(gen) {
			o.logger.Info(ctx, "discarding remote load for a previous identity", "user_id", id.UserID)
			return nil, ErrIdentityChanged
		}
		if err == nil {
			res, rerr := o.reconcile(ctx, doc, id)
			if rerr != nil {
				o.logger.Warn(ctx, "reconciliation after load incomplete", "resolution", res, "error", rerr)
			}
			return &LoadResult{Source: SourceRemote, Document: o.state.GetStateForSaving(), Resolution: res}, nil
		}
		o.logger.Warn(ctx, "remote load failed, using local cache", "error", err)
	}

	doc, err := o.applyLocal(ctx)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Source: SourceLocal, Document: doc, Resolution: ResolutionNone}, nil
}

func (o *Orchestrator) applyLocal(ctx context.Context) (*models.Document, error) {
	doc, err := o.local.Load(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNoData
	}
	if err := o.state.LoadState(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Reconcile compares a remote document with the local state and moves the
// newer one over: a newer remote document replaces the state and the cache
// (it is never pushed back), a newer local state is pushed to the remote
// store. Equal timestamps and echoes of the save in flight change nothing.
func (o *Orchestrator) Reconcile(ctx context.Context, remoteDoc *models.Document) (Resolution, error) {
	id, _ := o.current()
	return o.reconcile(ctx, remoteDoc, id)
}

func (o *Orchestrator) reconcile(ctx context.Context, remoteDoc *models.Document, id *remote.Identity) (Resolution, error) {
	remoteTS := remoteDoc.TimestampMillis()

	o.mu.Lock()
	inflight := o.inflight
	o.mu.Unlock()
	if remoteDoc != nil && inflight != 0 && remoteTS == inflight {
		o.logger.Debug(ctx, "ignoring echo of own write", "remote_ts", remoteTS)
		return ResolutionNone, nil
	}

	o.applyMu.Lock()
	localTS := o.state.LastSaveTimestamp()
	// The save in flight will overwrite anything older than itself.
	if remoteDoc != nil && remoteTS > max(localTS, inflight) {
		defer o.applyMu.Unlock()
		o.logger.Info(ctx, "reconcile", "resolution", ResolutionRemoteWins, "remote_ts", remoteTS, "local_ts", localTS)
		if err := o.state.LoadState(ctx, remoteDoc); err != nil {
			return ResolutionRemoteWins, err
		}
		o.mu.Lock()
		o.applied++
		o.mu.Unlock()
		if _, err := o.local.Save(ctx, remoteDoc, cache.SaveOptions{PreserveTimestamp: true}); err != nil {
			return ResolutionRemoteWins, fmt.Errorf("cache remote document: %w", err)
		}
		return ResolutionRemoteWins, nil
	}
	o.applyMu.Unlock()

	switch {
	case localTS > remoteTS:
		if id == nil {
			return ResolutionNone, nil
		}
		o.logger.Info(ctx, "reconcile", "resolution", ResolutionLocalWins, "remote_ts", remoteTS, "local_ts", localTS)
		doc := o.state.GetStateForSaving()
		if err := o.remote.Put(ctx, id.UserID, doc); err != nil {
			return ResolutionLocalWins, fmt.Errorf("push local document: %w", err)
		}
		return ResolutionLocalWins, nil
	}

	o.logger.Debug(ctx, "reconcile", "resolution", ResolutionNone, "remote_ts", remoteTS, "local_ts", localTS)
	return ResolutionNone, nil
}

// SignIn authenticates with the remote store, subscribes to the user's
// document and loads it.
func (o *Orchestrator) SignIn(ctx context.Context, username, password string) (*remote.Identity, *LoadResult, error) {
	if o.remote == nil {
		return nil, nil, errors.New("sign in: no remote store configured")
	}

	id, err := o.remote.SignIn(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.identity = id
	o.mu.Unlock()

	sub, err := o.remote.Subscribe(ctx, id.UserID, func(doc *models.Document) {
		o.onRemoteChange(gen, id, doc)
	})
	if err != nil {
		o.logger.Warn(ctx, "live updates unavailable", "error", err)
	} else {
		o.mu.Lock()
		if o.generation == gen {
			o.sub = sub
			sub = nil
		}
		o.mu.Unlock()
		if sub != nil {
			_ = o.remote.Unsubscribe(sub)
		}
	}

	res, err := o.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoData) {
		return id, nil, err
	}
	return id, res, nil
}

func (o *Orchestrator) onRemoteChange(gen uint64, id *remote.Identity, doc *models.Document) {
	ctx := context.Background()
	if !o.isCurrent(gen) {
		o.logger.Debug(ctx, "dropping notification for a previous identity", "user_id", id.UserID)
		return
	}
	for attempt := 1; ; attempt++ {
		_, err := o.reconcile(ctx, doc, id)
		if errors.Is(err, state.ErrReentrantUpdate) && attempt < remoteApplyAttempts && o.isCurrent(gen) {
			time.Sleep(remoteApplyBackoff)
			continue
		}
		if err != nil {
			o.logger.Warn(ctx, "reconciliation of remote change failed", "error", err)
		}
		return
	}
}

// SignOut ends the subscription and forgets the identity. Results of remote
// calls still in flight are discarded when they arrive. Local data stays.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	o.mu.Lock()
	o.generation++
	o.identity = nil
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()

	if o.remote == nil {
		return nil
	}
	if sub != nil {
		if err := o.remote.Unsubscribe(sub); err != nil {
			o.logger.Warn(ctx, "unsubscribe failed", "error", err)
		}
	}
	return o.remote.SignOut(ctx)
}
