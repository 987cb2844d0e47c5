package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/growthvault/internal/client/cache"
	"github.com/dmitrijs2005/growthvault/internal/models"
)

// Source says where a save or load landed.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Resolution is the outcome of comparing a remote document with the local
// state.
type Resolution string

const (
	ResolutionRemoteWins Resolution = "remote_wins"
	ResolutionLocalWins  Resolution = "local_wins"
	ResolutionNone       Resolution = "none"
)

var (
	// ErrNoData means neither store holds a document.
	ErrNoData = errors.New("no stored document")
	// ErrIdentityChanged means the signed-in user changed while a remote
	// call was in flight; its result was discarded.
	ErrIdentityChanged = errors.New("identity changed during remote call")
)

// SyncWarning is attached to a successful local save whose remote write
// failed. The document is safe on this device only.
type SyncWarning struct {
	Err error
}

func (w *SyncWarning) Error() string {
	return fmt.Sprintf("saved locally, remote sync failed: %v", w.Err)
}

func (w *SyncWarning) Unwrap() error { return w.Err }

type SaveOptions struct {
	// LocalOnly skips the remote store.
	LocalOnly bool
	// PreserveTimestamp keeps the document's own timestamp when it has one.
	PreserveTimestamp bool
	// ClearLocal removes every cached copy, including stale fallback
	// copies, before the document is written to the cache.
	ClearLocal bool
}

type SaveResult struct {
	Source    Source
	Timestamp string
	SizeBytes int64
	// Warning is set when the save degraded to local only.
	Warning *SyncWarning
	// Superseded is set when a newer remote document replaced the state
	// while the save was in flight; the saved change was discarded.
	Superseded bool
}

type LoadResult struct {
	Source     Source
	Document   *models.Document
	Resolution Resolution
}

// LocalCache is the subset of cache.Store the orchestrator uses.
type LocalCache interface {
	Save(ctx context.Context, doc *models.Document, opts cache.SaveOptions) (*cache.SaveResult, error)
	Load(ctx context.Context) (*models.Document, error)
	Clear(ctx context.Context) error
}

// StateContainer is the subset of state.Container the orchestrator uses.
type StateContainer interface {
	LastSaveTimestamp() int64
	SetLastSaveTimestamp(ms int64)
	LoadState(ctx context.Context, doc *models.Document) error
	GetStateForSaving() *models.Document
}
