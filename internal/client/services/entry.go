// Package services contains the client's application services: the entry
// lifecycle (add, edit, delete, undo, import, export) and authentication.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/growthvault/internal/client/media"
	"github.com/dmitrijs2005/growthvault/internal/client/persistence"
	"github.com/dmitrijs2005/growthvault/internal/client/richtext"
	"github.com/dmitrijs2005/growthvault/internal/client/state"
	"github.com/dmitrijs2005/growthvault/internal/filex"
	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/models"
	"github.com/dmitrijs2005/growthvault/internal/timex"
)

const (
	dateDisplayLayout = "January 2, 2006"
	exportNameLayout  = "2006-01-02"

	// A state update that lands in another goroutine's notification round
	// is dropped by the container; it is retried this many times.
	stateAttempts   = 5
	stateRetryDelay = 20 * time.Millisecond
)

// Persister is the part of the persistence orchestrator the entry service
// drives.
type Persister interface {
	Save(ctx context.Context, doc *models.Document, opts persistence.SaveOptions) (*persistence.SaveResult, error)
	Load(ctx context.Context) (*persistence.LoadResult, error)
}

// StateStore is the part of the state container the entry service drives.
type StateStore interface {
	GetState() state.State
	SetState(ctx context.Context, mutate func(s *state.State) error) error
	GetStateForSaving() *models.Document
}

// ItemInput describes a new entry. Exactly one of RichText and Image must
// carry content. Image holds the raw bytes of a PNG, JPEG, GIF or WebP file.
type ItemInput struct {
	Author   string
	Title    string
	RichText string
	Image    []byte
}

// ItemUpdate lists the fields to change; nil means unchanged.
type ItemUpdate struct {
	Title    *string
	RichText *string
}

// OpResult reports where a mutation was persisted.
type OpResult struct {
	Source    persistence.Source
	Timestamp string
	// Warning is set when the change is saved on this device only.
	Warning *persistence.SyncWarning
	// Superseded is set when another device's newer document replaced the
	// change before it was recorded.
	Superseded bool
}

// EntryService applies user operations to the state and persists each
// change. Operations are serialized; a failed save rolls the state back.
type EntryService struct {
	mu      sync.Mutex
	state   StateStore
	persist Persister
	clock   timex.Clock
	images  media.Options
	logger  logging.Logger
}

type EntryOption func(*EntryService)

func WithEntryClock(c timex.Clock) EntryOption {
	return func(s *EntryService) { s.clock = c }
}

func WithEntryLogger(l logging.Logger) EntryOption {
	return func(s *EntryService) { s.logger = l }
}

// WithImageOptions sets how image attachments are shrunk.
func WithImageOptions(o media.Options) EntryOption {
	return func(s *EntryService) { s.images = o }
}

func NewEntryService(st StateStore, p Persister, opts ...EntryOption) *EntryService {
	s := &EntryService{
		state:   st,
		persist: p,
		clock:   timex.RealClock{},
		images:  media.OptionsFor(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).With("module", "entries")
	return s
}

// Load brings the state up to date from the stores. An empty installation
// is not an error: the result is nil and the state stays empty.
func (s *EntryService) Load(ctx context.Context) (*persistence.LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.persist.Load(ctx)
	if errors.Is(err, persistence.ErrNoData) {
		s.logger.Info(ctx, "no stored document, starting empty")
		return nil, nil
	}
	return res, err
}

// Snapshot returns a copy of the current state.
func (s *EntryService) Snapshot() state.State {
	return s.state.GetState()
}

// CanUndo reports whether Undo has something to revert.
func (s *EntryService) CanUndo() bool {
	return len(s.state.GetState().UndoStack) > 0
}

// AddItem validates in, shrinks its image if any, and appends the new entry.
func (s *EntryService) AddItem(ctx context.Context, in ItemInput) (*models.Entry, *OpResult, error) {
	author, err := validateAuthor(in.Author)
	if err != nil {
		return nil, nil, err
	}

	hasText := !richtext.IsEmpty(in.RichText)
	hasImage := len(in.Image) > 0
	switch {
	case hasText && hasImage:
		return nil, nil, invalid("content", "an entry holds either text or an image, not both")
	case !hasText && !hasImage:
		return nil, nil, invalid("content", "text or an image is required")
	}

	entry := models.Entry{
		Author: author,
		Title:  strings.TrimSpace(in.Title),
	}
	if entry.Title == "" {
		entry.Title = models.DefaultTitle
	}
	if hasImage {
		img, err := media.Encode(bytes.NewReader(in.Image), s.images)
		if err != nil {
			return nil, nil, invalid("image", "%v", err)
		}
		entry.Image = &img.DataURI
	} else {
		entry.RichText = in.RichText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	entry.DateDisplay = now.Format(dateDisplayLayout)

	res, err := s.commit(ctx, func(st *state.State) error {
		entry.ID = max(now.UnixMilli(), st.ItemCounter+1)
		st.ItemCounter = entry.ID
		st.Items = append(st.Items, entry)
		if !slices.Contains(st.AuthorOrder, author) {
			st.AuthorOrder = append(st.AuthorOrder, author)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	out := entry.Clone()
	return &out, res, nil
}

// UpdateItem changes the title or text of an entry.
func (s *EntryService) UpdateItem(ctx context.Context, id int64, upd ItemUpdate) (*OpResult, error) {
	if upd.Title == nil && upd.RichText == nil {
		return nil, invalid("update", "nothing to change")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, func(st *state.State) error {
		i := models.IndexOf(st.Items, id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrItemNotFound, id)
		}
		it := &st.Items[i]
		if upd.Title != nil {
			it.Title = strings.TrimSpace(*upd.Title)
			if it.Title == "" {
				it.Title = models.DefaultTitle
			}
		}
		if upd.RichText != nil {
			if !it.HasImage() && richtext.IsEmpty(*upd.RichText) {
				return invalid("richText", "a text entry cannot be empty")
			}
			it.RichText = *upd.RichText
		}
		return nil
	})
}

// DeleteItem removes one entry and records it for undo.
func (s *EntryService) DeleteItem(ctx context.Context, id int64) (*OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UnixMilli()
	return s.commit(ctx, func(st *state.State) error {
		i := models.IndexOf(st.Items, id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrItemNotFound, id)
		}
		removed := st.Items[i]
		rec := models.UndoRecord{
			Action:              models.UndoDeleteItem,
			Data:                models.UndoData{ItemID: id, Author: removed.Author},
			DeletedItems:        []models.Entry{removed.Clone()},
			AuthorOrderSnapshot: slices.Clone(st.AuthorOrder),
			CreatedAt:           now,
		}
		st.Items = slices.Delete(st.Items, i, i+1)
		st.AuthorOrder = models.NormalizeAuthorOrder(st.AuthorOrder, st.Items)
		st.UndoStack = models.PushUndo(st.UndoStack, rec, models.UndoLimit)
		return nil
	})
}

// DeleteAuthor removes every entry by author and records them for undo.
func (s *EntryService) DeleteAuthor(ctx context.Context, author string) (*OpResult, error) {
	author = strings.TrimSpace(author)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UnixMilli()
	return s.commit(ctx, func(st *state.State) error {
		var kept, removed []models.Entry
		for _, it := range st.Items {
			if it.Author == author {
				removed = append(removed, it.Clone())
			} else {
				kept = append(kept, it)
			}
		}
		if len(removed) == 0 {
			return fmt.Errorf("%w: %q", ErrAuthorNotFound, author)
		}
		rec := models.UndoRecord{
			Action:              models.UndoDeleteAuthor,
			Data:                models.UndoData{Author: author, Count: len(removed)},
			DeletedItems:        removed,
			AuthorOrderSnapshot: slices.Clone(st.AuthorOrder),
			CreatedAt:           now,
		}
		if kept == nil {
			kept = []models.Entry{}
		}
		st.Items = kept
		st.AuthorOrder = models.NormalizeAuthorOrder(st.AuthorOrder, st.Items)
		st.UndoStack = models.PushUndo(st.UndoStack, rec, models.UndoLimit)
		return nil
	})
}

// ReorderItems puts the entries in the order given by ids, which must list
// every entry exactly once.
func (s *EntryService) ReorderItems(ctx context.Context, ids []int64) (*OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, func(st *state.State) error {
		if len(ids) != len(st.Items) {
			return invalid("order", "expected %d ids, got %d", len(st.Items), len(ids))
		}
		byID := make(map[int64]models.Entry, len(st.Items))
		for _, it := range st.Items {
			byID[it.ID] = it
		}
		out := make([]models.Entry, 0, len(ids))
		for _, id := range ids {
			it, ok := byID[id]
			if !ok {
				return invalid("order", "unknown or repeated id %d", id)
			}
			delete(byID, id)
			out = append(out, it)
		}
		st.Items = out
		return nil
	})
}

// UpdateAuthorOrder sets the display order of authors. order must be a
// permutation of the current authors.
func (s *EntryService) UpdateAuthorOrder(ctx context.Context, order []string) (*OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, func(st *state.State) error {
		if len(order) != len(st.AuthorOrder) {
			return invalid("authorOrder", "expected %d authors, got %d", len(st.AuthorOrder), len(order))
		}
		want := make(map[string]struct{}, len(st.AuthorOrder))
		for _, a := range st.AuthorOrder {
			want[a] = struct{}{}
		}
		for _, a := range order {
			if _, ok := want[a]; !ok {
				return invalid("authorOrder", "unknown or repeated author %q", a)
			}
			delete(want, a)
		}
		st.AuthorOrder = slices.Clone(order)
		return nil
	})
}

// UpdateTitles replaces the collection headings.
func (s *EntryService) UpdateTitles(ctx context.Context, t models.Titles) (*OpResult, error) {
	t.MainTitle = strings.TrimSpace(t.MainTitle)
	t.Subtitle = strings.TrimSpace(t.Subtitle)
	t.ListTitle = strings.TrimSpace(t.ListTitle)
	if t.MainTitle == "" {
		return nil, invalid("mainTitle", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, func(st *state.State) error {
		st.Titles = t
		return nil
	})
}

// Undo reverts the most recent delete. The removed entries are appended to
// the list and the author order is restored from the record.
func (s *EntryService) Undo(ctx context.Context) (*OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, func(st *state.State) error {
		n := len(st.UndoStack)
		if n == 0 {
			return ErrNothingToUndo
		}
		rec := st.UndoStack[n-1]
		st.UndoStack = slices.Clone(st.UndoStack[:n-1])

		st.Items = models.RestoreItems(st.Items, rec.RestorableItems())
		for _, it := range st.Items {
			st.ItemCounter = max(st.ItemCounter, it.ID)
		}
		st.AuthorOrder = models.NormalizeAuthorOrder(rec.AuthorOrderSnapshot, st.Items)
		return nil
	})
}

// ClearAllData empties the collection, undo history included, and persists
// the empty document so other devices follow. Every cached copy is removed
// before the empty document is written, so no fallback copy of the old data
// stays on disk.
func (s *EntryService) ClearAllData(ctx context.Context) (*OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commitWith(ctx, persistence.SaveOptions{ClearLocal: true}, func(st *state.State) error {
		empty := state.Empty()
		empty.LastSaveTimestamp = st.LastSaveTimestamp
		*st = empty
		return nil
	})
}

// ExportData returns the current document as indented JSON together with
// the suggested file name.
func (s *EntryService) ExportData(ctx context.Context) (name string, data []byte, err error) {
	doc := s.state.GetStateForSaving()
	data, err = json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("export: %w", err)
	}
	name = fmt.Sprintf("growthvault-export-%s.json", s.clock.Now().UTC().Format(exportNameLayout))
	s.logger.Info(ctx, "document exported", "items", len(doc.Items), "bytes", len(data))
	return name, data, nil
}

// ExportToDir writes the export file into dir and returns its path.
func (s *EntryService) ExportToDir(ctx context.Context, dir string) (string, error) {
	name, data, err := s.ExportData(ctx)
	if err != nil {
		return "", err
	}
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(abs, name)
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// ImportData replaces the collection with the document in data. The file is
// validated as a whole first; a rejected file changes nothing. The imported
// document is saved with a fresh timestamp.
func (s *EntryService) ImportData(ctx context.Context, data []byte) (*OpResult, error) {
	doc, err := models.ParseDocument(data)
	if err != nil {
		return nil, &ImportError{Err: err}
	}
	imported := state.FromDocument(doc)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.commit(ctx, func(st *state.State) error {
		imported.LastSaveTimestamp = st.LastSaveTimestamp
		*st = imported
		return nil
	})
	if err == nil {
		s.logger.Info(ctx, "document imported", "items", len(imported.Items))
	}
	return res, err
}

// commit applies mutate to the state and persists the result. If the save
// fails the persisted fields are put back as they were and the save error
// is returned. Callers hold s.mu.
func (s *EntryService) commit(ctx context.Context, mutate func(st *state.State) error) (*OpResult, error) {
	return s.commitWith(ctx, persistence.SaveOptions{}, mutate)
}

func (s *EntryService) commitWith(ctx context.Context, opts persistence.SaveOptions, mutate func(st *state.State) error) (*OpResult, error) {
	before := s.state.GetState()

	if err := s.setState(ctx, mutate); err != nil {
		return nil, err
	}

	saved, err := s.persist.Save(ctx, s.state.GetStateForSaving(), opts)
	if err != nil {
		s.logger.Warn(ctx, "save failed, rolling back", "error", err)
		if rerr := s.setState(ctx, func(st *state.State) error {
			restorePersisted(st, before)
			return nil
		}); rerr != nil {
			s.logger.Error(ctx, "rollback failed", "error", rerr)
		}
		return nil, err
	}
	if saved.Warning != nil {
		s.logger.Warn(ctx, "change saved locally only", "error", saved.Warning.Err)
	}
	if saved.Superseded {
		s.logger.Info(ctx, "change superseded by a newer remote document", "timestamp", saved.Timestamp)
	}
	return &OpResult{Source: saved.Source, Timestamp: saved.Timestamp, Warning: saved.Warning, Superseded: saved.Superseded}, nil
}

func (s *EntryService) setState(ctx context.Context, mutate func(st *state.State) error) error {
	for attempt := 1; ; attempt++ {
		err := s.state.SetState(ctx, mutate)
		if !errors.Is(err, state.ErrReentrantUpdate) || attempt == stateAttempts {
			return err
		}
		time.Sleep(stateRetryDelay)
	}
}

// restorePersisted copies the document fields of from into st and leaves
// the last save timestamp alone.
func restorePersisted(st *state.State, from state.State) {
	ts := st.LastSaveTimestamp
	*st = from
	st.LastSaveTimestamp = ts
}

func validateAuthor(author string) (string, error) {
	author = strings.TrimSpace(author)
	switch {
	case author == "":
		return "", invalid("author", "must not be empty")
	case utf8.RuneCountInString(author) > models.MaxAuthorLength:
		return "", invalid("author", "must be at most %d characters", models.MaxAuthorLength)
	}
	return author, nil
}
