package state

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/models"
)

// ErrReentrantUpdate is returned by SetState when it is called from inside a
// change notification. The update is dropped.
var ErrReentrantUpdate = errors.New("state update issued during change notification")

// Topic groups subscribers. Every subscriber is notified of every change;
// the topic only tells consumers what they are interested in (see Touches).
type Topic string

const (
	TopicItems   Topic = "items"
	TopicAuthors Topic = "authors"
	TopicTitles  Topic = "titles"
	TopicUndo    Topic = "undo"
	TopicAll     Topic = "*"
)

var topicFields = map[Topic][]Field{
	TopicItems:   {FieldItems, FieldItemCounter},
	TopicAuthors: {FieldAuthorOrder},
	TopicTitles:  {FieldTitles},
	TopicUndo:    {FieldUndoStack},
}

// Touches reports whether any of changed belongs to topic.
func Touches(changed []Field, topic Topic) bool {
	if topic == TopicAll {
		return len(changed) > 0
	}
	for _, f := range topicFields[topic] {
		if slices.Contains(changed, f) {
			return true
		}
	}
	return false
}

// Listener receives a change. ctx must be passed on to anything the
// listener calls that may reach SetState; that is how reentrant updates are
// recognised.
type Listener func(ctx context.Context, newState, oldState State, changed []Field)

type subscription struct {
	id    uint64
	topic Topic
	fn    Listener
}

type notifyingKey struct{}

// Container owns the State. It is safe for concurrent use: updates from
// different goroutines are applied one at a time, each with its own
// notification round.
type Container struct {
	// writeMu serializes SetState calls including their notification.
	writeMu sync.Mutex
	// notifying is set while listeners run; writeMu is held throughout.
	notifying atomic.Bool

	mu     sync.RWMutex
	state  State
	subs   []subscription
	nextID uint64

	logger logging.Logger
}

// NewContainer returns a container holding the empty state.
func NewContainer(l logging.Logger) *Container {
	return &Container{
		state:  Empty(),
		logger: logging.OrNop(l).With("module", "state"),
	}
}

// GetState returns a deep copy of the current state.
func (c *Container) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Get returns a copy of a single field, or nil for an unknown field.
func (c *Container) Get(f Field) any {
	s := c.GetState()
	switch f {
	case FieldItems:
		return s.Items
	case FieldItemCounter:
		return s.ItemCounter
	case FieldAuthorOrder:
		return s.AuthorOrder
	case FieldUndoStack:
		return s.UndoStack
	case FieldTitles:
		return s.Titles
	case FieldLastSaveTimestamp:
		return s.LastSaveTimestamp
	}
	return nil
}

// SetState applies mutate to a copy of the current state, swaps the copy in
// and notifies every subscriber. If mutate returns an error nothing changes
// and the error is returned.
//
// A call made while a notification round is running is dropped with a
// warning and ErrReentrantUpdate, whatever context it carries. This
// includes calls from other goroutines that arrive during the round; a call
// that arrives while an update is still being applied waits for its turn.
func (c *Container) SetState(ctx context.Context, mutate func(s *State) error) error {
	if ctx.Value(notifyingKey{}) == c {
		c.logger.Warn(ctx, "dropping state update issued from a change listener")
		return ErrReentrantUpdate
	}

	if !c.writeMu.TryLock() {
		if c.notifying.Load() {
			c.logger.Warn(ctx, "dropping state update issued during change notification")
			return ErrReentrantUpdate
		}
		c.writeMu.Lock()
	}
	defer c.writeMu.Unlock()

	c.mu.RLock()
	old := c.state.Clone()
	c.mu.RUnlock()

	next := old.Clone()
	if err := mutate(&next); err != nil {
		return err
	}

	c.mu.Lock()
	// A save may have recorded a newer timestamp while mutate ran.
	if next.LastSaveTimestamp == old.LastSaveTimestamp && c.state.LastSaveTimestamp != old.LastSaveTimestamp {
		next.LastSaveTimestamp = c.state.LastSaveTimestamp
	}
	c.state = next
	subs := slices.Clone(c.subs)
	c.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}
	changed := diff(old, next)
	nctx := context.WithValue(ctx, notifyingKey{}, c)
	c.notifying.Store(true)
	defer c.notifying.Store(false)
	for _, s := range subs {
		s.fn(nctx, next.Clone(), old.Clone(), changed)
	}
	return nil
}

// Subscribe registers fn under topic and returns a function that removes it.
func (c *Container) Subscribe(topic Topic, fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, topic: topic, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subs = slices.DeleteFunc(c.subs, func(s subscription) bool { return s.id == id })
	}
}

// LoadState replaces the persisted fields and the last save timestamp with
// the contents of doc.
func (c *Container) LoadState(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("load state: nil document")
	}
	loaded := FromDocument(doc)
	return c.SetState(ctx, func(s *State) error {
		*s = loaded
		return nil
	})
}

// GetStateForSaving returns the document to persist.
func (c *Container) GetStateForSaving() *models.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Document()
}

// LastSaveTimestamp is the logical time of the last successful save or load.
func (c *Container) LastSaveTimestamp() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LastSaveTimestamp
}

// SetLastSaveTimestamp records a successful save. The timestamp never moves
// backwards; an older ms is ignored. It does not notify subscribers and is
// allowed from inside a listener.
func (c *Container) SetLastSaveTimestamp(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastSaveTimestamp = max(c.state.LastSaveTimestamp, ms)
}
