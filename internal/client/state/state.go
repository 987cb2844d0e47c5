// Package state is the in-memory canonical copy of the user's data. Every
// change goes through Container.SetState, which swaps in a new snapshot and
// notifies subscribers synchronously, in subscription order.
package state

import (
	"reflect"

	"github.com/dmitrijs2005/growthvault/internal/models"
)

// State is the application state. The persisted part maps one-to-one onto
// models.Document; LastSaveTimestamp is the logical time (Unix ms) of the
// last document written or loaded.
type State struct {
	Items             []models.Entry
	ItemCounter       int64
	AuthorOrder       []string
	UndoStack         []models.UndoRecord
	Titles            models.Titles
	LastSaveTimestamp int64
}

// Field names a State field in change notifications.
type Field string

const (
	FieldItems             Field = "items"
	FieldItemCounter       Field = "itemCounter"
	FieldAuthorOrder       Field = "authorOrder"
	FieldUndoStack         Field = "undoStack"
	FieldTitles            Field = "titles"
	FieldLastSaveTimestamp Field = "lastSaveTimestamp"
)

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Items = models.CloneEntries(s.Items)
	if s.AuthorOrder != nil {
		c.AuthorOrder = append([]string(nil), s.AuthorOrder...)
	}
	if s.UndoStack != nil {
		c.UndoStack = make([]models.UndoRecord, len(s.UndoStack))
		for i, r := range s.UndoStack {
			c.UndoStack[i] = r.Clone()
		}
	}
	return c
}

// Document projects the persisted fields of s. The timestamp is taken from
// LastSaveTimestamp when one is known.
func (s State) Document() *models.Document {
	c := s.Clone()
	doc := &models.Document{
		Items:       c.Items,
		ItemCounter: c.ItemCounter,
		AuthorOrder: c.AuthorOrder,
		UndoStack:   c.UndoStack,
		Titles:      c.Titles,
	}
	if s.LastSaveTimestamp > 0 {
		doc.Timestamp = models.FormatTimestamp(s.LastSaveTimestamp)
	}
	doc.Normalize()
	return doc
}

// FromDocument builds a State from a stored document.
func FromDocument(doc *models.Document) State {
	d := doc.Clone()
	d.Normalize()
	return State{
		Items:             d.Items,
		ItemCounter:       d.ItemCounter,
		AuthorOrder:       d.AuthorOrder,
		UndoStack:         d.UndoStack,
		Titles:            d.Titles,
		LastSaveTimestamp: d.TimestampMillis(),
	}
}

// Empty is the state of a fresh installation.
func Empty() State {
	return FromDocument(models.NewDocument())
}

// diff lists the fields that differ between a and b.
func diff(a, b State) []Field {
	var out []Field
	if !reflect.DeepEqual(a.Items, b.Items) {
		out = append(out, FieldItems)
	}
	if a.ItemCounter != b.ItemCounter {
		out = append(out, FieldItemCounter)
	}
	if !reflect.DeepEqual(a.AuthorOrder, b.AuthorOrder) {
		out = append(out, FieldAuthorOrder)
	}
	if !reflect.DeepEqual(a.UndoStack, b.UndoStack) {
		out = append(out, FieldUndoStack)
	}
	if a.Titles != b.Titles {
		out = append(out, FieldTitles)
	}
	if a.LastSaveTimestamp != b.LastSaveTimestamp {
		out = append(out, FieldLastSaveTimestamp)
	}
	return out
}
