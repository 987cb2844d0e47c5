package models

// UndoLimit is the maximum number of undo records kept; the oldest record is
// evicted first.
const UndoLimit = 20

type UndoAction string

const (
	UndoDeleteItem   UndoAction = "deleteItem"
	UndoDeleteAuthor UndoAction = "deleteAuthor"
)

// UndoData is the action-specific metadata of an UndoRecord.
type UndoData struct {
	ItemID int64  `json:"itemId,omitempty"`
	Author string `json:"author,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// UndoRecord describes one destructive action that can be reverted.
//
// Records written by this code carry only the removed entries in
// DeletedItems. Documents written by older clients may contain records that
// instead carry a full snapshot of the item list in Items; those are still
// undoable.
type UndoRecord struct {
	Action              UndoAction `json:"action"`
	Data                UndoData   `json:"data"`
	DeletedItems        []Entry    `json:"deletedItems,omitempty"`
	Items               []Entry    `json:"items,omitempty"`
	AuthorOrderSnapshot []string   `json:"authorOrderSnapshot"`
	CreatedAt           int64      `json:"createdAt"`
}

// IsLegacy reports whether r uses the old full-snapshot shape.
func (r UndoRecord) IsLegacy() bool {
	return len(r.DeletedItems) == 0 && len(r.Items) > 0
}

// RestorableItems returns the entries undoing r brings back.
func (r UndoRecord) RestorableItems() []Entry {
	if r.IsLegacy() {
		return r.Items
	}
	return r.DeletedItems
}

// Clone returns a deep copy of r.
func (r UndoRecord) Clone() UndoRecord {
	c := r
	c.DeletedItems = CloneEntries(r.DeletedItems)
	c.Items = CloneEntries(r.Items)
	c.AuthorOrderSnapshot = cloneStrings(r.AuthorOrderSnapshot)
	return c
}

// PushUndo appends rec to stack and evicts the oldest records beyond limit.
// The returned slice never aliases stack.
func PushUndo(stack []UndoRecord, rec UndoRecord, limit int) []UndoRecord {
	out := make([]UndoRecord, 0, len(stack)+1)
	out = append(out, stack...)
	out = append(out, rec)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// RestoreItems appends the entries of restored that are not already present
// in items (by id). Relative order among the existing entries is kept; the
// restored entries go to the end.
func RestoreItems(items []Entry, restored []Entry) []Entry {
	seen := make(map[int64]struct{}, len(items))
	out := make([]Entry, 0, len(items)+len(restored))
	for _, it := range items {
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	for _, it := range restored {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it.Clone())
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
