package models

// Titles are the user-editable headings of the collection.
type Titles struct {
	MainTitle string `json:"mainTitle"`
	Subtitle  string `json:"subtitle"`
	ListTitle string `json:"listTitle"`
}

// DefaultTitles returns the headings of a fresh collection.
func DefaultTitles() Titles {
	return Titles{
		MainTitle: "GrowthVault",
		Subtitle:  "A place for the things worth keeping",
		ListTitle: "Entries",
	}
}

// Document is the unit of persistence. It is always written whole.
type Document struct {
	Items       []Entry      `json:"items"`
	ItemCounter int64        `json:"itemCounter"`
	AuthorOrder []string     `json:"authorOrder"`
	UndoStack   []UndoRecord `json:"undoStack"`
	Titles      Titles       `json:"titles"`
	// Timestamp is the logical write time of this exact snapshot.
	Timestamp string `json:"timestamp,omitempty"`
}

// NewDocument returns an empty document with default titles.
func NewDocument() *Document {
	return &Document{
		Items:       []Entry{},
		AuthorOrder: []string{},
		UndoStack:   []UndoRecord{},
		Titles:      DefaultTitles(),
	}
}

// TimestampMillis returns the document timestamp in Unix milliseconds, or 0
// when the document is nil, unstamped or carries an unparsable value.
func (d *Document) TimestampMillis() int64 {
	if d == nil || d.Timestamp == "" {
		return 0
	}
	ms, err := ParseTimestamp(d.Timestamp)
	if err != nil {
		return 0
	}
	return ms
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Items = CloneEntries(d.Items)
	c.AuthorOrder = cloneStrings(d.AuthorOrder)
	if d.UndoStack != nil {
		c.UndoStack = make([]UndoRecord, len(d.UndoStack))
		for i, r := range d.UndoStack {
			c.UndoStack[i] = r.Clone()
		}
	}
	return &c
}

// Normalize fills nil collections, repairs the author order against the
// items and trims the undo history to UndoLimit.
func (d *Document) Normalize() {
	if d.Items == nil {
		d.Items = []Entry{}
	}
	if d.UndoStack == nil {
		d.UndoStack = []UndoRecord{}
	}
	if len(d.UndoStack) > UndoLimit {
		d.UndoStack = d.UndoStack[len(d.UndoStack)-UndoLimit:]
	}
	d.AuthorOrder = NormalizeAuthorOrder(d.AuthorOrder, d.Items)
	for _, it := range d.Items {
		if it.ID > d.ItemCounter {
			d.ItemCounter = it.ID
		}
	}
}

// NormalizeAuthorOrder returns an order that lists every author present in
// items exactly once. Authors keep their position from order; authors absent
// from order are appended in first-appearance order; authors with no items
// are dropped.
func NormalizeAuthorOrder(order []string, items []Entry) []string {
	present := make(map[string]bool)
	for _, it := range items {
		present[it.Author] = true
	}

	out := make([]string, 0, len(present))
	placed := make(map[string]bool, len(present))
	for _, a := range order {
		if present[a] && !placed[a] {
			placed[a] = true
			out = append(out, a)
		}
	}
	for _, it := range items {
		if !placed[it.Author] {
			placed[it.Author] = true
			out = append(out, it.Author)
		}
	}
	return out
}
