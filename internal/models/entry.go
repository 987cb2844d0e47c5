package models

// DefaultTitle is used for entries created without a title.
const DefaultTitle = "Untitled"

// MaxAuthorLength bounds author names, in characters.
const MaxAuthorLength = 100

// Entry is one author-attributed content item. Exactly one of RichText and
// Image carries content when the entry is created.
type Entry struct {
	// ID is the creation-time monotonic clock value; unique within a document.
	ID          int64  `json:"id"`
	DateDisplay string `json:"dateDisplay"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	// RichText holds sanitized HTML, or is empty for image entries.
	RichText string `json:"richText"`
	// Image is a data URI, or nil for text entries.
	Image *string `json:"image"`
}

// HasImage reports whether the entry carries an image attachment.
func (e Entry) HasImage() bool {
	return e.Image != nil && *e.Image != ""
}

// Clone returns a copy that shares no memory with e.
func (e Entry) Clone() Entry {
	c := e
	if e.Image != nil {
		img := *e.Image
		c.Image = &img
	}
	return c
}

// CloneEntries deep-copies a slice of entries. A nil slice stays nil.
func CloneEntries(items []Entry) []Entry {
	if items == nil {
		return nil
	}
	out := make([]Entry, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// IndexOf returns the position of the entry with id, or -1.
func IndexOf(items []Entry, id int64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
