package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDocument is wrapped by every schema violation ParseDocument reports.
var ErrInvalidDocument = errors.New("invalid document")

// ParseDocument decodes data as a Document and validates its shape: items
// must be an array and every item must carry at least an id and an author.
// The returned document is normalized. Nothing is returned on failure, so a
// caller can never apply part of a bad file.
func ParseDocument(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrInvalidDocument, err)
	}

	rawItems, ok := raw["items"]
	if !ok || !isJSONArray(rawItems) {
		return nil, fmt.Errorf("%w: items must be an array", ErrInvalidDocument)
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, fmt.Errorf("%w: items must be objects: %v", ErrInvalidDocument, err)
	}
	for i, it := range items {
		if _, ok := it["id"]; !ok {
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidDocument, i)
		}
		if a, ok := it["author"]; !ok || string(bytes.TrimSpace(a)) == "null" {
			return nil, fmt.Errorf("%w: item %d has no author", ErrInvalidDocument, i)
		}
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	seen := make(map[int64]struct{}, len(doc.Items))
	for i, it := range doc.Items {
		if it.Author == "" {
			return nil, fmt.Errorf("%w: item %d has an empty author", ErrInvalidDocument, i)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item id %d", ErrInvalidDocument, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	if doc.Timestamp != "" {
		if _, err := ParseTimestamp(doc.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	}
	if _, ok := raw["titles"]; !ok {
		doc.Titles = DefaultTitles()
	}

	doc.Normalize()
	return doc, nil
}

func isJSONArray(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}
