package models

import "time"

// Document is a user's stored document. Data is opaque to the server apart
// from being valid JSON.
type Document struct {
	UserID    string
	Data      []byte
	UpdatedAt time.Time
}
