// Package models defines server-side records persisted in the database or
// object storage.
package models

import "time"

// User is a registered account. Verifier is the argon2 hash the client
// derives from the password and Salt; the password itself never reaches the
// server.
type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
