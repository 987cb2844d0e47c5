// Package models defines the GrowthVault document: the single JSON snapshot
// (entries, author ordering, titles, undo history and logical write time)
// that the client persists locally and the server stores per user.
//
// The JSON field names are the persisted format and are shared by the local
// cache backends, the remote store and export files.
package models
