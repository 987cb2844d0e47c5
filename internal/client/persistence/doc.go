// Package persistence decides where every save and load of the document
// lands and resolves divergence between the local cache and the remote
// store.
//
// The remote store is authoritative whenever a user is signed in and it is
// reachable; the local cache is refreshed right after every successful
// remote write. Without a remote identity, or when the remote write fails,
// the document is written locally and the caller gets a non-fatal
// SyncWarning.
//
// Divergence is resolved last-writer-wins on the document timestamp with
// strict comparisons, so replaying a notification is a no-op. Timestamps
// handed out by the orchestrator are strictly increasing even when the wall
// clock stalls or goes backwards.
package persistence
