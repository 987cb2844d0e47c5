// Package cli is the interactive GrowthVault terminal client.
//
// NewApp is the composition root: it opens the local cache (a quota-limited
// file store plus the SQLite database in the data directory), connects the
// gRPC remote store, and wires the state container, persistence
// orchestrator and services together. App.Run loads the collection, starts
// the online status watcher and runs the REPL until the user exits.
package cli
