// Package cache is the client's durable local copy of the GrowthVault
// document.
//
// Two backends hold the document under the same key:
//
//   - a small, quota-limited file store in the data directory, synchronous
//     and always present when the directory is writable;
//   - a larger SQLite key/value table, preferred whenever it initialised.
//
// On first use a document found only in the small store is moved to the
// large one. Saves go to the large backend and fall back to the small one
// for that single save when the large backend fails. Load reads both and
// returns the newer document, so a fallback write is never lost.
package cache
