// Package store provides file-based persistence for the session engine's
// durable state.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk under the configured data directory.
// All methods are concurrency-safe via internal locking, and every write
// goes through a temp-file-plus-rename so readers never observe a partial
// file.
//
// Key material (identity, pre-keys, pairwise channels, room sessions) is
// sealed under a passphrase before it touches disk; non-secret state
// (credential, trust records, sync cursor) is stored as plain JSON with
// owner-only permissions.
package store
