// Package timeline reconciles sync batches into per-room message lists
// and derived room summaries.
//
// Messages are kept in authoritative server order, deduplicated by event
// ID, so overlapping sync batches after a reconnect never produce
// duplicate entries. Room summaries are always recomputed from current
// state rather than patched.
package timeline
