// Package syncer drives the single long-poll loop against the routing
// server.
//
// Exactly one loop runs per session. Each cycle long-polls with the
// cursor from the previous batch, hands the batch to the apply callback,
// and only then persists the new cursor, so a crash replays a batch
// rather than skipping one. Transient failures back off and retry;
// a rejected token halts the loop permanently.
package syncer
