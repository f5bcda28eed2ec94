// Package roomkeys implements the crypto session manager: device
// identity and pre-key publication, per-room group-encryption sessions,
// pairwise channels for distributing session keys, and device trust.
//
// The central invariant is share-before-send: an outbound room session's
// key material is delivered to every known member device before the
// first ciphertext under that session leaves this process.
package roomkeys
