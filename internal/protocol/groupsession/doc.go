// Package groupsession implements the per-room group-encryption session:
// a single sender-key chain shared with every member device of a room.
//
// The sender holds an outbound session (chain key plus send index) and
// advances the chain once per message. Receivers import the chain key at
// the index it was shared at and ratchet forward to derive message keys;
// messages before the shared index are permanently out of reach, which is
// what makes sharing-before-send mandatory.
//
// Out-of-order delivery within a session is tolerated through a bounded
// skipped-key cache, mirroring the pairwise ratchet's handling.
//
// Sessions never rekey in place. Rotation (budget exhaustion, membership
// change) is a new session with a new identifier, handled a layer up.
package groupsession
