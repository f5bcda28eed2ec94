// Package x3dh implements the X3DH key agreement used to bootstrap a
// pairwise device channel.
//
// # Overview
//
// X3DH lets an initiator derive a shared 32-byte root key with a responder
// whose pre-key bundle it has claimed from the routing server. The bundle
// contains the responder device's identity key (X25519), its current signed
// pre-key (X25519) with an Ed25519 signature, and optionally one one-time
// pre-key.
//
// # Flows
//
// Initiator:
//  1. Verify the signed pre-key signature.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]).
//  4. HKDF over the concatenated DH transcript to produce the root key.
//
// Responder:
//  1. Receive the PreKeyMessage (initiator IK, ephemeral EK, SPKID[, OPKID]).
//  2. Look up the SPK and optionally consume the OPK.
//  3. Compute the symmetric DH set and HKDF the same transcript to the
//     identical root key.
//
// Only public material is sent over the wire. One-time pre-keys, when
// present, improve forward secrecy: the handshake mixes in a value that is
// deleted after first use.
package x3dh
