package ratchet_test

import (
	"bytes"
	"fmt"
	"testing"

	"sotto/internal/crypto"
	"sotto/internal/domain"
	"sotto/internal/protocol/ratchet"
)

// makePair returns a fresh X25519 key pair.
func makePair(t *testing.T) (priv domain.X25519Private, pub domain.X25519Public) {
	t.Helper()
	p, pubKey, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	return p, pubKey
}

// makeStates returns initiator and responder states sharing a root key.
func makeStates(t *testing.T) (domain.RatchetState, domain.RatchetState) {
	t.Helper()
	rk := bytes.Repeat([]byte{0x42}, 32)
	bPriv, bPub := makePair(t)

	aState, err := ratchet.InitAsInitiator(rk, bPub)
	if err != nil {
		t.Fatalf("InitAsInitiator: %v", err)
	}
	bState, err := ratchet.InitAsResponder(rk, bPriv, aState.DiffieHellmanPublic)
	if err != nil {
		t.Fatalf("InitAsResponder: %v", err)
	}
	return aState, bState
}

func TestDoubleRatchet_OneRoundTrip(t *testing.T) {
	aState, bState := makeStates(t)

	header, ct, err := ratchet.Encrypt(&aState, nil, []byte("hi"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := ratchet.Decrypt(&bState, nil, header, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "hi" {
		t.Fatalf("got %q, want %q", pt, "hi")
	}
}

func TestDoubleRatchet_PingPongAdvancesDHKeys(t *testing.T) {
	aState, bState := makeStates(t)

	for round := 0; round < 3; round++ {
		msg := []byte(fmt.Sprintf("a->b %d", round))
		h, ct, err := ratchet.Encrypt(&aState, nil, msg)
		if err != nil {
			t.Fatalf("round %d a Encrypt: %v", round, err)
		}
		pt, err := ratchet.Decrypt(&bState, nil, h, ct)
		if err != nil {
			t.Fatalf("round %d b Decrypt: %v", round, err)
		}
		if !bytes.Equal(pt, msg) {
			t.Fatalf("round %d: got %q, want %q", round, pt, msg)
		}

		reply := []byte(fmt.Sprintf("b->a %d", round))
		h, ct, err = ratchet.Encrypt(&bState, nil, reply)
		if err != nil {
			t.Fatalf("round %d b Encrypt: %v", round, err)
		}
		pt, err = ratchet.Decrypt(&aState, nil, h, ct)
		if err != nil {
			t.Fatalf("round %d a Decrypt: %v", round, err)
		}
		if !bytes.Equal(pt, reply) {
			t.Fatalf("round %d reply: got %q, want %q", round, pt, reply)
		}
	}
}

func TestDoubleRatchet_OutOfOrderDelivery(t *testing.T) {
	aState, bState := makeStates(t)

	h1, ct1, err := ratchet.Encrypt(&aState, nil, []byte("first"))
	if err != nil {
		t.Fatalf("Encrypt first: %v", err)
	}
	h2, ct2, err := ratchet.Encrypt(&aState, nil, []byte("second"))
	if err != nil {
		t.Fatalf("Encrypt second: %v", err)
	}

	// Deliver second before first; the skipped-key cache covers the gap.
	pt2, err := ratchet.Decrypt(&bState, nil, h2, ct2)
	if err != nil {
		t.Fatalf("Decrypt second: %v", err)
	}
	if string(pt2) != "second" {
		t.Fatalf("got %q, want %q", pt2, "second")
	}
	pt1, err := ratchet.Decrypt(&bState, nil, h1, ct1)
	if err != nil {
		t.Fatalf("Decrypt first (skipped): %v", err)
	}
	if string(pt1) != "first" {
		t.Fatalf("got %q, want %q", pt1, "first")
	}
}

func TestDoubleRatchet_AssociatedDataMismatchFails(t *testing.T) {
	aState, bState := makeStates(t)

	h, ct, err := ratchet.Encrypt(&aState, []byte("room!session"), []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := ratchet.Decrypt(&bState, []byte("other"), h, ct); err == nil {
		t.Fatal("expected decrypt failure with mismatched associated data")
	}
}
