package x3dh_test

import (
	"bytes"
	"testing"

	"sotto/internal/crypto"
	"sotto/internal/domain"
	"sotto/internal/protocol/x3dh"
)

func makeIdentity(t *testing.T) domain.Identity {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return domain.Identity{XPriv: xPriv, XPub: xPub, EdPriv: edPriv, EdPub: edPub}
}

func makeBundle(t *testing.T, id domain.Identity, withOPK bool) (domain.PreKeyBundle, domain.X25519Private, *domain.X25519Private) {
	t.Helper()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bundle := domain.PreKeyBundle{
		UserID:                "@bob:example.org",
		DeviceID:              "DEV1",
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        "spk-1",
		SignedPreKey:          spkPub,
		SignedPreKeySignature: crypto.SignEd25519(id.EdPriv, spkPub.Slice()),
	}
	var opkPriv *domain.X25519Private
	if withOPK {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("GenerateX25519: %v", err)
		}
		bundle.OneTimePreKey = &domain.OneTimePreKeyPublic{ID: "opk-1", Pub: pub}
		opkPriv = &priv
	}
	return bundle, spkPriv, opkPriv
}

func TestX3DH_BothSidesDeriveSameRoot(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, opkPriv := makeBundle(t, bob, true)

	root, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(alice, bundle)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}
	if spkID != "spk-1" || opkID != "opk-1" {
		t.Fatalf("unexpected pre-key IDs: spk=%q opk=%q", spkID, opkID)
	}

	msg := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       spkID,
		OneTimePreKeyID:      opkID,
	}
	peerRoot, err := x3dh.ResponderRoot(bob, spkPriv, opkPriv, msg)
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}
	if !bytes.Equal(root, peerRoot) {
		t.Fatal("initiator and responder derived different root keys")
	}
}

func TestX3DH_NoOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := makeBundle(t, bob, false)

	root, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(alice, bundle)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}
	if opkID != "" {
		t.Fatalf("expected empty OPK ID, got %q", opkID)
	}

	msg := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       spkID,
	}
	peerRoot, err := x3dh.ResponderRoot(bob, spkPriv, nil, msg)
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}
	if !bytes.Equal(root, peerRoot) {
		t.Fatal("root keys differ without OPK")
	}
}

func TestX3DH_RejectsBadSignature(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, _, _ := makeBundle(t, bob, false)
	bundle.SignedPreKeySignature[0] ^= 0xff

	_, _, _, _, err := x3dh.InitiatorRoot(alice, bundle)
	if err != x3dh.ErrBadSignedPreKey {
		t.Fatalf("expected ErrBadSignedPreKey, got %v", err)
	}
}
