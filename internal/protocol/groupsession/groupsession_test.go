package groupsession_test

import (
	"fmt"
	"testing"

	"sotto/internal/crypto"
	"sotto/internal/domain"
	"sotto/internal/protocol/groupsession"
)

func makeSession(t *testing.T) (domain.OutboundRoomSession, []byte) {
	t.Helper()
	_, senderKey, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	out, err := groupsession.NewOutbound("!room:example.org", senderKey)
	if err != nil {
		t.Fatalf("NewOutbound: %v", err)
	}
	ad := groupsession.AssociatedData(out.RoomID, out.ID, out.SenderKey)
	return out, ad
}

func TestGroupSession_RoundTrip(t *testing.T) {
	out, ad := makeSession(t)
	in := groupsession.Import(groupsession.Export(out))

	for i := 0; i < 5; i++ {
		msg := []byte(fmt.Sprintf("message %d", i))
		index, ct, err := groupsession.Encrypt(&out, ad, msg)
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		if index != uint32(i) {
			t.Fatalf("index = %d, want %d", index, i)
		}
		pt, err := groupsession.Decrypt(&in, ad, out.ID, index, ct)
		if err != nil {
			t.Fatalf("Decrypt %d: %v", i, err)
		}
		if string(pt) != string(msg) {
			t.Fatalf("got %q, want %q", pt, msg)
		}
	}
}

func TestGroupSession_OutOfOrderWithinSession(t *testing.T) {
	out, ad := makeSession(t)
	in := groupsession.Import(groupsession.Export(out))

	i0, ct0, err := groupsession.Encrypt(&out, ad, []byte("zero"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	i1, ct1, err := groupsession.Encrypt(&out, ad, []byte("one"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	pt1, err := groupsession.Decrypt(&in, ad, out.ID, i1, ct1)
	if err != nil {
		t.Fatalf("Decrypt out-of-order: %v", err)
	}
	if string(pt1) != "one" {
		t.Fatalf("got %q, want %q", pt1, "one")
	}
	pt0, err := groupsession.Decrypt(&in, ad, out.ID, i0, ct0)
	if err != nil {
		t.Fatalf("Decrypt skipped: %v", err)
	}
	if string(pt0) != "zero" {
		t.Fatalf("got %q, want %q", pt0, "zero")
	}

	// The skipped key is consumed on use.
	if _, err := groupsession.Decrypt(&in, ad, out.ID, i0, ct0); err == nil {
		t.Fatal("expected second decrypt of same index to fail")
	}
}

func TestGroupSession_LateJoinerCannotReadHistory(t *testing.T) {
	out, ad := makeSession(t)

	i0, ct0, err := groupsession.Encrypt(&out, ad, []byte("before join"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Share after the first message: the importer's FirstIndex is 1.
	in := groupsession.Import(groupsession.Export(out))
	if _, err := groupsession.Decrypt(&in, ad, out.ID, i0, ct0); err != groupsession.ErrKeyNotAvailable {
		t.Fatalf("expected ErrKeyNotAvailable for pre-share index, got %v", err)
	}

	i1, ct1, err := groupsession.Encrypt(&out, ad, []byte("after join"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := groupsession.Decrypt(&in, ad, out.ID, i1, ct1)
	if err != nil {
		t.Fatalf("Decrypt post-share: %v", err)
	}
	if string(pt) != "after join" {
		t.Fatalf("got %q, want %q", pt, "after join")
	}
}

func TestGroupSession_WrongSessionID(t *testing.T) {
	out, ad := makeSession(t)
	in := groupsession.Import(groupsession.Export(out))

	index, ct, err := groupsession.Encrypt(&out, ad, []byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := groupsession.Decrypt(&in, ad, "other-session", index, ct); err != groupsession.ErrWrongSession {
		t.Fatalf("expected ErrWrongSession, got %v", err)
	}
}

func TestGroupSession_TamperedCiphertextFails(t *testing.T) {
	out, ad := makeSession(t)
	in := groupsession.Import(groupsession.Export(out))

	index, ct, err := groupsession.Encrypt(&out, ad, []byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[0] ^= 0xff
	if _, err := groupsession.Decrypt(&in, ad, out.ID, index, ct); err == nil {
		t.Fatal("expected decrypt failure for tampered ciphertext")
	}
}
