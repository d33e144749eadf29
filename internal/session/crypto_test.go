package session

import (
	"encoding/base64"
	"testing"
)

func TestSealVerifyRoundTrip(t *testing.T) {
	c := NewContext("test-secret")

	session, store, err := c.Seal([]byte(`{"mobile":"03001234567"}`))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !c.Verify(session, store) {
		t.Fatal("expected fresh blobs to verify")
	}
}

func TestVerifyFailsOnAnyDefect(t *testing.T) {
	c := NewContext("test-secret")
	session, store, err := c.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	otherSession, otherStore, err := c.Seal([]byte("different payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	cases := []struct {
		name           string
		session, store string
	}{
		{"mismatched plaintexts", session, otherStore},
		{"mismatched the other way", otherSession, store},
		{"garbage session blob", "not-base64!", store},
		{"garbage store blob", session, "not-base64!"},
		{"empty blobs", "", ""},
		{"truncated session blob", session[:8], store},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if c.Verify(tc.session, tc.store) {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestForeignKeyCannotVerify(t *testing.T) {
	a := NewContext("secret-a")
	b := NewContext("secret-b")

	session, store, err := a.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if b.Verify(session, store) {
		t.Error("blobs sealed under another secret must not verify")
	}
}

func TestTamperedCiphertextFails(t *testing.T) {
	c := NewContext("test-secret")
	session, store, err := c.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(store)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if c.Verify(session, tampered) {
		t.Error("tampered store blob must not verify")
	}
}

func TestSameSecretSameKeys(t *testing.T) {
	a := NewContext("shared")
	b := NewContext("shared")

	session, store, err := a.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !b.Verify(session, store) {
		t.Error("a context with the same secret should verify")
	}
}
