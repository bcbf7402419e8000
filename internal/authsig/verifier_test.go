/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package authsig

import (
	"bytes"
	"context"
	"crypto"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"grundbuch.dev/registry/internal/canon"
)

type fakeKeys struct {
	armored map[string][]byte // key: email+"/"+fingerprint
}

func (f fakeKeys) PublicKeyArmored(_ context.Context, email, fingerprint string) ([]byte, error) {
	b, ok := f.armored[email+"/"+fingerprint]
	if !ok {
		return nil, errNotFound
	}
	return b, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Test User", "", "u@example.org", &packet.Config{
		DefaultHash: crypto.SHA256,
	})
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	return entity
}

func armorPublicKey(t *testing.T, entity *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armorEncode(&buf, openpgp.PublicKeyType)
	if err != nil {
		t.Fatalf("armor encoder: %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("serialize pubkey: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close armor: %v", err)
	}
	return buf.Bytes()
}

func testPayload() canon.Payload {
	return canon.Payload{
		New: []canon.Document{{
			Key:  canon.DocKey{Amtsgericht: "Prenzlau", Bezirk: "Seeluebbe", Blatt: 42},
			Body: map[string]any{"eigentuemer": "Mustermann"},
		}},
	}
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	entity := newTestEntity(t)
	fp := fingerprintHex(entity)
	keys := fakeKeys{armored: map[string][]byte{
		"u@example.org/" + fp: armorPublicKey(t, entity),
	}}

	payload := testPayload()
	canonical, err := canon.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	envelope := Envelope("SHA256", canonical)

	var sigBuf bytes.Buffer
	if err := openpgp.DetachSign(&sigBuf, entity, bytes.NewReader(envelope), &packet.Config{DefaultHash: crypto.SHA256}); err != nil {
		t.Fatalf("DetachSign: %v", err)
	}

	err = Verify(context.Background(), keys, "u@example.org", fp, "SHA256", payload, sigBuf.Bytes())
	if err != nil {
		t.Fatalf("Verify() = %v, want nil", err)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	signer := newTestEntity(t)
	other := newTestEntity(t)
	fpOther := fingerprintHex(other)
	keys := fakeKeys{armored: map[string][]byte{
		"u@example.org/" + fpOther: armorPublicKey(t, other),
	}}

	payload := testPayload()
	canonical, _ := canon.Marshal(payload)
	envelope := Envelope("SHA256", canonical)

	var sigBuf bytes.Buffer
	if err := openpgp.DetachSign(&sigBuf, signer, bytes.NewReader(envelope), &packet.Config{DefaultHash: crypto.SHA256}); err != nil {
		t.Fatalf("DetachSign: %v", err)
	}

	// Signed by `signer` but we only register `other`'s key for the user:
	// verification against other's keyring must fail.
	if err := Verify(context.Background(), keys, "u@example.org", fpOther, "SHA256", payload, sigBuf.Bytes()); err == nil {
		t.Fatal("Verify() = nil, want error for mismatched signer")
	}
}

func TestVerifyRejectsUnknownKey(t *testing.T) {
	keys := fakeKeys{armored: map[string][]byte{}}
	payload := testPayload()

	err := Verify(context.Background(), keys, "nobody@example.org", "DEADBEEF", "SHA256", payload, []byte("not a signature"))
	if err == nil {
		t.Fatal("Verify() = nil, want error for unknown key")
	}
}

func TestVerifyRejectsWeakHash(t *testing.T) {
	entity := newTestEntity(t)
	fp := fingerprintHex(entity)
	keys := fakeKeys{armored: map[string][]byte{
		"u@example.org/" + fp: armorPublicKey(t, entity),
	}}

	err := Verify(context.Background(), keys, "u@example.org", fp, "MD5", testPayload(), []byte("irrelevant"))
	if err == nil {
		t.Fatal("Verify() = nil, want policy rejection for MD5")
	}
}
