/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package authsig verifies detached OpenPGP signatures over the
// canonical form of a changeset payload, against a key registered for
// the authenticated user's email. It has no side effects: a single key
// lookup, then a pure cryptographic check.
package authsig

import (
	"bytes"
	"context"
	"crypto"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/regerr"
)

// KeyLookup resolves a user's registered OpenPGP public key. Implemented
// by internal/metastore; kept as a narrow interface here so authsig has
// no dependency on the storage layer.
type KeyLookup interface {
	PublicKeyArmored(ctx context.Context, email, fingerprint string) ([]byte, error)
}

// allowedHashes is the policy that rejects weak hashes.
// MD5 and SHA-1 are deliberately absent.
var allowedHashes = map[crypto.Hash]string{
	crypto.SHA256: "SHA256",
	crypto.SHA384: "SHA384",
	crypto.SHA512: "SHA512",
}

// Envelope builds the cleartext-signed envelope that is the actual
// signing input: a declared-hash header followed by a blank line and
// the canonical payload bytes, mirroring OpenPGP's own cleartext
// signature framework convention ("Hash: <algo>").
func Envelope(hashTag string, canonicalPayload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("Hash: ")
	buf.WriteString(hashTag)
	buf.WriteString("\r\n\r\n")
	buf.Write(canonicalPayload)
	return buf.Bytes()
}

// Verify checks that sig is a valid detached OpenPGP signature over the
// canonical form of payload, produced by the key (email, fingerprint)
// and declaring hashTag.
//
// Outcomes: nil on success, or one of
// regerr.AuthError{Code: regerr.AuthNoKey} (unknown key),
// regerr.NewValidationError (policy reject / malformed signature), or a
// plain *regerr.AuthError for a signature that parses but does not
// verify.
func Verify(ctx context.Context, keys KeyLookup, email, fingerprint, hashTag string, payload canon.Payload, sig []byte) error {
	canonical, err := canon.Marshal(payload)
	if err != nil {
		return regerr.NewValidationError(1, "Nutzlast konnte nicht kanonisiert werden: %v", err)
	}

	armoredKey, err := keys.PublicKeyArmored(ctx, email, fingerprint)
	if err != nil {
		return regerr.NewAuthError(regerr.AuthNoKey, "kein öffentlicher Schlüssel für %s / %s registriert, Signatur nicht prüfbar", email, fingerprint)
	}

	declared, ok := hashNameToAlgo(hashTag)
	if !ok {
		return regerr.NewValidationError(1, "nicht unterstützter oder unsicherer Hash-Algorithmus: %s", hashTag)
	}

	sigPkt, err := parseSignaturePacket(sig)
	if err != nil {
		return regerr.NewValidationError(1, "Signatur konnte nicht gelesen werden: %v", err)
	}
	if _, ok := allowedHashes[sigPkt.Hash]; !ok {
		return regerr.NewValidationError(1, "Signatur verwendet einen unsicheren Hash-Algorithmus")
	}
	if sigPkt.Hash != declared {
		return regerr.NewValidationError(1, "deklarierter Hash-Algorithmus stimmt nicht mit der Signatur überein")
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredKey))
	if err != nil {
		return regerr.NewValidationError(1, "öffentlicher Schlüssel konnte nicht gelesen werden: %v", err)
	}

	envelope := Envelope(hashTag, canonical)
	if _, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(envelope), bytes.NewReader(sig), nil); err != nil {
		return regerr.NewAuthError(regerr.AuthUnspecified, "Signatur ist ungültig: %v", err)
	}

	return nil
}

func parseSignaturePacket(sig []byte) (*packet.Signature, error) {
	pkt, err := packet.Read(bytes.NewReader(sig))
	if err != nil {
		return nil, fmt.Errorf("authsig: read signature packet: %w", err)
	}
	sigPkt, ok := pkt.(*packet.Signature)
	if !ok {
		return nil, fmt.Errorf("authsig: expected a signature packet, got %T", pkt)
	}
	return sigPkt, nil
}

func hashNameToAlgo(name string) (crypto.Hash, bool) {
	for h, n := range allowedHashes {
		if n == name {
			return h, true
		}
	}
	return 0, false
}
