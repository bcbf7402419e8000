/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// MaxPasswordLen caps plaintext passwords at the boundary. The original
// implementation enforced a cap whose exact rationale is undocumented
// upstream; the cap is retained unchanged rather than guessed at or
// silently dropped.
const MaxPasswordLen = 50

// Argon2id interactive-class parameters: one pass over 64 MiB with four
// lanes. The memory cost equals libsodium's argon2id13
// MEMLIMIT_INTERACTIVE; the pass and lane counts differ from its
// OPSLIMIT_INTERACTIVE (two passes, one lane).
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// hashPassword derives a memory-hard Argon2id hash with a fresh
// per-password salt, encoded as "$argon2id$v=19$m=…,t=…,p=…$salt$hash".
func hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("metastore: generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyPassword checks password against an encoded hash in
// constant time relative to the stored hash bytes. Any malformed
// encoding verifies false rather than
// erroring, since a corrupt stored hash must never be distinguishable
// from a wrong password via error behavior.
//
// encoded has 5 "$"-delimited fields after the leading empty one
// ("", "argon2id", "v=19", "m=…,t=…,p=…", salt, hash), so splitting on
// "$" yields 6 elements.
func verifyPassword(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var m, tm uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &tm, &p); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, tm, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
