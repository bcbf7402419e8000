/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"
	"strings"

	"grundbuch.dev/registry/internal/regerr"
)

// ClaimNotification records that commitID has been attempted for
// subscriptionID, returning claimed=true the first time it is called
// for that pair and false on every subsequent call — the building
// block internal/notify uses for at-most-once delivery regardless of
// how many times a crashed notifier
// retries the same commit.
func (s *Store) ClaimNotification(ctx context.Context, commitID string, subscriptionID int64) (claimed bool, err error) {
	_, err = s.write.ExecContext(ctx,
		`INSERT INTO benachrichtigt (commit_id, abonnement_id) VALUES (?, ?)`, commitID, subscriptionID)
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, regerr.NewStorageError(1, "Benachrichtigung konnte nicht vermerkt werden: %v", err)
}

// isUniqueViolation reports whether err came from the PRIMARY KEY
// constraint on benachrichtigt(commit_id, abonnement_id). modernc.org/sqlite
// wraps the SQLite result code in its own error type rather than a
// stable sentinel, so matching on the rendered message's constraint
// vocabulary is the most specific check available without cgo.
func isUniqueViolation(err error) bool {
	var msg string
	if err != nil {
		msg = err.Error()
	}
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}
