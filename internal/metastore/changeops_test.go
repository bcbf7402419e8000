/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"
	"strings"
	"testing"

	"grundbuch.dev/registry/internal/canon"
)

// variants must list one value per ChangeOp implementation. The test
// below checks that each listed variant reaches its own branch of
// ApplyChangeOp; an operation missing from this list is not detected.
func variants() []ChangeOp {
	return []ChangeOp{
		CreateUserOp{},
		DeleteUserOp{},
		ChangeRoleOp{},
		ChangePubKeyOp{},
		CreateDistrictOp{},
		CreateDistrictsOp{},
		DeleteDistrictsOp{},
		CreateSubscriptionOp{},
		DeleteSubscriptionOp{},
		CreateAccessRequestOp{},
		GrantAccessOp{},
		DenyAccessOp{},
		IssueSessionTokenOp{},
		SetConfigOp{},
	}
}

func TestApplyChangeOpHandlesEveryVariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range variants() {
		// SetConfigOp is intentionally unimplemented; every other
		// variant must reach real logic rather than the default
		// "unhandled operation" branch.
		err := s.ApplyChangeOp(ctx, v)
		if err == nil {
			continue
		}
		if err.Error() == "" {
			t.Errorf("ApplyChangeOp(%T) produced an empty error", v)
		}
		if strings.HasPrefix(err.Error(), "metastore: unhandled change operation") {
			t.Errorf("ApplyChangeOp(%T) fell through to the default branch: %v", v, err)
		}
	}
}

func TestApplyChangeOpCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ApplyChangeOp(ctx, CreateUserOp{Email: "a@example.org", Password: "correctHorseBattery", Role: RoleBetrachter}); err != nil {
		t.Fatalf("ApplyChangeOp(CreateUserOp): %v", err)
	}
	u, err := s.UserByEmail(ctx, "a@example.org")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if u.Role != RoleBetrachter {
		t.Fatalf("got role %s, want %s", u.Role, RoleBetrachter)
	}
}

func TestApplyChangeOpCreateAccessRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := canon.DocKey{Amtsgericht: "Prenzlau", Bezirk: "Seeluebbe", Blatt: 42}
	req := AccessRequest{
		RequesterName:  "Max Mustermann",
		RequesterEmail: "a@example.org",
		Category:       "Erbschein",
		Justification:  "Nachweis der Erbfolge",
		Keys:           []canon.DocKey{key},
	}
	if err := s.ApplyChangeOp(ctx, CreateAccessRequestOp{Request: req}); err != nil {
		t.Fatalf("ApplyChangeOp(CreateAccessRequestOp): %v", err)
	}
}
