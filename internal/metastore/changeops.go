/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"
	"fmt"

	"grundbuch.dev/registry/internal/regerr"
)

// ChangeOp is the sealed sum type of every administrative mutation the
// writer can apply. Only this package may implement it, via the
// unexported changeOp marker method — a tagged variant with a single
// apply function that pattern-matches, made exhaustive by the
// Go type system rather than by convention.
type ChangeOp interface {
	changeOp()
}

type CreateUserOp struct {
	Email, Password string
	Role            Role
}

type DeleteUserOp struct{ UserID int64 }

type ChangeRoleOp struct {
	UserID int64
	Role   Role
}

type ChangePubKeyOp struct {
	UserID               int64
	Fingerprint, Armored string
	Revoke               bool
}

type CreateDistrictOp struct{ District District }

type CreateDistrictsOp struct{ Districts []District }

type DeleteDistrictsOp struct{ Districts []District }

type CreateSubscriptionOp struct{ Subscription Subscription }

type DeleteSubscriptionOp struct {
	UserID, SubscriptionID int64
}

type CreateAccessRequestOp struct{ Request AccessRequest }

type GrantAccessOp struct{ RequestID, Actor string }

type DenyAccessOp struct{ RequestID, Actor string }

type IssueSessionTokenOp struct {
	Email, Password string
}

type SetConfigOp struct{ Key, Value string }

func (CreateUserOp) changeOp()          {}
func (DeleteUserOp) changeOp()          {}
func (ChangeRoleOp) changeOp()          {}
func (ChangePubKeyOp) changeOp()        {}
func (CreateDistrictOp) changeOp()      {}
func (CreateDistrictsOp) changeOp()     {}
func (DeleteDistrictsOp) changeOp()     {}
func (CreateSubscriptionOp) changeOp()  {}
func (DeleteSubscriptionOp) changeOp()  {}
func (CreateAccessRequestOp) changeOp() {}
func (GrantAccessOp) changeOp()         {}
func (DenyAccessOp) changeOp()          {}
func (IssueSessionTokenOp) changeOp()   {}
func (SetConfigOp) changeOp()           {}

// ApplyChangeOp is the single dispatcher over the sum type above. Every
// branch either mutates the database or, for IssueSessionTokenOp,
// performs the login and discards the token — replay through
// internal/api's /db handler cares only that the side effect happened, not about
// values the original caller already has.
func (s *Store) ApplyChangeOp(ctx context.Context, op ChangeOp) error {
	switch o := op.(type) {
	case CreateUserOp:
		_, err := s.CreateUser(ctx, o.Email, o.Password, o.Role)
		return err
	case DeleteUserOp:
		return s.DeleteUser(ctx, o.UserID)
	case ChangeRoleOp:
		return s.ChangeRole(ctx, o.UserID, o.Role)
	case ChangePubKeyOp:
		if o.Revoke {
			return s.RevokePublicKey(ctx, o.UserID, o.Fingerprint)
		}
		return s.RegisterPublicKey(ctx, o.UserID, o.Fingerprint, o.Armored)
	case CreateDistrictOp:
		return s.CreateDistrict(ctx, o.District)
	case CreateDistrictsOp:
		return s.CreateDistricts(ctx, o.Districts)
	case DeleteDistrictsOp:
		return s.DeleteDistricts(ctx, o.Districts)
	case CreateSubscriptionOp:
		_, err := s.CreateSubscription(ctx, o.Subscription)
		return err
	case DeleteSubscriptionOp:
		return s.DeleteSubscription(ctx, o.UserID, o.SubscriptionID)
	case CreateAccessRequestOp:
		_, err := s.CreateAccessRequest(ctx, o.Request)
		return err
	case GrantAccessOp:
		return s.GrantAccess(ctx, o.RequestID, o.Actor)
	case DenyAccessOp:
		return s.DenyAccess(ctx, o.RequestID, o.Actor)
	case IssueSessionTokenOp:
		_, _, err := s.Login(ctx, o.Email, o.Password)
		return err
	case SetConfigOp:
		return regerr.ErrNotImplemented
	default:
		return fmt.Errorf("metastore: unhandled change operation %T", op)
	}
}
