/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"encoding/json"
	"net/http"

	"grundbuch.dev/registry/internal/metastore"
	"grundbuch.dev/registry/internal/regerr"
)

// dbMutation is the wire envelope for handleDB: a tagged variant of
// metastore.ChangeOp, since the sealed interface itself has no JSON
// shape of its own.
type dbMutation struct {
	Type string          `json:"type"`
	Op   json.RawMessage `json:"op"`
}

// handleDB replays a single typed MetaStore mutation (user, district,
// subscription and access-request bookkeeping) posted by a peer. No
// component in this repository posts to it; followers receive
// metadata through PullDB instead.
func (s *Server) handleDB(w http.ResponseWriter, r *http.Request) {
	var env dbMutation
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, regerr.NewValidationError(1, "Mutation konnte nicht dekodiert werden: %v", err))
		return
	}

	op, err := decodeChangeOp(env)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Meta.ApplyChangeOp(r.Context(), op); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func decodeChangeOp(env dbMutation) (metastore.ChangeOp, error) {
	unmarshal := func(dst any) error {
		if len(env.Op) == 0 {
			return nil
		}
		return json.Unmarshal(env.Op, dst)
	}

	switch env.Type {
	case "CreateUser":
		var op metastore.CreateUserOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige CreateUser-Mutation: %v", err)
		}
		return op, nil
	case "DeleteUser":
		var op metastore.DeleteUserOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige DeleteUser-Mutation: %v", err)
		}
		return op, nil
	case "ChangeRole":
		var op metastore.ChangeRoleOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige ChangeRole-Mutation: %v", err)
		}
		return op, nil
	case "ChangePubKey":
		var op metastore.ChangePubKeyOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige ChangePubKey-Mutation: %v", err)
		}
		return op, nil
	case "CreateDistrict":
		var op metastore.CreateDistrictOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige CreateDistrict-Mutation: %v", err)
		}
		return op, nil
	case "CreateDistricts":
		var op metastore.CreateDistrictsOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige CreateDistricts-Mutation: %v", err)
		}
		return op, nil
	case "DeleteDistricts":
		var op metastore.DeleteDistrictsOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige DeleteDistricts-Mutation: %v", err)
		}
		return op, nil
	case "CreateSubscription":
		var op metastore.CreateSubscriptionOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige CreateSubscription-Mutation: %v", err)
		}
		return op, nil
	case "DeleteSubscription":
		var op metastore.DeleteSubscriptionOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige DeleteSubscription-Mutation: %v", err)
		}
		return op, nil
	case "CreateAccessRequest":
		var op metastore.CreateAccessRequestOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige CreateAccessRequest-Mutation: %v", err)
		}
		return op, nil
	case "GrantAccess":
		var op metastore.GrantAccessOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige GrantAccess-Mutation: %v", err)
		}
		return op, nil
	case "DenyAccess":
		var op metastore.DenyAccessOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige DenyAccess-Mutation: %v", err)
		}
		return op, nil
	case "IssueSessionToken":
		var op metastore.IssueSessionTokenOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige IssueSessionToken-Mutation: %v", err)
		}
		return op, nil
	case "SetConfig":
		var op metastore.SetConfigOp
		if err := unmarshal(&op); err != nil {
			return nil, regerr.NewValidationError(1, "ungültige SetConfig-Mutation: %v", err)
		}
		return op, nil
	default:
		return nil, regerr.NewValidationError(1, "unbekannter Mutationstyp: %s", env.Type)
	}
}

// handlePull tells this node to pull the writer's document log now,
// rather than waiting for the writer's next push notification.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	writerAddr, err := s.Discovery.WriterAddress(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Sync.PullDocs(r.Context(), writerAddr); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// handlePullDB tells this node to pull the writer's MetaDB snapshot now.
func (s *Server) handlePullDB(w http.ResponseWriter, r *http.Request) {
	writerAddr, err := s.Discovery.WriterAddress(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Sync.PullDB(r.Context(), writerAddr); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// handleGetDB serves the compressed MetaDB snapshot a follower's
// PullDB fetches over HTTP.
func (s *Server) handleGetDB(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Meta.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zstd")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap)
}
