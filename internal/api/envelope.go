/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package api is the HTTP surface: one chi router, every handler
// wrapped in the {status, ...} envelope the original always returns
// with a 200 status line, domain errors included — a legacy
// convention reproduced verbatim rather than "fixed" into proper HTTP
// status codes, since clients already depend on it.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"grundbuch.dev/registry/internal/regerr"
)

type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Code   int    `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, envelope{Status: "ok", Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	code := 0
	var (
		ae *regerr.AuthError
		ve *regerr.ValidationError
		ce *regerr.ClusterError
		se *regerr.StorageError
	)
	switch {
	case errors.As(err, &ae):
		code = ae.Code
	case errors.As(err, &ve):
		code = ve.Code
	case errors.As(err, &ce):
		code = ce.Code
	case errors.As(err, &se):
		code = se.Code
	}
	writeJSON(w, envelope{Status: "error", Code: code, Error: err.Error()})
}

// writeJSON always answers with HTTP 200: the envelope's "status"
// field is the only error signal, matching the original API's
// behavior exactly.
func writeJSON(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}
