/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/metastore"
	"grundbuch.dev/registry/internal/regerr"
	"grundbuch.dev/registry/internal/replica"
)

type loginResponse struct {
	Token      string `json:"token"`
	ValidUntil string `json:"valid_until"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, regerr.NewValidationError(1, "Formular konnte nicht gelesen werden: %v", err))
		return
	}
	email := r.FormValue("email")
	password := r.FormValue("password")
	if len(password) > metastore.MaxPasswordLen {
		writeError(w, regerr.NewValidationError(1, "Passwort überschreitet die maximale Länge von %d Zeichen", metastore.MaxPasswordLen))
		return
	}

	token, expiry, err := s.Meta.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, loginResponse{Token: token, ValidUntil: expiry.Format("2006-01-02T15:04:05Z07:00")})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var cs canon.Changeset
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, regerr.NewValidationError(1, "Anfrage konnte nicht gelesen werden: %v", err))
		return
	}
	if err := json.Unmarshal(body, &cs); err != nil {
		writeError(w, regerr.NewValidationError(1, "Changeset konnte nicht dekodiert werden: %v", err))
		return
	}

	id, err := s.Router.Commit(r.Context(), replica.CommitRequest{
		BearerToken: bearerToken(r),
		Changeset:   cs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if errs := s.notifyCommit(r.Context(), string(id), cs.Touched()); len(errs) > 0 {
		clog.FromContext(r.Context()).Warnf("notify: %d delivery failures for commit %s: %v", len(errs), id, errs)
	}

	writeOK(w, map[string]string{"commit": string(id)})
}

func (s *Server) handleDownloadDoc(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromURL(r)
	if err != nil {
		writeError(w, err)
		return
	}
	land, err := s.Meta.ResolveLand(r.Context(), key.Amtsgericht, key.Bezirk)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.Docs.ReadDoc(r.Context(), land, key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, doc)
}

func (s *Server) handleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromURL(r)
	if err != nil {
		writeError(w, err)
		return
	}
	land, err := s.Meta.ResolveLand(r.Context(), key.Amtsgericht, key.Bezirk)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.Docs.ReadDoc(r.Context(), land, key)
	if err != nil {
		writeError(w, err)
		return
	}
	pdf, err := s.Renderer.Render(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	hits, err := s.Index.Query(r.Context(), term)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, hits)
}

func (s *Server) handleListSubscription(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	subs, err := s.Meta.SubscriptionsForUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, subs)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	key, err := keyFromURL(r)
	if err != nil {
		writeError(w, err)
		return
	}
	kind := chi.URLParam(r, "kind")
	target := r.URL.Query().Get("target")
	reference := r.URL.Query().Get("reference")

	id, err := s.Meta.CreateSubscription(r.Context(), metastore.Subscription{
		UserID:       user.ID,
		Key:          key,
		Kanal:        metastore.Channel(kind),
		Ziel:         target,
		Aktenzeichen: reference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]int64{"id": id})
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	idStr := r.URL.Query().Get("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, regerr.NewValidationError(1, "ungültige Abonnement-ID: %s", idStr))
		return
	}
	if err := s.Meta.DeleteSubscription(r.Context(), user.ID, id); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleCreateAccessRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequesterName  string `json:"requester_name"`
		RequesterEmail string `json:"requester_email"`
		Category       string `json:"category"`
		Justification  string `json:"justification"`
		Keys           []struct {
			Amtsgericht string `json:"amtsgericht"`
			Bezirk      string `json:"bezirk"`
			Blatt       int64  `json:"blatt"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, regerr.NewValidationError(1, "Anfrage konnte nicht dekodiert werden: %v", err))
		return
	}
	keys := make([]canon.DocKey, len(body.Keys))
	for i, k := range body.Keys {
		keys[i] = canon.DocKey{Amtsgericht: k.Amtsgericht, Bezirk: k.Bezirk, Blatt: k.Blatt}
	}
	id, err := s.Meta.CreateAccessRequest(r.Context(), metastore.AccessRequest{
		RequesterName:  body.RequesterName,
		RequesterEmail: body.RequesterEmail,
		Category:       body.Category,
		Justification:  body.Justification,
		Keys:           keys,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"id": id})
}

func (s *Server) handleKonto(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	data, err := s.Meta.Konto(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, data)
}

func keyFromURL(r *http.Request) (canon.DocKey, error) {
	blatt, err := strconv.ParseInt(chi.URLParam(r, "blatt"), 10, 64)
	if err != nil {
		return canon.DocKey{}, regerr.NewValidationError(1, "ungültiges Blatt: %s", chi.URLParam(r, "blatt"))
	}
	key := canon.DocKey{
		Amtsgericht: chi.URLParam(r, "amtsgericht"),
		Bezirk:      chi.URLParam(r, "bezirk"),
		Blatt:       blatt,
	}
	if !key.Valid() {
		return canon.DocKey{}, regerr.NewValidationError(1, "ungültiger Dokumentschlüssel: %s", key.String())
	}
	return key, nil
}
