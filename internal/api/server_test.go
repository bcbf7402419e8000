/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/docstore"
	"grundbuch.dev/registry/internal/metastore"
	"grundbuch.dev/registry/internal/replica"
	"grundbuch.dev/registry/internal/searchindex"
)

// docstoreApplier is a test-local replica.Applier that writes straight
// through docstore, skipping signature verification so handler tests
// can focus on the HTTP surface (authsig has its own test suite).
type docstoreApplier struct {
	docs *docstore.Store
	land string
}

func (a *docstoreApplier) Apply(ctx context.Context, cs canon.Changeset) (replica.CommitID, error) {
	id, err := a.docs.ApplyChangeset(ctx, docstore.Author{Name: "test", Email: "test@example.org"}, staticResolver{land: a.land}, cs)
	return replica.CommitID(id), err
}

type staticResolver struct{ land string }

func (r staticResolver) ResolveLand(ctx context.Context, amtsgericht, bezirk string) (string, error) {
	return r.land, nil
}

func newTestServer(t *testing.T) (*Server, *metastore.Store) {
	t.Helper()
	ctx := context.Background()

	meta, err := metastore.Open(ctx, filepath.Join(t.TempDir(), "grundbuch.sqlite"))
	if err != nil {
		t.Fatalf("metastore.Open: %v", err)
	}
	t.Cleanup(func() { meta.Close() })

	if err := meta.CreateDistrict(ctx, metastore.District{Amtsgericht: "*", Bezirk: "Seeluebbe", Anzeigename: "Brandenburg"}); err != nil {
		t.Fatalf("CreateDistrict: %v", err)
	}

	docs, err := docstore.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}

	router := &replica.Router{
		Mode:    replica.ModeStandalone,
		Applier: &docstoreApplier{docs: docs, land: "Brandenburg"},
	}

	return &Server{
		Meta:   meta,
		Docs:   docs,
		Router: router,
		Index:  searchindex.NewMemory(),
	}, meta
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decoding envelope: %v\nbody: %s", err, body)
	}
	return env
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLoginThenAuthenticatedDownload(t *testing.T) {
	srv, meta := newTestServer(t)
	ctx := context.Background()

	if _, err := meta.CreateUser(ctx, "amt@example.org", "einSicheresPasswort", metastore.RoleBearbeiter); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	form := url.Values{"email": {"amt@example.org"}, "password": {"einSicheresPasswort"}}
	resp, err := http.PostForm(ts.URL+"/login", form)
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	var loginEnv envelope
	if err := json.NewDecoder(resp.Body).Decode(&loginEnv); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	resp.Body.Close()
	if loginEnv.Status != "ok" {
		t.Fatalf("login status = %q, want ok (error: %s)", loginEnv.Status, loginEnv.Error)
	}
	data, _ := json.Marshal(loginEnv.Data)
	var login loginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("decoding login data: %v", err)
	}
	if login.Token == "" {
		t.Fatal("expected a non-empty session token")
	}

	// Without a token, the download endpoint must reject the request.
	unauthed, err := http.Get(ts.URL + "/download/doc/Prenzlau/Seeluebbe/1")
	if err != nil {
		t.Fatalf("GET /download/doc (unauthenticated): %v", err)
	}
	defer unauthed.Body.Close()
	unauthedEnv := decodeEnvelope(t, readAll(t, unauthed))
	if unauthedEnv.Status != "error" {
		t.Fatalf("unauthenticated download status = %q, want error", unauthedEnv.Status)
	}

	// With the token, a nonexistent document comes back as a structured
	// error, not a transport failure.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/download/doc/Prenzlau/Seeluebbe/1", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /download/doc (authenticated): %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (envelope carries the real outcome)", authed.StatusCode)
	}
	authedEnv := decodeEnvelope(t, readAll(t, authed))
	if authedEnv.Status != "error" {
		t.Fatalf("expected a not-found error for a document that was never committed, got %q", authedEnv.Status)
	}
}

func TestCommitThenDownloadRoundTrips(t *testing.T) {
	srv, meta := newTestServer(t)
	ctx := context.Background()

	if _, err := meta.CreateUser(ctx, "bearbeiter@example.org", "einSicheresPasswort", metastore.RoleBearbeiter); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, _, err := meta.Login(ctx, "bearbeiter@example.org", "einSicheresPasswort")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	key := canon.DocKey{Amtsgericht: "Prenzlau", Bezirk: "Seeluebbe", Blatt: 7}
	cs := canon.Changeset{
		Title:       "Ersteintragung",
		Description: "Testeintrag",
		HashTag:     "SHA256",
		Payload: canon.Payload{
			New: []canon.Document{{Key: key, Body: map[string]any{"eigentuemer": "Max Mustermann"}}},
		},
	}
	body, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshaling changeset: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/commit", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /commit: %v", err)
	}
	defer resp.Body.Close()
	commitEnv := decodeEnvelope(t, readAll(t, resp))
	if commitEnv.Status != "ok" {
		t.Fatalf("commit status = %q, want ok (error: %s)", commitEnv.Status, commitEnv.Error)
	}

	dlReq, _ := http.NewRequest(http.MethodGet, ts.URL+"/download/doc/Prenzlau/Seeluebbe/7", nil)
	dlReq.Header.Set("Authorization", "Bearer "+token)
	dlResp, err := http.DefaultClient.Do(dlReq)
	if err != nil {
		t.Fatalf("GET /download/doc: %v", err)
	}
	defer dlResp.Body.Close()
	dlEnv := decodeEnvelope(t, readAll(t, dlResp))
	if dlEnv.Status != "ok" {
		t.Fatalf("download status = %q, want ok (error: %s)", dlEnv.Status, dlEnv.Error)
	}
}

func TestPeerEndpointsRejectMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.PeerToken = "geheim"
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/get-db", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /get-db: %v", err)
	}
	defer resp.Body.Close()
	env := decodeEnvelope(t, readAll(t, resp))
	if env.Status != "error" {
		t.Fatalf("status = %q, want error for a missing peer token", env.Status)
	}
}

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return buf
}
