package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/store"
)

func newServerAndToken(t *testing.T, role string) (*HTTPServer, string) {
	t.Helper()
	fs := &fakeStore{
		getProfileByIDFn: func(_ context.Context, profileID string) (store.Profile, error) {
			return store.Profile{ID: profileID, DisplayName: "Test User", Role: role, Language: "ru"}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "prf_" + role,
		Name: "Test User",
		Role: role,
		Lang: "ru",
		JTI:  "jti_" + role,
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return server, token
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if response["ok"] != true {
		t.Fatalf("expected ok=true, got %v", response["ok"])
	}
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*")

	for _, path := range []string{"/api/toc", "/api/profile", "/api/chapters", "/api/notifications"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d body=%s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestViewerWriteEndpointsAreForbidden(t *testing.T) {
	server, token := newServerAndToken(t, "viewer")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "create chapter", method: http.MethodPost, path: "/api/chapters", body: `{"title":"Ch"}`},
		{name: "reorder chapters", method: http.MethodPost, path: "/api/chapters/reorder", body: `{"orderedIds":["ch_1"]}`},
		{name: "update page", method: http.MethodPut, path: "/api/pages/pg_1", body: `{"title":"P","body":"B"}`},
		{name: "reorder paragraphs", method: http.MethodPost, path: "/api/pages/pg_1/reorder", body: `{"orderedIds":["pr_1"]}`},
		{name: "delete paragraph", method: http.MethodDelete, path: "/api/paragraphs/pr_1", body: ``},
		{name: "restore page version", method: http.MethodPost, path: "/api/pages/pg_1/versions/1/restore", body: `{}`},
		{name: "upsert translation", method: http.MethodPut, path: "/api/pages/pg_1/translations/en", body: `{"title":"T","body":"B"}`},
		{name: "delete media", method: http.MethodDelete, path: "/api/media/2026/08/img_abc.jpg", body: ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			server.Handler().ServeHTTP(rr, req)

			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
			}
			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if payload["code"] != "FORBIDDEN" {
				t.Fatalf("expected code FORBIDDEN, got %v", payload["code"])
			}
		})
	}
}

func TestModerationEndpointsRequireAdmin(t *testing.T) {
	for _, role := range []string{"viewer", "editor"} {
		server, token := newServerAndToken(t, role)

		paths := []struct {
			method string
			path   string
			body   string
		}{
			{method: http.MethodPost, path: "/api/suggestions/sg_1/approve", body: `{}`},
			{method: http.MethodPost, path: "/api/suggestions/sg_1/reject", body: `{}`},
			{method: http.MethodGet, path: "/api/suggestions/pending", body: ``},
			{method: http.MethodGet, path: "/api/admin/users", body: ``},
			{method: http.MethodPut, path: "/api/admin/settings", body: `{"comments_enabled":"false"}`},
		}

		for _, endpoint := range paths {
			req := httptest.NewRequest(endpoint.method, endpoint.path, bytes.NewBufferString(endpoint.body))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			server.Handler().ServeHTTP(rr, req)

			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403 for role=%s %s %s, got %d body=%s", role, endpoint.method, endpoint.path, rr.Code, rr.Body.String())
			}
		}
	}
}

func TestEditorCanCreateChapter(t *testing.T) {
	var inserted store.Chapter
	fs := &fakeStore{
		getProfileByIDFn: func(_ context.Context, profileID string) (store.Profile, error) {
			return store.Profile{ID: profileID, DisplayName: "Test User", Role: "editor", Language: "ru"}, nil
		},
	}
	fs.insertChapterFn = func(_ context.Context, chapter store.Chapter) error {
		inserted = chapter
		return nil
	}
	fs.getChapterFn = func(context.Context, string) (store.Chapter, error) {
		return inserted, nil
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "prf_editor",
		Name: "Test User",
		Role: "editor",
		JTI:  "jti_editor",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chapters", bytes.NewBufferString(`{"title":"Getting Started"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["title"] != "Getting Started" {
		t.Fatalf("expected title back, got %v", payload["title"])
	}
}

func TestMediaDeleteWithoutStorageConfigured(t *testing.T) {
	server, token := newServerAndToken(t, "editor")

	req := httptest.NewRequest(http.MethodDelete, "/api/media/2026/08/img_abc.jpg", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "MEDIA_UNAVAILABLE" {
		t.Fatalf("expected code MEDIA_UNAVAILABLE, got %v", payload["code"])
	}
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/session/refresh", bytes.NewBufferString(`{"refreshToken":"rft_bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

type fakeStoreNotPending struct {
	fakeStore
}

func (f *fakeStoreNotPending) ApproveSuggestion(context.Context, string, string, string, bool) error {
	return store.ErrNotPending
}

func TestApproveSettledSuggestionConflicts(t *testing.T) {
	fs := &fakeStoreNotPending{}
	fs.getProfileByIDFn = func(_ context.Context, profileID string) (store.Profile, error) {
		return store.Profile{ID: profileID, DisplayName: "Admin", Role: "admin", Language: "ru"}, nil
	}
	svc := newTestService(&fs.fakeStore)
	svc.store = fs
	server := NewHTTPServer(svc, "*")

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "prf_admin",
		Name: "Admin",
		Role: "admin",
		JTI:  "jti_admin",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/suggestions/sg_1/approve", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "NOT_PENDING" {
		t.Fatalf("expected code NOT_PENDING, got %v", payload["code"])
	}
}
