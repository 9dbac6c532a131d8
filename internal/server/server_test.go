package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/knakagawa/retrieval/internal/auth"
	"github.com/knakagawa/retrieval/internal/repository/memory"
	"github.com/knakagawa/retrieval/internal/service"
)

func newTestServer(t *testing.T, adminKey string) *HTTPServer {
	t.Helper()
	srv, err := NewHTTPServer(HTTPServerConfig{
		Port:        0,
		AdminAPIKey: adminKey,
	})
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, "")

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestAdminKeyGuard(t *testing.T) {
	srv := newTestServer(t, "secret")

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusForbidden},
		// With the right key the request reaches the handler, which
		// rejects the empty body
		{"right key", "secret", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/knowledge-bases", strings.NewReader(""))
			if tt.key != "" {
				req.Header.Set(auth.APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAdminRoutesRejectedWithoutConfiguredKey(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodDelete, "/api/cache", nil)
	req.Header.Set(auth.APIKeyHeader, "anything")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no admin key is configured", rec.Code)
	}
}

func TestSearchRequestValidation(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"empty query", `{"query": "  "}`},
		{"malformed json", `{"query":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListStrategies(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/search/strategies", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"auto", "semantic", "fulltext", "hybrid"} {
		if !strings.Contains(body, name) {
			t.Errorf("response missing strategy %q: %s", name, body)
		}
	}
}

func TestFeedbackWithoutSearchID(t *testing.T) {
	store := memory.NewStore(0)
	srv, err := NewHTTPServer(HTTPServerConfig{
		Analytics: service.NewAnalyticsService(store.SearchLogs(), store.Feedback(), nil),
	})
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/feedback",
		strings.NewReader(`{"type":"positive","rating":4}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	fbs, err := store.Feedback().Since(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(fbs) != 1 {
		t.Fatalf("stored %d feedback entries, want 1", len(fbs))
	}
	// Omitted search_id stays unset rather than becoming the zero UUID.
	if fbs[0].SearchID != nil {
		t.Errorf("SearchID = %v, want nil", fbs[0].SearchID)
	}
}

func TestFeedbackValidation(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"type":"meh"}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid feedback type", rec.Code)
	}
}
