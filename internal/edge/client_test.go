package edge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/appforge/platform/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:           srv.URL,
		AuthToken:         "edge-token",
		RequestsPerSecond: 1000,
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestDeploySendsScript(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/units/production-app-1/script" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer edge-token" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["script"] != "'use strict';" {
			t.Errorf("script = %q", body["script"])
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Deploy(context.Background(), "production-app-1", "'use strict';"); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
}

func TestSetEnvVarsPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Environment string            `json:"environment"`
			Vars        map[string]string `json:"vars"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Environment != "staging" || body.Vars["API_URL"] == "" {
			t.Errorf("payload = %+v", body)
		}
		w.WriteHeader(http.StatusOK)
	})

	err := client.SetEnvVars(context.Background(), "staging-app-1", "staging", map[string]string{"API_URL": "https://api"})
	if err != nil {
		t.Fatalf("SetEnvVars: %v", err)
	}
}

func TestEnsureRouteIdempotentBinding(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/routes" || r.Method != http.MethodPut {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		if err := client.EnsureRoute(context.Background(), "notes", "production-app-1"); err != nil {
			t.Fatalf("EnsureRoute: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestFailureSurfacesDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"script too large"}`))
	})

	err := client.EnableDefaultDomain(context.Background(), "production-app-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "403") || !strings.Contains(got, "script too large") {
		t.Fatalf("error %q must carry status and body detail", got)
	}
}
