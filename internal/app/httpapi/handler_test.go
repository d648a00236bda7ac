package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	app "github.com/appforge/platform/internal/app"
	"github.com/appforge/platform/internal/app/domain/build"
	"github.com/appforge/platform/internal/config"
	"github.com/appforge/platform/pkg/logger"
	"github.com/appforge/platform/pkg/testutil"
	supabase "github.com/appforge/platform/supabase/client"
)

// backingStore fakes the REST backend: storage uploads succeed, table
// probes report absent, inserts and deletes succeed, exec_sql succeeds.
func backingStore(t *testing.T) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/storage/"):
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"Key":"ok"}`))
		case strings.HasPrefix(r.URL.Path, "/rest/v1/rpc/"):
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[{"id":"row-1"}]`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return client
}

func newTestServer(t *testing.T) (*httptest.Server, *testutil.MockEdge) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Supabase.URL = "https://store.test"
	cfg.Supabase.ServiceKey = "store-key"
	cfg.Supabase.AssetBucket = "app-assets"
	cfg.Edge.AuthToken = "edge-token"
	cfg.Deploy.AppsDomain = "apps.test"
	cfg.Deploy.WorkerDomain = "workers.test"
	cfg.Deploy.BackendName = "core"
	cfg.Deploy.ServiceSecret = "service-secret"
	cfg.Migration.StorageEnabled = true
	cfg.Migration.Phase = "testing"

	mockEdge := testutil.NewMockEdge()
	builder := testutil.NewMockBuilder(build.Artifact{
		"index.html": "<html><head></head><body></body></html>",
		"logo.png":   "pngbytes",
	})

	application, err := app.New(cfg, app.Overrides{
		Builder:  builder,
		Edge:     mockEdge,
		Supabase: backingStore(t),
	}, logger.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(application))
	t.Cleanup(srv.Close)
	return srv, mockEdge
}

func createApp(t *testing.T, srv *httptest.Server, slug string) map[string]any {
	t.Helper()
	resp := post(t, srv, "/apps", map[string]any{"slug": slug, "name": "Test App"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func post(t *testing.T, srv *httptest.Server, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestCreateAndGetApp(t *testing.T) {
	srv, _ := newTestServer(t)

	created := createApp(t, srv, "notes")
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	resp, err := http.Get(srv.URL + "/apps/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "notes", got["slug"])
}

func TestCreateAppValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv, "/apps", map[string]any{"slug": "Bad Slug!", "name": "x"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	createApp(t, srv, "taken")
	dup := post(t, srv, "/apps", map[string]any{"slug": "taken", "name": "x"})
	dup.Body.Close()
	require.Equal(t, http.StatusConflict, dup.StatusCode)
}

func TestGetUnknownApp(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/apps/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeployEndpoint(t *testing.T) {
	srv, mockEdge := newTestServer(t)
	created := createApp(t, srv, "notes")
	id := created["id"].(string)

	resp := post(t, srv, "/apps/"+id+"/deploy", map[string]any{"environment": "production"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, true, result["success"])
	require.Equal(t, "https://notes.apps.test", result["deployment_url"])
	require.Len(t, mockEdge.Scripts, 1)
}

func TestDeployRejectsUnknownEnvironment(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createApp(t, srv, "notes")
	id := created["id"].(string)

	resp := post(t, srv, "/apps/"+id+"/deploy", map[string]any{"environment": "qa"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProvisionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createApp(t, srv, "notes")
	id := created["id"].(string)

	resp := post(t, srv, "/apps/"+id+"/provision", map[string]any{
		"source": "fetch('app_77_notes') // plus a todo list",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Tables []struct {
			Name    string `json:"name"`
			Outcome string `json:"outcome"`
		} `json:"tables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Tables, 2)
	for _, tbl := range result.Tables {
		require.Equal(t, "created", tbl.Outcome)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(health.Body).Decode(&payload))
	require.Equal(t, "ok", payload["status"])

	m, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	require.Equal(t, http.StatusOK, m.StatusCode)
}
