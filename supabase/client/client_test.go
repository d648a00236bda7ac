package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{URL: server.URL, APIKey: "service-role-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, server
}

func TestQueryBuilderProbe(t *testing.T) {
	var gotPath, gotQuery, gotAPIKey string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("apikey")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[]"))
	})

	resp, err := c.From("app_42_todos").Select("id").Limit(1).Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotPath != "/rest/v1/app_42_todos" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "limit=1&select=id" {
		t.Errorf("query = %s", gotQuery)
	}
	if gotAPIKey != "service-role-key" {
		t.Errorf("apikey header = %s", gotAPIKey)
	}
}

func TestExecuteInsertAndGet(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if prefer := r.Header.Get("Prefer"); prefer != "return=representation" {
			t.Errorf("Prefer = %s", prefer)
		}
		var rows []map[string]any
		body := json.NewDecoder(r.Body)
		if err := body.Decode(&rows); err != nil {
			// single-object inserts are also valid
			rows = nil
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"row-1"}]`))
	})

	resp, err := c.From("app_42_todos").ExecuteInsert(context.Background(), []map[string]any{{"id": "row-1"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := resp.Get("0.id").String(); got != "row-1" {
		t.Errorf("inserted id = %q, want row-1", got)
	}
}

func TestExecuteDeleteFilter(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[]"))
	})

	if _, err := c.From("app_42_todos").Eq("id", "row-1").ExecuteDelete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotQuery != "id=eq.row-1" {
		t.Errorf("query = %s, want id=eq.row-1", gotQuery)
	}
}

func TestExecSQL(t *testing.T) {
	var gotSQL string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/exec_sql" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var params map[string]string
		json.NewDecoder(r.Body).Decode(&params)
		gotSQL = params["sql"]
		w.WriteHeader(http.StatusOK)
	})

	if err := c.ExecSQL(context.Background(), "select 1"); err != nil {
		t.Fatalf("exec sql: %v", err)
	}
	if gotSQL != "select 1" {
		t.Errorf("sql = %q", gotSQL)
	}
}

func TestExecSQLSurfacesFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"permission denied"}`))
	})

	err := c.ExecSQL(context.Background(), "alter table x enable row level security")
	if err == nil {
		t.Fatal("expected error from non-success response")
	}
}

func TestBucketPublicURL(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	url := c.Storage().From("app-assets").GetPublicURL("app-42/logo.png")
	want := server.URL + "/storage/v1/object/public/app-assets/app-42/logo.png"
	if url != want {
		t.Errorf("public url = %s, want %s", url, want)
	}
}

func TestBucketUpload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/app-assets/app-42/logo.png" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %s", ct)
		}
		if r.Header.Get("x-upsert") != "true" {
			t.Error("uploads must overwrite the previous deploy's object")
		}
		w.WriteHeader(http.StatusOK)
	})

	resp, err := c.Storage().From("app-assets").Upload(context.Background(), "app-42/logo.png", []byte{1, 2, 3}, "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
