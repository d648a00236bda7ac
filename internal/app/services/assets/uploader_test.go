package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/appforge/platform/internal/app/domain/build"
	"github.com/appforge/platform/pkg/logger"
	supabase "github.com/appforge/platform/supabase/client"
)

func newUploader(t *testing.T, handler http.HandlerFunc) (*Uploader, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New client: %v", err)
	}
	return NewUploader(client, logger.NewNop()), srv
}

func TestUploadObjectPathsAndURLs(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	uploader, srv := newUploader(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("x-upsert"); got != "true" {
			t.Errorf("x-upsert = %q, want true", got)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"Key":"ok"}`))
	})

	artifact := build.Artifact{
		"logo.png":        "pngbytes",
		"fonts/inter.ttf": "ttfbytes",
	}
	result, err := uploader.Upload(context.Background(), "app-1", "production", artifact)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Uploaded() != 2 {
		t.Fatalf("uploaded = %d, want 2", result.Uploaded())
	}
	if len(result.Failed) != 0 {
		t.Fatalf("failed = %v, want none", result.Failed)
	}

	wantURL := srv.URL + "/storage/v1/object/public/app-assets/app-1/production/logo.png"
	if got := result.URLs["logo.png"]; got != wantURL {
		t.Errorf("URL = %q, want %q", got, wantURL)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range paths {
		if !strings.HasPrefix(p, "/storage/v1/object/app-assets/app-1/production/") {
			t.Errorf("unexpected object path %q", p)
		}
	}
}

func TestUploadPartialFailure(t *testing.T) {
	uploader, _ := newUploader(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "broken.png") {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"disk full"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"Key":"ok"}`))
	})

	artifact := build.Artifact{
		"ok.png":     "x",
		"broken.png": "y",
	}
	result, err := uploader.Upload(context.Background(), "app-2", "staging", artifact)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Uploaded() != 1 {
		t.Fatalf("uploaded = %d, want 1", result.Uploaded())
	}
	if _, ok := result.Failed["broken.png"]; !ok {
		t.Fatalf("expected broken.png in failed set, got %v", result.Failed)
	}
	if _, ok := result.URLs["broken.png"]; ok {
		t.Fatal("failed asset must not receive a public URL")
	}
}

func TestUploadEmptyArtifact(t *testing.T) {
	uploader, _ := newUploader(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty artifact")
	})

	result, err := uploader.Upload(context.Background(), "app-3", "staging", nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Uploaded() != 0 || len(result.Failed) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestUploadContentType(t *testing.T) {
	var (
		mu sync.Mutex
		ct = map[string]string{}
	)
	uploader, _ := newUploader(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ct[r.URL.Path] = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	artifact := build.Artifact{"photo.webp": "x"}
	if _, err := uploader.Upload(context.Background(), "app-4", "staging", artifact); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for path, got := range ct {
		if got != "image/webp" {
			t.Errorf("content type for %s = %q, want image/webp", path, got)
		}
	}
}
