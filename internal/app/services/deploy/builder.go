package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/build"
)

// HTTPBuilder calls the external build collaborator over HTTP.
type HTTPBuilder struct {
	endpoint string
	http     *http.Client
}

var _ Builder = (*HTTPBuilder)(nil)

// NewHTTPBuilder creates a builder client for the given endpoint.
func NewHTTPBuilder(endpoint string, client *http.Client) *HTTPBuilder {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPBuilder{endpoint: endpoint, http: client}
}

// Build requests a build and returns its path to content artifact.
func (b *HTTPBuilder) Build(ctx context.Context, a app.App) (build.Artifact, error) {
	payload, err := json.Marshal(map[string]string{
		"app_id": a.ID,
		"slug":   a.Slug,
	})
	if err != nil {
		return nil, fmt.Errorf("encode build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool              `json:"success"`
		Files   map[string]string `json:"files"`
		Error   string            `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode build response: %w", err)
	}
	if !body.Success {
		if body.Error == "" {
			body.Error = fmt.Sprintf("builder returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("build failed: %s", body.Error)
	}
	return build.Artifact(body.Files), nil
}
