// Package edge talks to the worker hosting platform: script deploys,
// per-unit environment variables, default domains, and route bindings.
package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/appforge/platform/pkg/logger"
)

// API is the edge platform surface the deployment orchestrator needs.
type API interface {
	Deploy(ctx context.Context, unitName, script string) error
	SetEnvVars(ctx context.Context, unitName, environment string, vars map[string]string) error
	EnableDefaultDomain(ctx context.Context, unitName string) error
	EnsureRoute(ctx context.Context, subdomain, unitName string) error
}

// Config holds edge client configuration.
type Config struct {
	BaseURL   string
	AuthToken string
	// RequestsPerSecond caps outbound calls; the platform rate-limits
	// aggressively on shared accounts. Zero means the default of 4.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client is the HTTP implementation of the edge API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

var _ API = (*Client)(nil)

// NewClient creates an edge platform client.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("edge base URL is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("edge auth token is required")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.AuthToken,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     log.Component("edge-client"),
	}, nil
}

// Deploy uploads a worker script, overwriting any previous version of the
// unit.
func (c *Client) Deploy(ctx context.Context, unitName, script string) error {
	path := fmt.Sprintf("/units/%s/script", unitName)
	return c.call(ctx, http.MethodPut, path, map[string]any{"script": script})
}

// SetEnvVars replaces the unit's environment variables for one environment.
func (c *Client) SetEnvVars(ctx context.Context, unitName, environment string, vars map[string]string) error {
	path := fmt.Sprintf("/units/%s/env", unitName)
	return c.call(ctx, http.MethodPut, path, map[string]any{
		"environment": environment,
		"vars":        vars,
	})
}

// EnableDefaultDomain turns on the platform-issued domain for the unit.
func (c *Client) EnableDefaultDomain(ctx context.Context, unitName string) error {
	path := fmt.Sprintf("/units/%s/domain", unitName)
	return c.call(ctx, http.MethodPost, path, map[string]any{"enabled": true})
}

// EnsureRoute binds a subdomain to the unit, idempotently.
func (c *Client) EnsureRoute(ctx context.Context, subdomain, unitName string) error {
	return c.call(ctx, http.MethodPut, "/routes", map[string]any{
		"subdomain": subdomain,
		"unit":      unitName,
	})
}

func (c *Client) call(ctx context.Context, method, path string, payload any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("edge rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode edge request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create edge request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("edge %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("edge %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
