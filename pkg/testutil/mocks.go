// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/build"
	"github.com/appforge/platform/internal/app/services/assets"
)

// MockBuilder is a test implementation of the deploy.Builder contract.
type MockBuilder struct {
	mu    sync.Mutex
	Files build.Artifact
	Err   error
	Calls int
}

// NewMockBuilder creates a builder that returns the given files.
func NewMockBuilder(files build.Artifact) *MockBuilder {
	return &MockBuilder{Files: files}
}

// Build returns the configured artifact or error.
func (m *MockBuilder) Build(_ context.Context, _ app.App) (build.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Files, nil
}

// MockAssetUploader is a test implementation of the asset offload contract.
// It fabricates a URL per path unless an error is configured.
type MockAssetUploader struct {
	mu       sync.Mutex
	BaseURL  string
	Err      error
	Uploaded []string
}

// NewMockAssetUploader creates an uploader serving URLs under baseURL.
func NewMockAssetUploader(baseURL string) *MockAssetUploader {
	return &MockAssetUploader{BaseURL: baseURL}
}

// Upload records the uploaded paths and returns fabricated URLs.
func (m *MockAssetUploader) Upload(_ context.Context, appID, environment string, files build.Artifact) (assets.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return assets.Result{}, m.Err
	}
	result := assets.Result{URLs: make(map[string]string), Failed: make(map[string]error)}
	for _, path := range files.Paths() {
		m.Uploaded = append(m.Uploaded, path)
		result.URLs[path] = fmt.Sprintf("%s/%s/%s/%s", m.BaseURL, appID, environment, path)
	}
	return result, nil
}

// MockEdge is a test implementation of the edge platform API. It records
// every call and can fail a single named operation.
type MockEdge struct {
	mu sync.Mutex

	Scripts map[string]string
	EnvVars map[string]map[string]string
	Domains map[string]bool
	Routes  map[string]string

	// FailOp names one of deploy, env, domain, route; the matching call
	// returns FailErr.
	FailOp  string
	FailErr error
}

// NewMockEdge creates an empty mock edge platform.
func NewMockEdge() *MockEdge {
	return &MockEdge{
		Scripts: make(map[string]string),
		EnvVars: make(map[string]map[string]string),
		Domains: make(map[string]bool),
		Routes:  make(map[string]string),
	}
}

func (m *MockEdge) fail(op string) error {
	if m.FailOp == op {
		if m.FailErr != nil {
			return m.FailErr
		}
		return fmt.Errorf("edge %s failed", op)
	}
	return nil
}

// Deploy records the uploaded script for the unit.
func (m *MockEdge) Deploy(_ context.Context, unitName, script string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("deploy"); err != nil {
		return err
	}
	m.Scripts[unitName] = script
	return nil
}

// SetEnvVars records the unit's environment variables.
func (m *MockEdge) SetEnvVars(_ context.Context, unitName, environment string, vars map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("env"); err != nil {
		return err
	}
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	m.EnvVars[unitName+"/"+environment] = copied
	return nil
}

// EnableDefaultDomain records the default-domain flag for the unit.
func (m *MockEdge) EnableDefaultDomain(_ context.Context, unitName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("domain"); err != nil {
		return err
	}
	m.Domains[unitName] = true
	return nil
}

// EnsureRoute records the subdomain binding.
func (m *MockEdge) EnsureRoute(_ context.Context, subdomain, unitName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("route"); err != nil {
		return err
	}
	m.Routes[subdomain] = unitName
	return nil
}

// Script returns the last deployed script for a unit.
func (m *MockEdge) Script(unitName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Scripts[unitName]
}
