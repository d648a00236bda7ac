// Package app defines the platform's application record: a generated,
// multi-tenant application with per-environment deployments and schema
// metadata held in the free-form metadata map.
package app

import (
	"fmt"
	"regexp"
	"time"
)

// Environment selects the deployment target for an app.
type Environment string

const (
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// Valid reports whether the environment is one of the supported targets.
func (e Environment) Valid() bool {
	return e == EnvStaging || e == EnvProduction
}

// DeploymentStatus tracks the last observed deployment state of an app.
type DeploymentStatus string

const (
	StatusNeverDeployed DeploymentStatus = "never_deployed"
	StatusDeploying     DeploymentStatus = "deploying"
	StatusDeployed      DeploymentStatus = "deployed"
	StatusFailed        DeploymentStatus = "failed"
)

// App is a generated application hosted by the platform. Deployment fields
// are mutated only by the deployment orchestrator; schema bookkeeping lives
// in Metadata so the record survives backends without a rigid schema.
type App struct {
	ID            string           `json:"id"`
	TeamID        string           `json:"team_id,omitempty"`
	Slug          string           `json:"slug"`
	Name          string           `json:"name"`
	Status        DeploymentStatus `json:"status"`
	StagingURL    string           `json:"staging_url,omitempty"`
	ProductionURL string           `json:"production_url,omitempty"`
	DeployedAt    *time.Time       `json:"deployed_at,omitempty"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PendingRLS records a row-level-security script that could not be applied
// when its table was provisioned. Entries are appended under MetadataPendingRLS
// and must never be dropped until an operator or the replay sweeper succeeds.
type PendingRLS struct {
	Table     string    `json:"table"`
	SQL       string    `json:"sql"`
	CreatedAt time.Time `json:"created_at"`
}

// MetadataPendingRLS is the metadata key holding []PendingRLS entries.
const MetadataPendingRLS = "pending_rls"

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidateSlug rejects slugs that cannot form a routable subdomain.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(slug) > 63 {
		return fmt.Errorf("slug %q exceeds 63 characters", slug)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug %q must match %s", slug, slugPattern.String())
	}
	return nil
}

// PendingRLSEntries decodes the pending RLS list from the app metadata.
// Entries written by this process are []PendingRLS; entries loaded from a
// JSON backend arrive as []any of maps, so both shapes are accepted.
func (a *App) PendingRLSEntries() []PendingRLS {
	raw, ok := a.Metadata[MetadataPendingRLS]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []PendingRLS:
		out := make([]PendingRLS, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]PendingRLS, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entry := PendingRLS{}
			if s, ok := m["table"].(string); ok {
				entry.Table = s
			}
			if s, ok := m["sql"].(string); ok {
				entry.SQL = s
			}
			if s, ok := m["created_at"].(string); ok {
				if ts, err := time.Parse(time.RFC3339, s); err == nil {
					entry.CreatedAt = ts
				}
			}
			if entry.Table != "" {
				out = append(out, entry)
			}
		}
		return out
	}
	return nil
}

// AppendPendingRLS adds an entry to the pending RLS list in the metadata map.
func (a *App) AppendPendingRLS(entry PendingRLS) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[MetadataPendingRLS] = append(a.PendingRLSEntries(), entry)
}

// SetPendingRLS replaces the pending RLS list; an empty list removes the key.
func (a *App) SetPendingRLS(entries []PendingRLS) {
	if len(entries) == 0 {
		delete(a.Metadata, MetadataPendingRLS)
		return
	}
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[MetadataPendingRLS] = entries
}

// URLFor returns the recorded deployment URL for the environment.
func (a *App) URLFor(env Environment) string {
	if env == EnvProduction {
		return a.ProductionURL
	}
	return a.StagingURL
}
