// Package schema defines per-tenant table metadata and the naming scheme
// that isolates tenants inside the shared backing store.
package schema

import (
	"fmt"
	"regexp"
	"time"
)

// ScopeType describes who owns rows in a provisioned table.
type ScopeType string

const (
	// UserScoped tables carry an owner column and row-level security
	// comparing the authenticated identity against it.
	UserScoped ScopeType = "user_scoped"
	// AppScoped tables are shared by all users of one app.
	AppScoped ScopeType = "app_scoped"
)

// Table is the recorded metadata for one provisioned logical table.
// Uniqueness is (AppID, Name); the physical name derives from both.
type Table struct {
	ID          string    `json:"id"`
	AppID       string    `json:"app_id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Scope       ScopeType `json:"scope"`
	CreatedAt   time.Time `json:"created_at"`
}

// Column is the recorded metadata for one column of a provisioned table.
// Columns are written once per table; later provisioning runs must not
// duplicate them.
type Column struct {
	ID         string `json:"id"`
	TableID    string `json:"table_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Primary    bool   `json:"primary"`
	Required   bool   `json:"required"`
	Default    string `json:"default,omitempty"`
	References string `json:"references,omitempty"`
}

// logicalNamePattern is the accepted shape for logical table names as they
// appear in generated application code.
var logicalNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// maxLogicalNameLen bounds logical names so the app_{id}_ prefix still fits
// common identifier limits in the backing store.
const maxLogicalNameLen = 50

// ValidateLogicalName rejects names that cannot be provisioned. It must be
// called before any storage traffic for the name.
func ValidateLogicalName(name string) error {
	if name == "" {
		return fmt.Errorf("logical table name is required")
	}
	if len(name) > maxLogicalNameLen {
		return fmt.Errorf("logical table name %q exceeds %d characters", name, maxLogicalNameLen)
	}
	if !logicalNamePattern.MatchString(name) {
		return fmt.Errorf("logical table name %q must match %s", name, logicalNamePattern.String())
	}
	return nil
}

// ScopedName returns the physical table name for a logical name and app.
// The app-id prefix alone guarantees global uniqueness; no locking is
// involved.
func ScopedName(logical, appID string) string {
	return fmt.Sprintf("app_%s_%s", appID, logical)
}

// SentinelOwner is the placeholder owner written into template rows of
// user-scoped tables. RLS policies always keep rows with this owner visible
// so a leftover template row never disappears silently.
const SentinelOwner = "00000000-0000-0000-0000-000000000000"
