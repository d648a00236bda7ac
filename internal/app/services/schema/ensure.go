package schema

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/appforge/platform/pkg/logger"
	supabase "github.com/appforge/platform/supabase/client"
)

// EnsureOutcome is the result of an ensure-table call.
type EnsureOutcome string

const (
	// TableExists means the probe found the table already present.
	TableExists EnsureOutcome = "exists"
	// TableCreated means the table was created during this call.
	TableCreated EnsureOutcome = "created"
	// TableFailed means the table could not be confirmed or created.
	TableFailed EnsureOutcome = "failed"
)

// TableEnsurer guarantees a physical table exists. The template row shapes
// the table on backends that infer schema on write; a backend with direct
// schema-definition privileges can implement this without the workaround.
type TableEnsurer interface {
	EnsureTable(ctx context.Context, name string, templateRow map[string]any) (EnsureOutcome, error)
}

// restEnsurer implements the insert-then-delete trick over the backing
// store's REST API: probe with a bounded read, insert a template row so
// schema-on-write creates the table, then delete the row by id.
type restEnsurer struct {
	client *supabase.Client
	log    *logger.Logger
}

// NewRESTEnsurer creates a TableEnsurer over the REST client.
func NewRESTEnsurer(client *supabase.Client, log *logger.Logger) TableEnsurer {
	return &restEnsurer{client: client, log: log.Component("table-ensurer")}
}

func (e *restEnsurer) EnsureTable(ctx context.Context, name string, templateRow map[string]any) (EnsureOutcome, error) {
	// Bounded existence probe. GETs ride the resilient client; a 200
	// means the table is already there.
	probe, err := e.client.From(name).Select("id").Limit(1).Execute(ctx)
	if err != nil {
		return TableFailed, fmt.Errorf("probe %s: %w", name, err)
	}
	if probe.OK() {
		return TableExists, nil
	}

	// Absent: insert the template row. The insert-delete pair is never
	// retried blindly; a duplicate template row is worse than a failed
	// attempt.
	insert, err := e.client.From(name).ExecuteInsert(ctx, []map[string]any{templateRow})
	if err != nil {
		return TableFailed, fmt.Errorf("create %s: %w", name, err)
	}
	if !insert.OK() && !alreadyExists(insert) {
		return TableFailed, fmt.Errorf("create %s: %w", name, insert.Error())
	}

	rowID, _ := templateRow["id"].(string)
	if rowID != "" {
		del, err := e.client.From(name).Eq("id", rowID).ExecuteDelete(ctx)
		if err != nil || !del.OK() {
			// The leftover sentinel row is tolerable; RLS keeps it
			// visible for manual cleanup.
			e.log.WithField("table", name).WithField("row_id", rowID).
				Warn("template row delete failed, sentinel row remains")
		}
	}
	return TableCreated, nil
}

// alreadyExists reports whether a creation response indicates a concurrent
// first writer won the race. That outcome is success, not failure.
func alreadyExists(resp *supabase.Response) bool {
	if resp.StatusCode == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(string(resp.Body)), "already exists")
}
