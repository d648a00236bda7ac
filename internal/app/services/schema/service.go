// Package schema provisions per-tenant tables in the shared backing
// store: detection from generated source, schema-on-write creation,
// row-level security, and metadata bookkeeping.
package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/schema"
	"github.com/appforge/platform/internal/app/metrics"
	"github.com/appforge/platform/internal/app/storage"
	"github.com/appforge/platform/pkg/logger"
)

// SQLRunner executes raw SQL against the backing store, used for RLS
// statements.
type SQLRunner interface {
	ExecSQL(ctx context.Context, sql string) error
}

// Provisioner drives table provisioning for one app at a time. It never
// propagates an error outward; every failure is folded into the result.
type Provisioner struct {
	detectors []Detector
	ensurer   TableEnsurer
	sql       SQLRunner
	store     storage.Store
	pending   PendingSink
	log       *logger.Logger
}

// NewProvisioner assembles a provisioner. pending may be nil when no
// scratch mirror is configured.
func NewProvisioner(ensurer TableEnsurer, sql SQLRunner, store storage.Store, pending PendingSink, log *logger.Logger) *Provisioner {
	return &Provisioner{
		detectors: DefaultDetectors(),
		ensurer:   ensurer,
		sql:       sql,
		store:     store,
		pending:   pending,
		log:       log.Component("schema-provisioner"),
	}
}

// TableResult is the per-table outcome of a provisioning run.
type TableResult struct {
	Name       string        `json:"name"`
	Physical   string        `json:"physical"`
	Outcome    EnsureOutcome `json:"outcome"`
	RLSApplied bool          `json:"rls_applied"`
	Error      string        `json:"error,omitempty"`
}

// Result is the structured outcome of one provisioning run. Partial
// progress is observable; re-invocation completes the remainder.
type Result struct {
	AppID  string        `json:"app_id"`
	Tables []TableResult `json:"tables"`
}

// Failed returns the names of tables that could not be provisioned.
func (r Result) Failed() []string {
	var out []string
	for _, t := range r.Tables {
		if t.Outcome == TableFailed {
			out = append(out, t.Name)
		}
	}
	return out
}

// Provision detects the tables an app's generated source expects and
// makes each one exist with policies and recorded metadata.
func (p *Provisioner) Provision(ctx context.Context, a app.App, source string) Result {
	result := Result{AppID: a.ID}

	detections := DetectTables(p.detectors, source)
	p.log.WithField("app_id", a.ID).WithField("tables", len(detections)).Info("provisioning detected tables")

	for _, det := range detections {
		result.Tables = append(result.Tables, p.provisionOne(ctx, &a, det))
	}
	return result
}

func (p *Provisioner) provisionOne(ctx context.Context, a *app.App, det Detection) TableResult {
	res := TableResult{
		Name:     det.Name,
		Physical: schema.ScopedName(det.Name, a.ID),
	}
	log := &logger.Logger{Entry: p.log.WithField("app_id", a.ID).WithField("table", res.Physical)}

	outcome, err := p.ensurer.EnsureTable(ctx, res.Physical, p.templateRow(det))
	res.Outcome = outcome
	metrics.RecordTableProvisioned(string(outcome))
	if outcome == TableFailed {
		res.Error = err.Error()
		log.WithError(err).Error("table creation failed")
		return res
	}

	if outcome == TableCreated {
		res.RLSApplied = p.applyRLS(ctx, a, det, res.Physical, log)
	} else {
		res.RLSApplied = true
	}

	if err := p.recordMetadata(ctx, a.ID, det); err != nil {
		// The physical table is live; metadata can be recorded on the
		// next run.
		log.WithError(err).Warn("table metadata not recorded")
	}
	return res
}

// applyRLS runs the canned policy script. On failure the policy is
// deferred, never dropped: one PendingRLS entry goes into App metadata
// and is mirrored to the scratch sink for the replay sweeper.
func (p *Provisioner) applyRLS(ctx context.Context, a *app.App, det Detection, physical string, log *logger.Logger) bool {
	sql := RLSScript(physical, det.Scope)
	err := p.sql.ExecSQL(ctx, sql)
	if err == nil {
		return true
	}
	log.WithError(err).Warn("rls apply failed, deferring policy")

	entry := app.PendingRLS{Table: physical, SQL: sql, CreatedAt: time.Now().UTC()}
	a.AppendPendingRLS(entry)
	if _, err := p.store.UpdateApp(ctx, *a); err != nil {
		log.WithError(err).Error("pending rls entry not persisted to app metadata")
	}
	if p.pending != nil {
		if err := p.pending.Mirror(ctx, entry); err != nil {
			log.WithError(err).Warn("pending rls entry not mirrored to scratch sink")
		}
	}
	return false
}

// recordMetadata upserts the table record and writes the column list on
// first sight only.
func (p *Provisioner) recordMetadata(ctx context.Context, appID string, det Detection) error {
	tbl, err := p.store.UpsertTable(ctx, schema.Table{
		AppID:       appID,
		Name:        det.Name,
		DisplayName: displayName(det.Name),
		Scope:       det.Scope,
	})
	if err != nil {
		return fmt.Errorf("upsert table metadata: %w", err)
	}

	count, err := p.store.CountColumns(ctx, tbl.ID)
	if err != nil {
		return fmt.Errorf("count columns: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := p.store.CreateColumns(ctx, tbl.ID, p.synthesizeColumns(det)); err != nil {
		return fmt.Errorf("create columns: %w", err)
	}
	return nil
}

// templateRow builds the synthetic record whose shape makes the backing
// store infer the table's columns. Placeholder values follow declared
// types: text gets a literal placeholder, boolean false, jsonb an empty
// object, numeric zero.
func (p *Provisioner) templateRow(det Detection) map[string]any {
	now := time.Now().UTC().Format(time.RFC3339)
	row := map[string]any{
		"id":         uuid.NewString(),
		"created_at": now,
		"updated_at": now,
	}
	if det.Scope == schema.UserScoped {
		row[OwnerColumn] = schema.SentinelOwner
	}
	for _, col := range det.Columns {
		row[col.Name] = placeholderFor(col.Type)
	}
	return row
}

func placeholderFor(columnType string) any {
	switch strings.ToLower(columnType) {
	case "boolean", "bool":
		return false
	case "jsonb", "json":
		return map[string]any{}
	case "numeric", "integer", "int", "bigint", "real", "double precision":
		return 0
	default:
		return "placeholder"
	}
}

// synthesizeColumns produces the recorded column list for a table whose
// metadata has no columns yet: primary id, owner reference for
// user-scoped tables, the detected columns, then timestamps.
func (p *Provisioner) synthesizeColumns(det Detection) []schema.Column {
	cols := []schema.Column{
		{Name: "id", Type: "uuid", Primary: true, Required: true},
	}
	if det.Scope == schema.UserScoped {
		cols = append(cols, schema.Column{Name: OwnerColumn, Type: "uuid", Required: true, References: "users"})
	}
	cols = append(cols, det.Columns...)
	cols = append(cols,
		schema.Column{Name: "created_at", Type: "timestamptz", Required: true, Default: "now()"},
		schema.Column{Name: "updated_at", Type: "timestamptz", Required: true, Default: "now()"},
	)
	return cols
}

func displayName(logical string) string {
	words := strings.Split(strings.ReplaceAll(logical, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
