// Package storage defines the persistence interfaces for platform records
// and the phase-gated composition of the legacy and new backing stores.
package storage

import (
	"context"
	"errors"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/schema"
)

// Sentinel errors shared by every store implementation.
var (
	ErrAppNotFound   = errors.New("app not found")
	ErrTableNotFound = errors.New("app table not found")
	ErrSlugTaken     = errors.New("slug already in use")
)

// AppStore persists application records.
type AppStore interface {
	CreateApp(ctx context.Context, a app.App) (app.App, error)
	UpdateApp(ctx context.Context, a app.App) (app.App, error)
	GetApp(ctx context.Context, id string) (app.App, error)
	GetAppBySlug(ctx context.Context, slug string) (app.App, error)
	ListApps(ctx context.Context) ([]app.App, error)
}

// TableStore persists per-tenant table and column metadata.
type TableStore interface {
	// UpsertTable records a logical table, idempotent on (app, name):
	// repeating the call returns the existing record unchanged.
	UpsertTable(ctx context.Context, tbl schema.Table) (schema.Table, error)
	GetTable(ctx context.Context, appID, name string) (schema.Table, error)
	ListTables(ctx context.Context, appID string) ([]schema.Table, error)

	// CreateColumns records column metadata for a table. First write wins:
	// if the table already has columns recorded the call is a no-op.
	CreateColumns(ctx context.Context, tableID string, cols []schema.Column) error
	ListColumns(ctx context.Context, tableID string) ([]schema.Column, error)
	CountColumns(ctx context.Context, tableID string) (int, error)
}

// Store is the full persistence surface the application wires together.
type Store interface {
	AppStore
	TableStore
}
