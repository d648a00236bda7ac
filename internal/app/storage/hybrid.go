package storage

import (
	"context"

	"github.com/appforge/platform/internal/app/domain/app"
	domainmigration "github.com/appforge/platform/internal/app/domain/migration"
	"github.com/appforge/platform/internal/app/domain/schema"
	"github.com/appforge/platform/internal/app/services/migration"
	"github.com/appforge/platform/pkg/logger"
)

// Hybrid routes reads and writes between the legacy store and the new
// REST-backed store according to the migration controller's decision.
// Writes always land in the legacy store; the new store is written as
// soon as the phase enables writes, and read from once the phase enables
// reads. Legacy remains the source of truth until cutover completes.
type Hybrid struct {
	legacy     Store
	next       Store
	controller *migration.Controller
	log        *logger.Logger
}

var _ Store = (*Hybrid)(nil)

// NewHybrid composes the two stores under the given controller.
func NewHybrid(legacy, next Store, controller *migration.Controller, log *logger.Logger) *Hybrid {
	return &Hybrid{legacy: legacy, next: next, controller: controller, log: log.Component("hybrid-store")}
}

func (h *Hybrid) decide(appID, teamID string) domainmigration.Decision {
	return h.controller.Resolve(appID, teamID)
}

// shadowWrite mirrors a write into the new store. Shadow failures are
// logged, never surfaced: the legacy write already succeeded and remains
// authoritative.
func (h *Hybrid) shadowWrite(op string, err error) {
	if err != nil {
		h.log.WithError(err).WithField("op", op).Warn("shadow write to new store failed")
	}
}

// --- AppStore ---------------------------------------------------------------

func (h *Hybrid) CreateApp(ctx context.Context, a app.App) (app.App, error) {
	created, err := h.legacy.CreateApp(ctx, a)
	if err != nil {
		return app.App{}, err
	}
	if h.decide(created.ID, created.TeamID).ShouldWrite {
		_, err := h.next.CreateApp(ctx, created)
		h.shadowWrite("create-app", err)
	}
	return created, nil
}

func (h *Hybrid) UpdateApp(ctx context.Context, a app.App) (app.App, error) {
	updated, err := h.legacy.UpdateApp(ctx, a)
	if err != nil {
		return app.App{}, err
	}
	if h.decide(updated.ID, updated.TeamID).ShouldWrite {
		if _, err := h.next.UpdateApp(ctx, updated); err == ErrAppNotFound {
			// The row may predate the write phase; backfill it.
			_, err = h.next.CreateApp(ctx, updated)
			h.shadowWrite("backfill-app", err)
		} else {
			h.shadowWrite("update-app", err)
		}
	}
	return updated, nil
}

func (h *Hybrid) GetApp(ctx context.Context, id string) (app.App, error) {
	if h.decide(id, "").ShouldRead {
		a, err := h.next.GetApp(ctx, id)
		if err == nil {
			return a, nil
		}
		if err != ErrAppNotFound {
			h.log.WithError(err).WithField("app_id", id).Warn("new store read failed, falling back to legacy")
		}
	}
	return h.legacy.GetApp(ctx, id)
}

func (h *Hybrid) GetAppBySlug(ctx context.Context, slug string) (app.App, error) {
	// Slug lookups cannot resolve a per-app phase before the read; use
	// the global decision.
	if h.decide("", "").ShouldRead {
		a, err := h.next.GetAppBySlug(ctx, slug)
		if err == nil {
			return a, nil
		}
		if err != ErrAppNotFound {
			h.log.WithError(err).WithField("slug", slug).Warn("new store read failed, falling back to legacy")
		}
	}
	return h.legacy.GetAppBySlug(ctx, slug)
}

func (h *Hybrid) ListApps(ctx context.Context) ([]app.App, error) {
	if h.decide("", "").ShouldRead {
		apps, err := h.next.ListApps(ctx)
		if err == nil {
			return apps, nil
		}
		h.log.WithError(err).Warn("new store list failed, falling back to legacy")
	}
	return h.legacy.ListApps(ctx)
}

// --- TableStore -------------------------------------------------------------

func (h *Hybrid) UpsertTable(ctx context.Context, tbl schema.Table) (schema.Table, error) {
	upserted, err := h.legacy.UpsertTable(ctx, tbl)
	if err != nil {
		return schema.Table{}, err
	}
	if h.decide(tbl.AppID, "").ShouldWrite {
		_, err := h.next.UpsertTable(ctx, upserted)
		h.shadowWrite("upsert-table", err)
	}
	return upserted, nil
}

func (h *Hybrid) GetTable(ctx context.Context, appID, name string) (schema.Table, error) {
	if h.decide(appID, "").ShouldRead {
		tbl, err := h.next.GetTable(ctx, appID, name)
		if err == nil {
			return tbl, nil
		}
		if err != ErrTableNotFound {
			h.log.WithError(err).WithField("app_id", appID).Warn("new store read failed, falling back to legacy")
		}
	}
	return h.legacy.GetTable(ctx, appID, name)
}

func (h *Hybrid) ListTables(ctx context.Context, appID string) ([]schema.Table, error) {
	if h.decide(appID, "").ShouldRead {
		tables, err := h.next.ListTables(ctx, appID)
		if err == nil {
			return tables, nil
		}
		h.log.WithError(err).WithField("app_id", appID).Warn("new store list failed, falling back to legacy")
	}
	return h.legacy.ListTables(ctx, appID)
}

func (h *Hybrid) CreateColumns(ctx context.Context, tableID string, cols []schema.Column) error {
	if err := h.legacy.CreateColumns(ctx, tableID, cols); err != nil {
		return err
	}
	if h.decide("", "").ShouldWrite {
		h.shadowWrite("create-columns", h.next.CreateColumns(ctx, tableID, cols))
	}
	return nil
}

func (h *Hybrid) ListColumns(ctx context.Context, tableID string) ([]schema.Column, error) {
	if h.decide("", "").ShouldRead {
		cols, err := h.next.ListColumns(ctx, tableID)
		if err == nil && len(cols) > 0 {
			return cols, nil
		}
		if err != nil {
			h.log.WithError(err).WithField("table_id", tableID).Warn("new store list failed, falling back to legacy")
		}
	}
	return h.legacy.ListColumns(ctx, tableID)
}

func (h *Hybrid) CountColumns(ctx context.Context, tableID string) (int, error) {
	cols, err := h.ListColumns(ctx, tableID)
	if err != nil {
		return 0, err
	}
	return len(cols), nil
}
