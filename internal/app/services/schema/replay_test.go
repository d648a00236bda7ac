package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/storage/memory"
	"github.com/appforge/platform/pkg/logger"
)

func TestSweepAppliesAndClearsEntries(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	a, err := store.CreateApp(ctx, app.App{Slug: "pending-app", Name: "Pending"})
	if err != nil {
		t.Fatalf("CreateApp: %v", err)
	}
	a.AppendPendingRLS(app.PendingRLS{Table: "app_1_notes", SQL: "ALTER TABLE app_1_notes ...", CreatedAt: time.Now()})
	a.AppendPendingRLS(app.PendingRLS{Table: "app_1_todos", SQL: "ALTER TABLE app_1_todos ...", CreatedAt: time.Now()})
	if _, err := store.UpdateApp(ctx, a); err != nil {
		t.Fatalf("UpdateApp: %v", err)
	}

	sql := &fakeSQL{}
	sweeper := NewReplaySweeper(store, sql, logger.NewNop())
	if applied := sweeper.Sweep(ctx); applied != 2 {
		t.Fatalf("applied = %d, want 2", applied)
	}

	stored, _ := store.GetApp(ctx, a.ID)
	if entries := stored.PendingRLSEntries(); len(entries) != 0 {
		t.Fatalf("entries left after successful sweep: %v", entries)
	}
	if len(sql.scripts) != 2 {
		t.Fatalf("executed %d scripts, want 2", len(sql.scripts))
	}
}

func TestSweepKeepsFailingEntries(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	a, err := store.CreateApp(ctx, app.App{Slug: "stuck-app", Name: "Stuck"})
	if err != nil {
		t.Fatalf("CreateApp: %v", err)
	}
	a.AppendPendingRLS(app.PendingRLS{Table: "app_2_notes", SQL: "ALTER ...", CreatedAt: time.Now()})
	if _, err := store.UpdateApp(ctx, a); err != nil {
		t.Fatalf("UpdateApp: %v", err)
	}

	sql := &fakeSQL{err: errors.New("still down")}
	sweeper := NewReplaySweeper(store, sql, logger.NewNop())
	if applied := sweeper.Sweep(ctx); applied != 0 {
		t.Fatalf("applied = %d, want 0", applied)
	}

	stored, _ := store.GetApp(ctx, a.ID)
	if entries := stored.PendingRLSEntries(); len(entries) != 1 {
		t.Fatalf("failing entry dropped: %v", entries)
	}
}
