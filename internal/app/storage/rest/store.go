// Package rest implements the storage interfaces against the new backing
// store's REST API. It becomes authoritative as the storage migration
// advances; until then the hybrid store pairs it with the legacy database.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/schema"
	"github.com/appforge/platform/internal/app/storage"
	supabase "github.com/appforge/platform/supabase/client"
)

const (
	appsTable    = "platform_apps"
	tablesTable  = "platform_app_tables"
	columnsTable = "platform_app_table_columns"
)

// Store implements storage.Store over the Supabase REST API.
type Store struct {
	client *supabase.Client
}

var _ storage.Store = (*Store)(nil)

// New creates a REST-backed store.
func New(client *supabase.Client) *Store {
	return &Store{client: client}
}

// --- AppStore ---------------------------------------------------------------

type appRecord struct {
	ID            string         `json:"id"`
	TeamID        string         `json:"team_id,omitempty"`
	Slug          string         `json:"slug"`
	Name          string         `json:"name"`
	Status        string         `json:"status"`
	StagingURL    string         `json:"staging_url,omitempty"`
	ProductionURL string         `json:"production_url,omitempty"`
	DeployedAt    *time.Time     `json:"deployed_at,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func toRecord(a app.App) appRecord {
	return appRecord{
		ID:            a.ID,
		TeamID:        a.TeamID,
		Slug:          a.Slug,
		Name:          a.Name,
		Status:        string(a.Status),
		StagingURL:    a.StagingURL,
		ProductionURL: a.ProductionURL,
		DeployedAt:    a.DeployedAt,
		Metadata:      a.Metadata,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (r appRecord) toDomain() app.App {
	return app.App{
		ID:            r.ID,
		TeamID:        r.TeamID,
		Slug:          r.Slug,
		Name:          r.Name,
		Status:        app.DeploymentStatus(r.Status),
		StagingURL:    r.StagingURL,
		ProductionURL: r.ProductionURL,
		DeployedAt:    r.DeployedAt,
		Metadata:      r.Metadata,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *Store) CreateApp(ctx context.Context, a app.App) (app.App, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = app.StatusNeverDeployed
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	resp, err := s.client.From(appsTable).ExecuteInsert(ctx, []appRecord{toRecord(a)})
	if err != nil {
		return app.App{}, fmt.Errorf("insert app: %w", err)
	}
	if resp.StatusCode == http.StatusConflict {
		return app.App{}, storage.ErrSlugTaken
	}
	if err := resp.Error(); err != nil {
		return app.App{}, err
	}
	return a, nil
}

func (s *Store) UpdateApp(ctx context.Context, a app.App) (app.App, error) {
	a.UpdatedAt = time.Now().UTC()

	resp, err := s.client.From(appsTable).Eq("id", a.ID).ExecuteUpdate(ctx, toRecord(a))
	if err != nil {
		return app.App{}, fmt.Errorf("update app: %w", err)
	}
	if err := resp.Error(); err != nil {
		return app.App{}, err
	}
	if !resp.Get("0.id").Exists() {
		return app.App{}, storage.ErrAppNotFound
	}
	return a, nil
}

func (s *Store) getAppBy(ctx context.Context, column, value string) (app.App, error) {
	resp, err := s.client.From(appsTable).Select("*").Eq(column, value).Limit(1).Execute(ctx)
	if err != nil {
		return app.App{}, fmt.Errorf("get app: %w", err)
	}
	if err := resp.Error(); err != nil {
		return app.App{}, err
	}

	var records []appRecord
	if err := resp.JSON(&records); err != nil {
		return app.App{}, fmt.Errorf("decode app: %w", err)
	}
	if len(records) == 0 {
		return app.App{}, storage.ErrAppNotFound
	}
	return records[0].toDomain(), nil
}

func (s *Store) GetApp(ctx context.Context, id string) (app.App, error) {
	return s.getAppBy(ctx, "id", id)
}

func (s *Store) GetAppBySlug(ctx context.Context, slug string) (app.App, error) {
	return s.getAppBy(ctx, "slug", slug)
}

func (s *Store) ListApps(ctx context.Context) ([]app.App, error) {
	resp, err := s.client.From(appsTable).Select("*").Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var records []appRecord
	if err := resp.JSON(&records); err != nil {
		return nil, fmt.Errorf("decode apps: %w", err)
	}
	out := make([]app.App, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// --- TableStore -------------------------------------------------------------

type tableRecord struct {
	ID          string    `json:"id"`
	AppID       string    `json:"app_id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Scope       string    `json:"scope"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r tableRecord) toDomain() schema.Table {
	return schema.Table{
		ID:          r.ID,
		AppID:       r.AppID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Scope:       schema.ScopeType(r.Scope),
		CreatedAt:   r.CreatedAt,
	}
}

func (s *Store) UpsertTable(ctx context.Context, tbl schema.Table) (schema.Table, error) {
	existing, err := s.GetTable(ctx, tbl.AppID, tbl.Name)
	if err == nil {
		return existing, nil
	}

	if tbl.ID == "" {
		tbl.ID = uuid.NewString()
	}
	tbl.CreatedAt = time.Now().UTC()

	record := tableRecord{
		ID:          tbl.ID,
		AppID:       tbl.AppID,
		Name:        tbl.Name,
		DisplayName: tbl.DisplayName,
		Scope:       string(tbl.Scope),
		CreatedAt:   tbl.CreatedAt,
	}
	resp, err := s.client.From(tablesTable).ExecuteInsert(ctx, []tableRecord{record})
	if err != nil {
		return schema.Table{}, fmt.Errorf("insert table metadata: %w", err)
	}
	if resp.StatusCode == http.StatusConflict {
		// A concurrent first writer won; return its record.
		return s.GetTable(ctx, tbl.AppID, tbl.Name)
	}
	if err := resp.Error(); err != nil {
		return schema.Table{}, err
	}
	return tbl, nil
}

func (s *Store) GetTable(ctx context.Context, appID, name string) (schema.Table, error) {
	resp, err := s.client.From(tablesTable).Select("*").Eq("app_id", appID).Eq("name", name).Limit(1).Execute(ctx)
	if err != nil {
		return schema.Table{}, fmt.Errorf("get table metadata: %w", err)
	}
	if err := resp.Error(); err != nil {
		return schema.Table{}, err
	}

	var records []tableRecord
	if err := resp.JSON(&records); err != nil {
		return schema.Table{}, fmt.Errorf("decode table metadata: %w", err)
	}
	if len(records) == 0 {
		return schema.Table{}, storage.ErrTableNotFound
	}
	return records[0].toDomain(), nil
}

func (s *Store) ListTables(ctx context.Context, appID string) ([]schema.Table, error) {
	resp, err := s.client.From(tablesTable).Select("*").Eq("app_id", appID).Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list table metadata: %w", err)
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var records []tableRecord
	if err := resp.JSON(&records); err != nil {
		return nil, fmt.Errorf("decode table metadata: %w", err)
	}
	out := make([]schema.Table, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type columnRecord struct {
	ID         string `json:"id"`
	TableID    string `json:"table_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsPrimary  bool   `json:"is_primary"`
	IsRequired bool   `json:"is_required"`
	Default    string `json:"default_value,omitempty"`
	References string `json:"references_table,omitempty"`
	Position   int    `json:"position"`
}

func (s *Store) CreateColumns(ctx context.Context, tableID string, cols []schema.Column) error {
	count, err := s.CountColumns(ctx, tableID)
	if err != nil {
		return err
	}
	if count > 0 {
		// First write wins; column metadata is never duplicated.
		return nil
	}

	records := make([]columnRecord, 0, len(cols))
	for i, col := range cols {
		id := col.ID
		if id == "" {
			id = uuid.NewString()
		}
		records = append(records, columnRecord{
			ID:         id,
			TableID:    tableID,
			Name:       col.Name,
			Type:       col.Type,
			IsPrimary:  col.Primary,
			IsRequired: col.Required,
			Default:    col.Default,
			References: col.References,
			Position:   i,
		})
	}

	resp, err := s.client.From(columnsTable).ExecuteInsert(ctx, records)
	if err != nil {
		return fmt.Errorf("insert column metadata: %w", err)
	}
	return resp.Error()
}

func (s *Store) ListColumns(ctx context.Context, tableID string) ([]schema.Column, error) {
	resp, err := s.client.From(columnsTable).Select("*").Eq("table_id", tableID).Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list column metadata: %w", err)
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var records []columnRecord
	if err := resp.JSON(&records); err != nil {
		return nil, fmt.Errorf("decode column metadata: %w", err)
	}
	out := make([]schema.Column, 0, len(records))
	for _, r := range records {
		out = append(out, schema.Column{
			ID:         r.ID,
			TableID:    r.TableID,
			Name:       r.Name,
			Type:       r.Type,
			Primary:    r.IsPrimary,
			Required:   r.IsRequired,
			Default:    r.Default,
			References: r.References,
		})
	}
	return out, nil
}

func (s *Store) CountColumns(ctx context.Context, tableID string) (int, error) {
	cols, err := s.ListColumns(ctx, tableID)
	if err != nil {
		return 0, err
	}
	return len(cols), nil
}
