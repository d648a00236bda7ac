// Package postgres implements the storage interfaces against the legacy
// PostgreSQL database. This remains the authoritative store until the
// storage migration reaches the complete phase.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/schema"
	"github.com/appforge/platform/internal/app/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database, applies pending migrations, and returns a
// ready store.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// appRow is the sqlx row shape for platform_apps.
type appRow struct {
	ID            string         `db:"id"`
	TeamID        sql.NullString `db:"team_id"`
	Slug          string         `db:"slug"`
	Name          string         `db:"name"`
	Status        string         `db:"status"`
	StagingURL    sql.NullString `db:"staging_url"`
	ProductionURL sql.NullString `db:"production_url"`
	DeployedAt    sql.NullTime   `db:"deployed_at"`
	Metadata      []byte         `db:"metadata"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r appRow) toDomain() (app.App, error) {
	a := app.App{
		ID:            r.ID,
		TeamID:        r.TeamID.String,
		Slug:          r.Slug,
		Name:          r.Name,
		Status:        app.DeploymentStatus(r.Status),
		StagingURL:    r.StagingURL.String,
		ProductionURL: r.ProductionURL.String,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.DeployedAt.Valid {
		t := r.DeployedAt.Time
		a.DeployedAt = &t
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &a.Metadata); err != nil {
			return app.App{}, err
		}
	}
	return a, nil
}

// --- AppStore ---------------------------------------------------------------

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

	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return app.App{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO platform_apps
			(id, team_id, slug, name, status, staging_url, production_url, deployed_at, metadata, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)
	`, a.ID, a.TeamID, a.Slug, a.Name, a.Status, a.StagingURL, a.ProductionURL, a.DeployedAt, metadataJSON, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return app.App{}, storage.ErrSlugTaken
		}
		return app.App{}, err
	}
	return a, nil
}

func (s *Store) UpdateApp(ctx context.Context, a app.App) (app.App, error) {
	a.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return app.App{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE platform_apps
		SET team_id = NULLIF($2, ''), slug = $3, name = $4, status = $5,
		    staging_url = NULLIF($6, ''), production_url = NULLIF($7, ''),
		    deployed_at = $8, metadata = $9, updated_at = $10
		WHERE id = $1
	`, a.ID, a.TeamID, a.Slug, a.Name, a.Status, a.StagingURL, a.ProductionURL, a.DeployedAt, metadataJSON, a.UpdatedAt)
	if err != nil {
		return app.App{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return app.App{}, storage.ErrAppNotFound
	}
	return a, nil
}

func (s *Store) GetApp(ctx context.Context, id string) (app.App, error) {
	var row appRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, team_id, slug, name, status, staging_url, production_url, deployed_at, metadata, created_at, updated_at
		FROM platform_apps WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return app.App{}, storage.ErrAppNotFound
	}
	if err != nil {
		return app.App{}, err
	}
	return row.toDomain()
}

func (s *Store) GetAppBySlug(ctx context.Context, slug string) (app.App, error) {
	var row appRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, team_id, slug, name, status, staging_url, production_url, deployed_at, metadata, created_at, updated_at
		FROM platform_apps WHERE slug = $1
	`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return app.App{}, storage.ErrAppNotFound
	}
	if err != nil {
		return app.App{}, err
	}
	return row.toDomain()
}

func (s *Store) ListApps(ctx context.Context) ([]app.App, error) {
	var rows []appRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, team_id, slug, name, status, staging_url, production_url, deployed_at, metadata, created_at, updated_at
		FROM platform_apps ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}

	out := make([]app.App, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// --- TableStore -------------------------------------------------------------

type tableRow struct {
	ID          string    `db:"id"`
	AppID       string    `db:"app_id"`
	Name        string    `db:"name"`
	DisplayName string    `db:"display_name"`
	Scope       string    `db:"scope"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r tableRow) toDomain() schema.Table {
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
	if tbl.ID == "" {
		tbl.ID = uuid.NewString()
	}
	tbl.CreatedAt = time.Now().UTC()

	// ON CONFLICT DO NOTHING keeps the first writer's record; the follow-up
	// select returns whichever row won.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO platform_app_tables (id, app_id, name, display_name, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (app_id, name) DO NOTHING
	`, tbl.ID, tbl.AppID, tbl.Name, tbl.DisplayName, tbl.Scope, tbl.CreatedAt)
	if err != nil {
		return schema.Table{}, err
	}
	return s.GetTable(ctx, tbl.AppID, tbl.Name)
}

func (s *Store) GetTable(ctx context.Context, appID, name string) (schema.Table, error) {
	var row tableRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, app_id, name, display_name, scope, created_at
		FROM platform_app_tables WHERE app_id = $1 AND name = $2
	`, appID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Table{}, storage.ErrTableNotFound
	}
	if err != nil {
		return schema.Table{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListTables(ctx context.Context, appID string) ([]schema.Table, error) {
	var rows []tableRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, app_id, name, display_name, scope, created_at
		FROM platform_app_tables WHERE app_id = $1 ORDER BY name
	`, appID)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Table, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type columnRow struct {
	ID         string         `db:"id"`
	TableID    string         `db:"table_id"`
	Name       string         `db:"name"`
	Type       string         `db:"type"`
	IsPrimary  bool           `db:"is_primary"`
	IsRequired bool           `db:"is_required"`
	DefaultVal sql.NullString `db:"default_value"`
	References sql.NullString `db:"references_table"`
	Position   int            `db:"position"`
}

func (s *Store) CreateColumns(ctx context.Context, tableID string, cols []schema.Column) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM platform_app_table_columns WHERE table_id = $1`, tableID); err != nil {
		return err
	}
	if count > 0 {
		// First write wins; column metadata is never duplicated.
		return nil
	}

	for i, col := range cols {
		id := col.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO platform_app_table_columns
				(id, table_id, name, type, is_primary, is_required, default_value, references_table, position)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		`, id, tableID, col.Name, col.Type, col.Primary, col.Required, col.Default, col.References, i)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListColumns(ctx context.Context, tableID string) ([]schema.Column, error) {
	var rows []columnRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, table_id, name, type, is_primary, is_required, default_value, references_table, position
		FROM platform_app_table_columns WHERE table_id = $1 ORDER BY position
	`, tableID)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Column, 0, len(rows))
	for _, r := range rows {
		out = append(out, schema.Column{
			ID:         r.ID,
			TableID:    r.TableID,
			Name:       r.Name,
			Type:       r.Type,
			Primary:    r.IsPrimary,
			Required:   r.IsRequired,
			Default:    r.DefaultVal.String,
			References: r.References.String,
		})
	}
	return out, nil
}

func (s *Store) CountColumns(ctx context.Context, tableID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM platform_app_table_columns WHERE table_id = $1`, tableID)
	return count, err
}

// isUniqueViolation matches the unique_violation SQLSTATE from the driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
