// Package memory provides an in-memory implementation of the storage
// interfaces, safe for concurrent use. It backs tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/schema"
	"github.com/appforge/platform/internal/app/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu      sync.RWMutex
	apps    map[string]app.App
	slugs   map[string]string // slug -> app id
	tables  map[string]schema.Table
	byName  map[string]string // appID+"/"+name -> table id
	columns map[string][]schema.Column
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		apps:    make(map[string]app.App),
		slugs:   make(map[string]string),
		tables:  make(map[string]schema.Table),
		byName:  make(map[string]string),
		columns: make(map[string][]schema.Column),
	}
}

// --- AppStore ---------------------------------------------------------------

func (s *Store) CreateApp(_ context.Context, a app.App) (app.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.slugs[a.Slug]; taken {
		return app.App{}, storage.ErrSlugTaken
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = app.StatusNeverDeployed
	}
	a.Metadata = copyMetadata(a.Metadata)

	s.apps[a.ID] = a
	s.slugs[a.Slug] = a.ID
	return cloneApp(a), nil
}

func (s *Store) UpdateApp(_ context.Context, a app.App) (app.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.apps[a.ID]
	if !ok {
		return app.App{}, storage.ErrAppNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	a.Metadata = copyMetadata(a.Metadata)

	if a.Slug != existing.Slug {
		if _, taken := s.slugs[a.Slug]; taken {
			return app.App{}, storage.ErrSlugTaken
		}
		delete(s.slugs, existing.Slug)
		s.slugs[a.Slug] = a.ID
	}

	s.apps[a.ID] = a
	return cloneApp(a), nil
}

func (s *Store) GetApp(_ context.Context, id string) (app.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok {
		return app.App{}, storage.ErrAppNotFound
	}
	return cloneApp(a), nil
}

func (s *Store) GetAppBySlug(_ context.Context, slug string) (app.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.slugs[slug]
	if !ok {
		return app.App{}, storage.ErrAppNotFound
	}
	return cloneApp(s.apps[id]), nil
}

func (s *Store) ListApps(_ context.Context) ([]app.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]app.App, 0, len(s.apps))
	for _, a := range s.apps {
		out = append(out, cloneApp(a))
	}
	return out, nil
}

// --- TableStore -------------------------------------------------------------

func (s *Store) UpsertTable(_ context.Context, tbl schema.Table) (schema.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tbl.AppID + "/" + tbl.Name
	if id, ok := s.byName[key]; ok {
		return s.tables[id], nil
	}

	if tbl.ID == "" {
		tbl.ID = uuid.NewString()
	}
	tbl.CreatedAt = time.Now().UTC()
	s.tables[tbl.ID] = tbl
	s.byName[key] = tbl.ID
	return tbl, nil
}

func (s *Store) GetTable(_ context.Context, appID, name string) (schema.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[appID+"/"+name]
	if !ok {
		return schema.Table{}, storage.ErrTableNotFound
	}
	return s.tables[id], nil
}

func (s *Store) ListTables(_ context.Context, appID string) ([]schema.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []schema.Table
	for _, tbl := range s.tables {
		if tbl.AppID == appID {
			out = append(out, tbl)
		}
	}
	return out, nil
}

func (s *Store) CreateColumns(_ context.Context, tableID string, cols []schema.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[tableID]; !ok {
		return storage.ErrTableNotFound
	}
	if len(s.columns[tableID]) > 0 {
		return nil
	}

	stored := make([]schema.Column, len(cols))
	copy(stored, cols)
	for i := range stored {
		if stored[i].ID == "" {
			stored[i].ID = uuid.NewString()
		}
		stored[i].TableID = tableID
	}
	s.columns[tableID] = stored
	return nil
}

func (s *Store) ListColumns(_ context.Context, tableID string) ([]schema.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cols := s.columns[tableID]
	out := make([]schema.Column, len(cols))
	copy(out, cols)
	return out, nil
}

func (s *Store) CountColumns(_ context.Context, tableID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.columns[tableID]), nil
}

// --- helpers ----------------------------------------------------------------

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneApp(a app.App) app.App {
	a.Metadata = copyMetadata(a.Metadata)
	return a
}
