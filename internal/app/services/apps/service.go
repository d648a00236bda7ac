// Package apps manages the platform's application records.
package apps

import (
	"context"
	"fmt"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/storage"
	"github.com/appforge/platform/pkg/logger"
)

// Service exposes App record CRUD over a store.
type Service struct {
	store storage.AppStore
	log   *logger.Logger
}

// New creates the apps service.
func New(store storage.AppStore, log *logger.Logger) *Service {
	return &Service{store: store, log: log.Component("apps")}
}

// Create registers a new app. The slug must be routable and unused.
func (s *Service) Create(ctx context.Context, teamID, slug, name string) (app.App, error) {
	if err := app.ValidateSlug(slug); err != nil {
		return app.App{}, err
	}
	if name == "" {
		return app.App{}, fmt.Errorf("name is required")
	}

	created, err := s.store.CreateApp(ctx, app.App{
		TeamID: teamID,
		Slug:   slug,
		Name:   name,
		Status: app.StatusNeverDeployed,
	})
	if err != nil {
		return app.App{}, err
	}
	s.log.WithField("app_id", created.ID).WithField("slug", slug).Info("app created")
	return created, nil
}

// Get fetches an app by id.
func (s *Service) Get(ctx context.Context, id string) (app.App, error) {
	return s.store.GetApp(ctx, id)
}

// GetBySlug fetches an app by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (app.App, error) {
	return s.store.GetAppBySlug(ctx, slug)
}

// List returns all apps.
func (s *Service) List(ctx context.Context) ([]app.App, error) {
	return s.store.ListApps(ctx)
}
