// Package app wires the platform's services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/appforge/platform/internal/app/services/apps"
	assetsvc "github.com/appforge/platform/internal/app/services/assets"
	bundlesvc "github.com/appforge/platform/internal/app/services/bundle"
	deploysvc "github.com/appforge/platform/internal/app/services/deploy"
	migrationsvc "github.com/appforge/platform/internal/app/services/migration"
	schemasvc "github.com/appforge/platform/internal/app/services/schema"
	"github.com/appforge/platform/internal/app/storage"
	"github.com/appforge/platform/internal/app/storage/memory"
	"github.com/appforge/platform/internal/app/storage/postgres"
	"github.com/appforge/platform/internal/app/storage/rest"
	"github.com/appforge/platform/internal/app/system"
	"github.com/appforge/platform/internal/config"
	"github.com/appforge/platform/internal/edge"
	"github.com/appforge/platform/pkg/logger"
	supabase "github.com/appforge/platform/supabase/client"
)

// Overrides replace constructed dependencies, mainly for tests and for
// environments without the full backing services. Nil fields fall back to
// what the configuration provides.
type Overrides struct {
	Store    storage.Store
	Builder  deploysvc.Builder
	Edge     edge.API
	Supabase *supabase.Client
	Redis    *redis.Client
}

// Application ties the platform services together.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Apps        *apps.Service
	Deploy      *deploysvc.Service
	Provisioner *schemasvc.Provisioner
	Migration   *migrationsvc.Controller
	Store       storage.Store
}

// New builds a fully initialised application from configuration.
func New(cfg *config.Config, ov Overrides, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	manager := system.NewManager()

	controller := migrationsvc.NewController(cfg.Migration, log)

	store, supaClient, err := buildStores(cfg, ov, controller, log)
	if err != nil {
		return nil, err
	}

	edgeAPI := ov.Edge
	if edgeAPI == nil {
		client, err := edge.NewClient(edge.Config{
			BaseURL:           cfg.Edge.BaseURL,
			AuthToken:         cfg.Edge.AuthToken,
			RequestsPerSecond: cfg.Edge.RequestsPerSecond,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("edge client: %w", err)
		}
		edgeAPI = client
	}

	builder := ov.Builder
	if builder == nil {
		if cfg.Deploy.BuilderURL == "" {
			return nil, fmt.Errorf("builder URL is required when no builder is injected")
		}
		builder = deploysvc.NewHTTPBuilder(cfg.Deploy.BuilderURL, nil)
	}

	var uploader deploysvc.AssetUploader
	if supaClient != nil {
		uploader = assetsvc.NewUploader(supaClient, log, assetsvc.WithBucket(cfg.Supabase.AssetBucket))
	}
	generator := bundlesvc.NewGenerator(log)

	deployService := deploysvc.NewService(
		deploysvc.Credentials{
			EdgeToken:     cfg.Edge.AuthToken,
			StorageURL:    cfg.Supabase.URL,
			StorageKey:    cfg.Supabase.ServiceKey,
			ServiceSecret: cfg.Deploy.ServiceSecret,
		},
		deploysvc.Config{
			AppsDomain:   cfg.Deploy.AppsDomain,
			WorkerDomain: cfg.Deploy.WorkerDomain,
			BackendName:  cfg.Deploy.BackendName,
			BackendURL:   cfg.Deploy.BackendURL,
		},
		builder, uploader, generator, edgeAPI, store, log,
	)

	var provisioner *schemasvc.Provisioner
	if supaClient != nil {
		var sink schemasvc.PendingSink
		redisClient := ov.Redis
		if redisClient == nil && cfg.Redis.Addr != "" {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
		}
		if redisClient != nil {
			sink = schemasvc.NewRedisPendingSink(redisClient)
		} else {
			log.Warn("no redis configured; pending RLS tracked in app metadata only")
		}

		ensurer := schemasvc.NewRESTEnsurer(supaClient, log)
		provisioner = schemasvc.NewProvisioner(ensurer, supaClient, store, sink, log)

		sweeper := schemasvc.NewReplaySweeper(store, supaClient, log)
		if err := manager.Register(&sweeperService{sweeper: sweeper}); err != nil {
			return nil, fmt.Errorf("register rls sweeper: %w", err)
		}
	} else {
		log.Warn("no backing store configured; schema provisioning disabled")
	}

	return &Application{
		manager:     manager,
		log:         log,
		Apps:        apps.New(store, log),
		Deploy:      deployService,
		Provisioner: provisioner,
		Migration:   controller,
		Store:       store,
	}, nil
}

// buildStores assembles the storage stack: legacy Postgres (or memory)
// always, the REST-backed new store when the backing service is
// configured, composed through the phase-gated hybrid.
func buildStores(cfg *config.Config, ov Overrides, controller *migrationsvc.Controller, log *logger.Logger) (storage.Store, *supabase.Client, error) {
	supaClient := ov.Supabase
	if supaClient == nil && cfg.Supabase.URL != "" {
		client, err := supabase.New(supabase.Config{
			URL:        cfg.Supabase.URL,
			APIKey:     cfg.Supabase.ServiceKey,
			Resilience: defaultResilience(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("supabase client: %w", err)
		}
		supaClient = client
	}

	if ov.Store != nil {
		return ov.Store, supaClient, nil
	}

	var legacy storage.Store
	if cfg.Postgres.DSN != "" {
		pg, err := postgres.Open(cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		legacy = pg
	} else {
		log.Warn("no postgres DSN configured; using in-memory store")
		legacy = memory.New()
	}

	if supaClient == nil {
		return legacy, nil, nil
	}
	return storage.NewHybrid(legacy, rest.New(supaClient), controller, log), supaClient, nil
}

func defaultResilience() *supabase.ResilientClientConfig {
	return &supabase.ResilientClientConfig{
		RetryConfig:          supabase.DefaultRetryConfig(),
		CircuitBreakerConfig: supabase.DefaultCircuitBreakerConfig(),
	}
}

// sweeperService adapts the RLS replay sweeper to the lifecycle manager.
type sweeperService struct {
	sweeper *schemasvc.ReplaySweeper
}

func (s *sweeperService) Name() string { return "rls-replay" }

func (s *sweeperService) Start(context.Context) error { return s.sweeper.Start() }

func (s *sweeperService) Stop(context.Context) error {
	s.sweeper.Stop()
	return nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
