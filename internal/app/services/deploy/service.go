// Package deploy implements the deployment pipeline: build, classify,
// offload assets, generate the worker bundle, upload it, and wire up
// routing. The pipeline is terminal on first failure and updates the App
// record only once the new worker is live and routed.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/build"
	"github.com/appforge/platform/internal/app/domain/bundle"
	"github.com/appforge/platform/internal/app/metrics"
	"github.com/appforge/platform/internal/app/services/assets"
	bundlesvc "github.com/appforge/platform/internal/app/services/bundle"
	"github.com/appforge/platform/internal/app/storage"
	"github.com/appforge/platform/internal/edge"
	"github.com/appforge/platform/pkg/logger"
)

// Pipeline stage names, in execution order. Logged with every failure.
const (
	StageCredentialsCheck    = "credentials-check"
	StageBuild               = "build"
	StageClassify            = "classify"
	StageAssetUpload         = "asset-upload"
	StageBundleGenerate      = "bundle-generate"
	StageSizeCheck           = "size-check"
	StageBundleUpload        = "bundle-upload"
	StageEnvVarsSet          = "env-vars-set"
	StageDefaultDomainEnable = "default-domain-enable"
	StageRouteEnsure         = "route-ensure"
	StageAppRecordUpdate     = "app-record-update"
)

// Builder produces a build artifact for an app. The build itself runs in
// an external system; this is the collaborator contract.
type Builder interface {
	Build(ctx context.Context, a app.App) (build.Artifact, error)
}

// AssetUploader offloads asset files and returns their public URLs.
// Partial success is expected; failed paths are simply absent.
type AssetUploader interface {
	Upload(ctx context.Context, appID, environment string, files build.Artifact) (assets.Result, error)
}

// BundleGenerator renders the worker script for one environment.
type BundleGenerator interface {
	Generate(p bundlesvc.Params) (*bundle.WorkerBundle, error)
}

// Credentials are the secrets the pipeline needs before any side effect
// is attempted.
type Credentials struct {
	EdgeToken     string
	StorageURL    string
	StorageKey    string
	ServiceSecret string
	TokenTTL      time.Duration
}

// Config holds the orchestrator's deployment settings.
type Config struct {
	// AppsDomain hosts routed app subdomains, e.g. apps.example.com.
	AppsDomain string
	// WorkerDomain hosts the platform-issued default domains.
	WorkerDomain string
	// BackendName is the designated /api/<backend> proxy prefix.
	BackendName string
	// BackendURL is where proxied API calls land.
	BackendURL string
}

// Service orchestrates deployments.
type Service struct {
	creds     Credentials
	cfg       Config
	builder   Builder
	uploader  AssetUploader
	generator BundleGenerator
	edge      edge.API
	store     storage.AppStore
	log       *logger.Logger
}

// NewService assembles the deployment orchestrator from its collaborators.
func NewService(creds Credentials, cfg Config, builder Builder, uploader AssetUploader, generator BundleGenerator, edgeAPI edge.API, store storage.AppStore, log *logger.Logger) *Service {
	return &Service{
		creds:     creds,
		cfg:       cfg,
		builder:   builder,
		uploader:  uploader,
		generator: generator,
		edge:      edgeAPI,
		store:     store,
		log:       log.Component("deploy"),
	}
}

// Result is the terminal outcome of one deployment attempt.
type Result struct {
	Success        bool            `json:"success"`
	DeploymentURL  string          `json:"deployment_url,omitempty"`
	SecondaryURL   string          `json:"secondary_url,omitempty"`
	Environment    app.Environment `json:"environment"`
	BundleSizeMB   float64         `json:"bundle_size_mb,omitempty"`
	AssetsUploaded int             `json:"assets_uploaded"`
	Stage          string          `json:"stage,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Deploy runs the pipeline for one app and environment. It never leaves
// the App record pointing at a worker that is not live: deployment fields
// change only after the bundle is uploaded and routed.
func (s *Service) Deploy(ctx context.Context, a app.App, env app.Environment, envVars map[string]string) Result {
	started := time.Now()
	result := s.run(ctx, a, env, envVars)
	metrics.RecordDeployment(string(env), time.Since(started), result.Success)

	log := s.log.WithField("app_id", a.ID).WithField("environment", string(env))
	if result.Success {
		log.WithField("bundle_mb", result.BundleSizeMB).
			WithField("assets", result.AssetsUploaded).
			WithField("url", result.DeploymentURL).
			Info("deployment complete")
	} else {
		log.WithField("stage", result.Stage).WithField("error", result.Error).Error("deployment failed")
	}
	return result
}

func (s *Service) run(ctx context.Context, a app.App, env app.Environment, envVars map[string]string) Result {
	fail := func(stage string, err error) Result {
		return Result{Success: false, Environment: env, Stage: stage, Error: err.Error()}
	}

	if !env.Valid() {
		return fail(StageCredentialsCheck, fmt.Errorf("unknown environment %q", env))
	}
	if err := s.checkCredentials(); err != nil {
		return fail(StageCredentialsCheck, err)
	}

	artifact, err := s.builder.Build(ctx, a)
	if err != nil {
		return fail(StageBuild, &BuildError{AppID: a.ID, Err: err})
	}
	if len(artifact) == 0 {
		return fail(StageBuild, &BuildError{AppID: a.ID, Err: errors.New("build produced no files")})
	}

	code, assetFiles := build.Classify(artifact)
	if _, ok := code["index.html"]; !ok {
		return fail(StageClassify, fmt.Errorf("build has no index.html entry point"))
	}

	uploaded, err := s.uploader.Upload(ctx, a.ID, string(env), assetFiles)
	if err != nil {
		return fail(StageAssetUpload, &UploadError{Kind: "asset", Err: err})
	}

	serviceToken, err := s.mintServiceToken(a.ID, env)
	if err != nil {
		return fail(StageBundleGenerate, err)
	}

	b, err := s.generator.Generate(bundlesvc.Params{
		AppID:        a.ID,
		Environment:  env,
		CodeFiles:    code,
		AssetURLs:    uploaded.URLs,
		EnvVars:      envVars,
		BackendName:  s.cfg.BackendName,
		BackendURL:   s.cfg.BackendURL,
		ServiceToken: serviceToken,
	})
	if err != nil {
		var sizeErr *bundle.SizeLimitError
		if errors.As(err, &sizeErr) {
			return fail(StageSizeCheck, err)
		}
		return fail(StageBundleGenerate, err)
	}

	unitName := bundle.UnitName(env, a.ID)
	if err := s.edge.Deploy(ctx, unitName, b.Script); err != nil {
		return fail(StageBundleUpload, &UploadError{Kind: "bundle", Err: err})
	}
	if err := s.edge.SetEnvVars(ctx, unitName, string(env), envVars); err != nil {
		return fail(StageEnvVarsSet, err)
	}
	if err := s.edge.EnableDefaultDomain(ctx, unitName); err != nil {
		return fail(StageDefaultDomainEnable, err)
	}

	subdomain := s.subdomainFor(a, env)
	if err := s.edge.EnsureRoute(ctx, subdomain, unitName); err != nil {
		return fail(StageRouteEnsure, err)
	}

	deploymentURL := fmt.Sprintf("https://%s.%s", subdomain, s.cfg.AppsDomain)
	secondaryURL := fmt.Sprintf("https://%s.%s", unitName, s.cfg.WorkerDomain)

	now := time.Now().UTC()
	a.Status = app.StatusDeployed
	a.DeployedAt = &now
	if env == app.EnvProduction {
		a.ProductionURL = deploymentURL
	} else {
		a.StagingURL = deploymentURL
	}
	if _, err := s.store.UpdateApp(ctx, a); err != nil {
		return fail(StageAppRecordUpdate, err)
	}

	return Result{
		Success:        true,
		DeploymentURL:  deploymentURL,
		SecondaryURL:   secondaryURL,
		Environment:    env,
		BundleSizeMB:   roundMB(b.Size),
		AssetsUploaded: uploaded.Uploaded(),
	}
}

func (s *Service) checkCredentials() error {
	switch {
	case s.creds.EdgeToken == "":
		return &ConfigurationError{Missing: "edge auth token"}
	case s.creds.StorageURL == "":
		return &ConfigurationError{Missing: "storage URL"}
	case s.creds.StorageKey == "":
		return &ConfigurationError{Missing: "storage key"}
	case s.creds.ServiceSecret == "":
		return &ConfigurationError{Missing: "service token secret"}
	}
	return nil
}

// mintServiceToken issues the short-lived credential the worker attaches
// to proxied backend calls.
func (s *Service) mintServiceToken(appID string, env app.Environment) (string, error) {
	ttl := s.creds.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": appID,
		"env": string(env),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(s.creds.ServiceSecret))
	if err != nil {
		return "", fmt.Errorf("mint service token: %w", err)
	}
	return signed, nil
}

func (s *Service) subdomainFor(a app.App, env app.Environment) string {
	if env == app.EnvProduction {
		return a.Slug
	}
	return a.Slug + "-staging"
}

func roundMB(sizeBytes int) float64 {
	return math.Round(float64(sizeBytes)/(1024*1024)*100) / 100
}
