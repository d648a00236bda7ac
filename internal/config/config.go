// Package config loads deployd configuration from a yaml file and from
// the environment. Migration flags are carried as an explicit value
// object so resolution never reads process state implicitly.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/appforge/platform/internal/app/domain/migration"
)

// Config is the full deployd configuration.
type Config struct {
	Server    Server          `yaml:"server"`
	Supabase  Supabase        `yaml:"supabase"`
	Edge      Edge            `yaml:"edge"`
	Postgres  Postgres        `yaml:"postgres"`
	Redis     Redis           `yaml:"redis"`
	Deploy    Deploy          `yaml:"deploy"`
	Migration migration.Flags `yaml:"migration"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR,default=:8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT,default=15s"`
}

// Supabase configures the backing-store REST client.
type Supabase struct {
	URL         string `yaml:"url" env:"SUPABASE_URL"`
	ServiceKey  string `yaml:"service_key" env:"SUPABASE_SERVICE_KEY"`
	AssetBucket string `yaml:"asset_bucket" env:"SUPABASE_ASSET_BUCKET,default=app-assets"`
}

// Edge configures the worker hosting platform client.
type Edge struct {
	BaseURL           string  `yaml:"base_url" env:"EDGE_BASE_URL"`
	AuthToken         string  `yaml:"auth_token" env:"EDGE_AUTH_TOKEN"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"EDGE_RPS,default=4"`
}

// Postgres configures the legacy store. An empty DSN disables it and the
// service runs on the configured alternative store only.
type Postgres struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

// Redis configures the pending-RLS scratch mirror. An empty address
// degrades to metadata-only tracking.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB,default=0"`
}

// Deploy configures the deployment orchestrator.
type Deploy struct {
	AppsDomain    string `yaml:"apps_domain" env:"DEPLOY_APPS_DOMAIN"`
	WorkerDomain  string `yaml:"worker_domain" env:"DEPLOY_WORKER_DOMAIN"`
	BackendName   string `yaml:"backend_name" env:"DEPLOY_BACKEND_NAME,default=core"`
	BackendURL    string `yaml:"backend_url" env:"DEPLOY_BACKEND_URL"`
	ServiceSecret string `yaml:"service_secret" env:"DEPLOY_SERVICE_SECRET"`
	BuilderURL    string `yaml:"builder_url" env:"DEPLOY_BUILDER_URL"`
}

// Load reads a yaml config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// FromEnv decodes configuration from environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config from env: %w", err)
	}
	return &cfg, nil
}

// LoadOrEnv prefers a config file when path is non-empty, otherwise the
// environment. Environment values overlay file values for credentials so
// secrets can stay out of the file.
func LoadOrEnv(path string) (*Config, error) {
	if path == "" {
		return FromEnv()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	overlayEnv(cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	for env, target := range map[string]*string{
		"SUPABASE_URL":          &cfg.Supabase.URL,
		"SUPABASE_SERVICE_KEY":  &cfg.Supabase.ServiceKey,
		"EDGE_AUTH_TOKEN":       &cfg.Edge.AuthToken,
		"POSTGRES_DSN":          &cfg.Postgres.DSN,
		"REDIS_ADDR":            &cfg.Redis.Addr,
		"DEPLOY_SERVICE_SECRET": &cfg.Deploy.ServiceSecret,
	} {
		if v := os.Getenv(env); v != "" {
			*target = v
		}
	}
}
