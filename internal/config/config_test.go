package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  addr: ":9090"
supabase:
  url: https://proj.supabase.co
  service_key: file-key
edge:
  base_url: https://edge.example.com
  auth_token: file-token
deploy:
  apps_domain: apps.example.com
  worker_domain: workers.example.dev
migration:
  storage_enabled: true
  phase: hybrid
  app_overrides:
    app-9: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "https://proj.supabase.co", cfg.Supabase.URL)
	require.True(t, cfg.Migration.StorageEnabled)
	require.Equal(t, "hybrid", cfg.Migration.Phase)

	enabled, ok := cfg.Migration.AppOverrides["app-9"]
	require.True(t, ok)
	require.False(t, enabled)
}

func TestLoadOrEnvOverlaysSecrets(t *testing.T) {
	t.Setenv("SUPABASE_SERVICE_KEY", "env-key")
	t.Setenv("EDGE_AUTH_TOKEN", "env-token")

	cfg, err := LoadOrEnv(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, "env-key", cfg.Supabase.ServiceKey)
	require.Equal(t, "env-token", cfg.Edge.AuthToken)
	// Non-secret file values stay.
	require.Equal(t, ":9090", cfg.Server.Addr)
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "app-assets", cfg.Supabase.AssetBucket)
	require.Equal(t, "testing", cfg.Migration.Phase)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
