package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Detection.Threshold)
	assert.Equal(t, 2, cfg.Detection.RetryAttempts)
	assert.Equal(t, 3*time.Second, cfg.Detection.RetryDelay)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 30*time.Minute, cfg.Store.TTL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
detection:
  threshold: 80
  retry_delay: 500ms
  use_browser: true
registry:
  location: ./brands.csv
store:
  type: redis
  redis_address: localhost:6379
logging:
  level: debug
  format: json
`
	path := filepath.Join(t.TempDir(), "cashback.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Detection.Threshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Detection.RetryDelay)
	assert.True(t, cfg.Detection.UseBrowser)
	assert.Equal(t, "./brands.csv", cfg.Registry.Location)
	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2, cfg.Detection.RetryAttempts)
}

func TestLoad_DiscoversFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cashback.json"), []byte(`{"server":{"port":9090}}`), 0o644))
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CASHBACK_DETECTION_THRESHOLD", "90")
	t.Setenv("CASHBACK_REGISTRY_LOCATION", "https://cdn.example.com/brands.csv")
	t.Setenv("CASHBACK_AUTH_ENABLED", "true")
	t.Setenv("CASHBACK_AUTH_SECRET", "0123456789abcdef0123")
	t.Setenv("CASHBACK_SERVER_ALLOWED_ORIGINS", "chrome-extension://abc,https://app.example.com")
	t.Setenv("CASHBACK_SERVER_TRUSTED_PROXIES", "10.0.0.0/8,127.0.0.1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Detection.Threshold)
	assert.Equal(t, "https://cdn.example.com/brands.csv", cfg.Registry.Location)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, []string{"chrome-extension://abc", "https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"threshold too high", "detection:\n  threshold: 500\n", "detection.threshold"},
		{"unknown store", "store:\n  type: memcached\n", "store.type"},
		{"redis without address", "store:\n  type: redis\n", "store.redis_address"},
		{"auth without secret", "auth:\n  enabled: true\n", "auth.secret"},
		{"short secret", "auth:\n  enabled: true\n  secret: short\n", "at least 16"},
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
		{"bad database url", "database:\n  url: not a url\n", "database.url"},
		{"bad trusted proxy", "server:\n  trusted_proxies: [\"10.0.0.0/33\"]\n", "cidr|ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cashback.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := Load(path)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/cashback.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestMergeWithDefaults(t *testing.T) {
	defaults := Default()
	defaults.Registry.Location = "./brands.csv"

	flags := Config{Detection: DetectionConfig{Threshold: 60, UseBrowser: true}}
	merged := flags.MergeWithDefaults(defaults)

	assert.Equal(t, 60, merged.Detection.Threshold)
	assert.True(t, merged.Detection.UseBrowser)
	assert.Equal(t, "./brands.csv", merged.Registry.Location)
	assert.Equal(t, defaults.Detection.RetryAttempts, merged.Detection.RetryAttempts)
	assert.Equal(t, defaults.Store, merged.Store)
	assert.Equal(t, defaults.Logging, merged.Logging)
	require.NoError(t, merged.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CASHBACK_TEST_ONLY_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CASHBACK_TEST_ONLY_VALUE") })

	assert.Equal(t, "", LoadEnvFile(filepath.Join(dir, "missing.env")))
	assert.Equal(t, path, LoadEnvFile(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-dotenv", os.Getenv("CASHBACK_TEST_ONLY_VALUE"))
}

func TestAuthConfig(t *testing.T) {
	assert.NoError(t, (&AuthConfig{}).normalize())
	assert.Error(t, (&AuthConfig{Enabled: true}).normalize())
	assert.Error(t, (&AuthConfig{Secret: "0123456789abcdef", ExpirationHours: 0}).normalize())
	assert.NoError(t, (&AuthConfig{Enabled: true, Secret: "0123456789abcdef", ExpirationHours: 1}).normalize())
	assert.Equal(t, 2*time.Hour, AuthConfig{ExpirationHours: 2}.TokenTTL())
}
