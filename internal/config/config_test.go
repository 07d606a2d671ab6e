package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://www.peeringdb.com/api", cfg.Sync.URL)
	assert.Equal(t, "https://public.peeringdb.com", cfg.Sync.CacheURL)
	assert.True(t, cfg.Sync.StripTZ)
	assert.Equal(t, EngineSQLite, cfg.ORM.Database.Engine)
	assert.True(t, cfg.ORM.Migrate)
	assert.Equal(t, "127.0.0.1:8000", cfg.Serve.Listen)
	assert.Equal(t, filepath.Join(dir, "peeringdb.sqlite3"), cfg.DatabasePath())
	assert.Equal(t, 60*time.Second, cfg.Sync.TimeoutDuration())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := `
sync:
  url: https://example.test/api
  timeout: 5
  only: [net, org]
orm:
  database:
    engine: postgres
    host: db.local
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0o600))

	t.Setenv("PDB_SYNC_API_KEY", "secret")
	t.Setenv("PDB_ORM_DATABASE_PORT", "6543")
	t.Setenv("PDB_LOG__LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/api", cfg.Sync.URL)
	assert.Equal(t, 5*time.Second, cfg.Sync.TimeoutDuration())
	assert.Equal(t, []string{"net", "org"}, cfg.Sync.Only)
	assert.Equal(t, "secret", cfg.Sync.APIKey)
	assert.True(t, cfg.Sync.HasAPIKey())
	assert.Equal(t, EnginePostgres, cfg.ORM.Database.Engine)
	assert.Equal(t, "db.local", cfg.ORM.Database.Host)
	assert.Equal(t, "6543", cfg.ORM.Database.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadOnlyFromEnv(t *testing.T) {
	t.Setenv("PDB_SYNC_ONLY", "net, ix,")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"net", "ix"}, cfg.Sync.Only)
}

func TestLoadMissingExplicitDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad engine", func(c *Config) { c.ORM.Database.Engine = "oracle" }, true},
		{"bad backend", func(c *Config) { c.ORM.Backend = "django_peeringdb" }, true},
		{"key and user", func(c *Config) { c.Sync.APIKey = "k"; c.Sync.User = "u" }, true},
		{"no url", func(c *Config) { c.Sync.URL = "" }, true},
		{"embedded", func(c *Config) { c.ORM.Database.Engine = EngineEmbeddedPostgres }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")
	cfg := Default()
	cfg.Sync.User = "alice"
	cfg.ORM.Database.Database = "mirror.db"

	path, err := Write(cfg, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Sync.User)
	assert.Equal(t, "mirror.db", loaded.ORM.Database.Database)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".peeringdb"), ExpandPath("~/.peeringdb"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
}
