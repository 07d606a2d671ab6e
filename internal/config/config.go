package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// DefaultDir is the default config directory.
	DefaultDir = "~/.peeringdb"
	// HomeEnvVar overrides the config directory.
	HomeEnvVar = "PEERINGDB_HOME"
	// EnvPrefix prefixes every config override in the environment.
	EnvPrefix = "PDB_"
	// FileName is the config file inside the config directory.
	FileName = "config.yaml"
)

// Config holds all application configuration
type Config struct {
	Sync  SyncConfig  `koanf:"sync" yaml:"sync"`
	ORM   ORMConfig   `koanf:"orm" yaml:"orm"`
	Log   LogConfig   `koanf:"log" yaml:"log"`
	Serve ServeConfig `koanf:"serve" yaml:"serve"`

	// Dir is the directory the config was loaded from; not persisted.
	Dir string `koanf:"-" yaml:"-"`
}

// ORMConfig selects and configures the storage backend
type ORMConfig struct {
	Backend  string         `koanf:"backend" yaml:"backend"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Migrate  bool           `koanf:"migrate" yaml:"migrate"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Engine   string `koanf:"engine" yaml:"engine"`
	Database string `koanf:"name" yaml:"name"`
	Host     string `koanf:"host" yaml:"host"`
	Port     string `koanf:"port" yaml:"port"`
	Username string `koanf:"user" yaml:"user"`
	Password string `koanf:"password" yaml:"password"`
	// DataPath is the cluster directory of the embedded-postgres engine.
	DataPath string `koanf:"data_path" yaml:"data_path,omitempty"`
	// Verbose turns on SQL statement logging.
	Verbose bool `koanf:"verbose" yaml:"verbose,omitempty"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `koanf:"level" yaml:"level"`
	Format     string `koanf:"format" yaml:"format"`
	File       string `koanf:"file" yaml:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" yaml:"max_backups"`
}

// ServeConfig holds the mirror HTTP server configuration
type ServeConfig struct {
	Listen string `koanf:"listen" yaml:"listen"`
}

// Supported database engines.
const (
	EngineSQLite           = "sqlite3"
	EnginePostgres         = "postgres"
	EngineMySQL            = "mysql"
	EngineEmbeddedPostgres = "embedded-postgres"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			URL:           "https://www.peeringdb.com/api",
			CacheURL:      "https://public.peeringdb.com",
			CacheDir:      "~/.cache/peeringdb",
			StripTZ:       true,
			FailedEntries: filepath.Join(DefaultDir, "failed_entries.json"),
			Only:          []string{},
		},
		ORM: ORMConfig{
			Backend: "gorm",
			Database: DatabaseConfig{
				Engine:   EngineSQLite,
				Database: "peeringdb.sqlite3",
			},
			Migrate: true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Serve: ServeConfig{
			Listen: "127.0.0.1:8000",
		},
	}
}

// ResolveDir picks the config directory: the explicit argument, then
// PEERINGDB_HOME, then the default.
func ResolveDir(dir string) string {
	if dir == "" {
		dir = getEnv(HomeEnvVar, DefaultDir)
	}
	return ExpandPath(dir)
}

// Load loads configuration from defaults, <dir>/config.yaml and PDB_*
// environment variables, in increasing precedence.
func Load(dir string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	explicit := dir != "" && dir != DefaultDir
	dir = ResolveDir(dir)

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(dir); err != nil {
		if explicit {
			return nil, fmt.Errorf("config dir not found at %s", dir)
		}
	} else {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Dir = dir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps PDB_SYNC_API_KEY to sync.api_key and
// PDB_ORM_DATABASE_ENGINE to orm.database.engine. A double underscore
// always separates levels.
func envTransform(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", ".")
	} else {
		section, rest, ok := strings.Cut(key, "_")
		if !ok {
			return "", nil
		}
		if section == "orm" && strings.HasPrefix(rest, "database_") {
			rest = "database." + strings.TrimPrefix(rest, "database_")
		}
		key = section + "." + rest
	}

	switch key {
	case "sync.only":
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.ORM.Database.Engine {
	case EngineSQLite, EnginePostgres, EngineMySQL, EngineEmbeddedPostgres:
	default:
		return fmt.Errorf("unsupported database engine %q", c.ORM.Database.Engine)
	}
	if c.ORM.Backend != "" && c.ORM.Backend != "gorm" {
		return fmt.Errorf("not a supported backend: %q", c.ORM.Backend)
	}
	if c.Sync.APIKey != "" && c.Sync.User != "" {
		return fmt.Errorf("sync.api_key and sync.user are mutually exclusive")
	}
	if c.Sync.URL == "" {
		return fmt.Errorf("sync.url is required")
	}
	return nil
}

// Write stores cfg as YAML in <dir>/config.yaml, creating dir if needed.
func Write(cfg *Config, dir string) (string, error) {
	dir = ResolveDir(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yamlv3.Marshal(cfg)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
