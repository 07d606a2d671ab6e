package config

import (
	"path/filepath"
	"time"
)

// SyncConfig holds the remote API and cache settings used by the fetcher
type SyncConfig struct {
	URL      string `koanf:"url" yaml:"url"`
	User     string `koanf:"user" yaml:"user"`
	Password string `koanf:"password" yaml:"password"`
	APIKey   string `koanf:"api_key" yaml:"api_key"`

	// CacheURL serves <tag>-0.json snapshots; empty disables the remote cache.
	CacheURL string `koanf:"cache_url" yaml:"cache_url"`
	CacheDir string `koanf:"cache_dir" yaml:"cache_dir"`

	Timeout int      `koanf:"timeout" yaml:"timeout"` // seconds, 0 = 60
	Only    []string `koanf:"only" yaml:"only"`
	StripTZ bool     `koanf:"strip_tz" yaml:"strip_tz"`

	FailedEntries string `koanf:"failed_entries" yaml:"failed_entries"`
	RateLimit     int    `koanf:"rate_limit" yaml:"rate_limit"` // requests per minute, 0 = unlimited
}

// TimeoutDuration returns the HTTP timeout.
func (s SyncConfig) TimeoutDuration() time.Duration {
	if s.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}

// CachePath returns the expanded local cache directory.
func (s SyncConfig) CachePath() string {
	return ExpandPath(s.CacheDir)
}

// FailedEntriesPath returns the expanded failed-entries log path.
func (s SyncConfig) FailedEntriesPath() string {
	return ExpandPath(s.FailedEntries)
}

// HasAPIKey reports whether private data can be requested.
func (s SyncConfig) HasAPIKey() bool { return s.APIKey != "" }

// DatabasePath resolves a relative SQLite file name against the config dir.
func (c *Config) DatabasePath() string {
	name := ExpandPath(c.ORM.Database.Database)
	if c.ORM.Database.Engine != EngineSQLite || filepath.IsAbs(name) || name == ":memory:" || c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}
