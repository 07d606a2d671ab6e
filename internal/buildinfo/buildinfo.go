package buildinfo

import "time"

// Set via -ldflags at build time
var (
	Version    = "dev"
	BuildTime  string // when the binary was compiled
	CommitTime string // last git commit time (last code edit)
	CommitHash string // short git commit hash
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC().Format(time.RFC3339)

// UserAgent returns the User-Agent sent to the PeeringDB API, naming the
// storage backend in use (e.g. "gorm/sqlite3").
func UserAgent(backend string) string {
	ua := "pdbsync/" + Version
	if backend != "" {
		ua += " " + backend
	}
	return ua
}
