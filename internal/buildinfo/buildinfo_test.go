package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	assert.Equal(t, "pdbsync/1.2.3 gorm/sqlite3", UserAgent("gorm/sqlite3"))
	assert.Equal(t, "pdbsync/1.2.3", UserAgent(""))
}
