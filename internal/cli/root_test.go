package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/testinfra"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pdbsync", cmd.Use)
	assert.Contains(t, cmd.Long, "PeeringDB")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"sync", "get", "whois", "drop-tables", "config", "serve"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "C", configFlag.Shorthand)

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "0", verboseFlag.DefValue)
}

func TestSyncCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	syncCmd, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)

	sinceFlag := syncCmd.Flags().Lookup("since")
	require.NotNil(t, sinceFlag)
	assert.Equal(t, "-1", sinceFlag.DefValue)

	for _, name := range []string{"fetch-private", "dry-run", "init", "only", "skip"} {
		assert.NotNil(t, syncCmd.Flags().Lookup(name), name)
	}
}

func TestGetCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	getCmd, _, err := cmd.Find([]string{"get"})
	require.NoError(t, err)

	depthFlag := getCmd.Flags().Lookup("depth")
	require.NotNil(t, depthFlag)
	assert.Equal(t, "D", depthFlag.Shorthand)

	formatFlag := getCmd.Flags().Lookup("output-format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "yaml", formatFlag.DefValue)
}

func TestWhoisQuery(t *testing.T) {
	tag, params, typ, err := whoisQuery("as", 65001)
	require.NoError(t, err)
	assert.Equal(t, "net", tag)
	assert.Equal(t, "net", typ)
	assert.Equal(t, "65001", params.Get("asn"))

	tag, params, typ, err = whoisQuery("ixnets", 3)
	require.NoError(t, err)
	assert.Equal(t, "net", tag)
	assert.Equal(t, "net", typ)
	assert.Equal(t, "3", params.Get("ix_id__in"))

	tag, params, typ, err = whoisQuery("fac", 7)
	require.NoError(t, err)
	assert.Equal(t, "fac", tag)
	assert.Equal(t, "fac", typ)
	assert.Equal(t, "7", params.Get("id"))

	_, _, _, err = whoisQuery("nope", 1)
	assert.Error(t, err)
}

// writeConfig points a fresh config dir at mock.
func writeConfig(t *testing.T, mock *testinfra.MockPeeringDB) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`sync:
  url: %s
  cache_url: %s
  cache_dir: %s
  failed_entries: %s
orm:
  database:
    engine: sqlite3
    name: peeringdb.sqlite3
log:
  level: error
`, mock.APIURL(), mock.CacheURL(), filepath.Join(dir, "cache"), filepath.Join(dir, "failed.json"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o600))
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestConfigDump(t *testing.T) {
	mock := testinfra.NewMockPeeringDB(t)
	dir := writeConfig(t, mock)

	out, _, err := execute(t, "-C", dir, "config", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "url: "+mock.APIURL())
	assert.Contains(t, out, "engine: sqlite3")

	out, _, err = execute(t, "-C", dir, "config", "dump", "-O", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"engine": "sqlite3"`)
}

func TestConfigDirNotFound(t *testing.T) {
	_, _, err := execute(t, "-C", filepath.Join(t.TempDir(), "absent"), "config", "dump")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSyncThenGet(t *testing.T) {
	mock := testinfra.NewMockPeeringDB(t)
	mock.Add("org", resource.Row{"id": int64(5), "name": "Example Org", "status": "ok",
		"created": "2024-01-01T00:00:00Z", "updated": "2024-01-01T00:00:00Z"})
	mock.Add("net", resource.Row{"id": int64(1), "org_id": int64(5), "name": "Example Net", "asn": int64(65001),
		"status": "ok", "created": "2024-01-01T00:00:00Z", "updated": "2024-01-01T00:00:00Z"})
	dir := writeConfig(t, mock)

	out, _, err := execute(t, "-C", dir, "sync", "--only", "org", "--only", "net")
	require.NoError(t, err)
	assert.Contains(t, out, "Syncing to "+mock.APIURL())

	out, _, err = execute(t, "-C", dir, "get", "net1", "-O", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Example Net"`)
	assert.Contains(t, out, `"org": 5`)

	out, _, err = execute(t, "-C", dir, "get", "org-5", "-D", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Example Org")

	_, _, err = execute(t, "-C", dir, "get", "net2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "Not found: net-2")
}

func TestGetInvalidRef(t *testing.T) {
	mock := testinfra.NewMockPeeringDB(t)
	dir := writeConfig(t, mock)

	_, _, err := execute(t, "-C", dir, "get", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWhoisASN(t *testing.T) {
	mock := testinfra.NewMockPeeringDB(t)
	mock.Add("net", resource.Row{"id": int64(1), "org_id": int64(5), "name": "Example Net", "asn": int64(65001),
		"status": "ok", "created": "2024-01-01T00:00:00Z", "updated": "2024-01-01T00:00:00Z"})
	dir := writeConfig(t, mock)

	out, _, err := execute(t, "-C", dir, "whois", "as65001")
	require.NoError(t, err)
	assert.Contains(t, out, "Example Net")

	_, _, err = execute(t, "-C", dir, "whois", "as65002")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
