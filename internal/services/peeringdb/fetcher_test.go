package peeringdb

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/testinfra"
)

func newFetcher(pdb *testinfra.MockPeeringDB, cacheDir string, opts ...FetcherOption) *Fetcher {
	client := NewClient(Config{URL: pdb.APIURL()}, WithRetry(time.Millisecond, 3))
	opts = append([]FetcherOption{WithCache(pdb.CacheURL(), cacheDir)}, opts...)
	return NewFetcher(client, opts...)
}

func seed(pdb *testinfra.MockPeeringDB) {
	pdb.Add("org",
		resource.Row{"id": 1, "name": "Org One", "updated": "2024-01-01T00:00:00Z"},
		resource.Row{"id": 2, "name": "Org Two", "updated": "2024-06-01T00:00:00Z"},
	)
	pdb.Add("poc", resource.Row{"id": 7, "net_id": 1, "role": "Technical", "visible": "Users"})
}

func TestLoadUsesRemoteThenLocalCache(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	seed(pdb)
	dir := t.TempDir()
	ctx := context.Background()

	f := newFetcher(pdb, dir)
	require.NoError(t, f.Load(ctx, "org", 0, false, false))
	assert.True(t, f.RemoteCacheUsed())
	assert.False(t, f.LocalCacheUsed())
	assert.FileExists(t, filepath.Join(dir, "org-0.json"))
	assert.Len(t, pdb.Requests("/org-0.json"), 1)

	rows, err := f.Entries(ctx, "org")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// a second load of the same resource is a no-op
	require.NoError(t, f.Load(ctx, "org", 0, false, false))
	assert.Len(t, pdb.Requests("/org-0.json"), 1)

	g := newFetcher(pdb, dir)
	require.NoError(t, g.Load(ctx, "org", 0, false, false))
	assert.True(t, g.LocalCacheUsed())
	assert.False(t, g.RemoteCacheUsed())
	assert.Len(t, pdb.Requests("/org-0.json"), 1)
	assert.Empty(t, pdb.Requests("/api/org"))
}

func TestLoadIgnoresStaleLocalCache(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	seed(pdb)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "org-0.json"), []byte(`{"data": []}`), 0o644))

	clk := testclock.NewClock(time.Now().Add(16 * time.Minute))
	f := newFetcher(pdb, dir, WithFetcherClock(clk))
	require.NoError(t, f.Load(context.Background(), "org", 0, false, false))
	assert.False(t, f.LocalCacheUsed())
	assert.True(t, f.RemoteCacheUsed())

	rows, err := f.Entries(context.Background(), "org")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestLoadIncrementalUsesAPI(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	seed(pdb)
	f := newFetcher(pdb, t.TempDir())

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	require.NoError(t, f.Load(context.Background(), "org", since, false, false))
	assert.False(t, f.RemoteCacheUsed())

	reqs := pdb.Requests("/api/org")
	require.Len(t, reqs, 1)
	assert.Equal(t, "1709251200", reqs[0].Query["since"])

	rows, err := f.Entries(context.Background(), "org")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Org Two", rows[0]["name"])
}

func TestLoadPrivateBypassesRemoteCache(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	seed(pdb)
	ctx := context.Background()

	f := newFetcher(pdb, t.TempDir())
	require.NoError(t, f.Load(ctx, "poc", 0, true, true))
	assert.False(t, f.RemoteCacheUsed())
	require.Len(t, pdb.Requests("/api/poc"), 1)

	// the first private fetch ignores the watermark
	g := newFetcher(pdb, t.TempDir())
	require.NoError(t, g.Load(ctx, "poc", 1000, true, true))
	reqs := pdb.Requests("/api/poc")
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[1].Query, "since")

	// private fetching only applies to private resources
	h := newFetcher(pdb, t.TempDir())
	require.NoError(t, h.Load(ctx, "org", 0, true, true))
	assert.True(t, h.RemoteCacheUsed())
}

func TestLoadRemoteCacheFailure(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	pdb.CacheStatus(http.StatusServiceUnavailable)
	f := newFetcher(pdb, t.TempDir())

	err := f.Load(context.Background(), "org", 0, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote cache")
}

func TestGet(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	seed(pdb)
	ctx := context.Background()
	f := newFetcher(pdb, t.TempDir())
	require.NoError(t, f.Load(ctx, "org", 0, false, false))

	row, err := f.Get(ctx, "org", 2, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "Org Two", row["name"])
	assert.Empty(t, pdb.Requests("/api/org"), "served from loaded entries")

	row, err = f.Get(ctx, "org", 2, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "Org Two", row["name"])
	reqs := pdb.Requests("/api/org")
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]string{"id": "2", "since": "1", "depth": "1"}, reqs[0].Query)

	// not loaded yet: goes to the API
	pdb.Add("net", resource.Row{"id": 1, "name": "Net One", "org": 5})
	row, err = f.Get(ctx, "net", 1, 0, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, row["org"])

	_, err = f.Get(ctx, "org", 99, 0, false)
	assert.True(t, errors.Is(err, errors.NotFound))
}
