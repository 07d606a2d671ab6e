package peeringdb

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/xelth-com/pdbsync/internal/logging"
	"github.com/xelth-com/pdbsync/internal/metrics"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// cacheMaxAge is how long a downloaded <tag>-0.json stays usable.
const cacheMaxAge = 15 * time.Minute

// Fetcher loads whole resources once per sync pass and serves single
// objects on demand.
//
// Full loads prefer, in order: a local cache file younger than 15 minutes,
// the remote cache server (never for private data), and finally the API.
type Fetcher struct {
	client   *Client
	cacheURL string
	cacheDir string
	clock    clock.Clock

	mu        sync.Mutex
	resources map[string][]resource.Row

	localCacheUsed  bool
	remoteCacheUsed bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCache sets the remote cache server and the local cache directory.
func WithCache(cacheURL, cacheDir string) FetcherOption {
	return func(f *Fetcher) {
		f.cacheURL = strings.TrimRight(cacheURL, "/")
		f.cacheDir = cacheDir
	}
}

// WithFetcherClock sets the clock used to age local cache files.
func WithFetcherClock(clk clock.Clock) FetcherOption {
	return func(f *Fetcher) { f.clock = clk }
}

// NewFetcher creates a Fetcher on top of client.
func NewFetcher(client *Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    client,
		clock:     clock.WallClock,
		resources: map[string][]resource.Row{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// LocalCacheUsed reports whether any load was served from a local file.
func (f *Fetcher) LocalCacheUsed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.localCacheUsed
}

// RemoteCacheUsed reports whether any load downloaded a cache file.
func (f *Fetcher) RemoteCacheUsed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteCacheUsed
}

// Reset forgets every loaded resource.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources = map[string][]resource.Row{}
}

func (f *Fetcher) cacheFile(tag string) string {
	return filepath.Join(f.cacheDir, tag+"-0.json")
}

func (f *Fetcher) loaded(tag string) ([]resource.Row, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows, ok := f.resources[tag]
	return rows, ok
}

func (f *Fetcher) store(tag string, rows []resource.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[tag] = rows
}

// Load populates the entries of tag. A resource that is already loaded is
// left alone. since is a unix time; 0 requests everything. When
// fetchPrivate is set for a private resource the caches are bypassed, and
// initialPrivate additionally drops since so that every object is fetched
// with its private fields.
func (f *Fetcher) Load(ctx context.Context, tag string, since int64, fetchPrivate, initialPrivate bool) error {
	if _, ok := f.loaded(tag); ok {
		return nil
	}
	fetchPrivate = fetchPrivate && resource.IsPrivate(tag)
	log := logging.With().Str("resource", tag).Logger()

	if since == 0 && f.cacheDir != "" {
		rows, ok, err := f.readLocal(tag)
		if err != nil {
			return err
		}
		if ok {
			log.Info().Msg("Fetching from local cache")
			metrics.CacheLoads.WithLabelValues("local").Inc()
			f.store(tag, rows)
			f.mu.Lock()
			f.localCacheUsed = true
			f.mu.Unlock()
			return nil
		}
	}

	if since == 0 && f.cacheURL != "" && !fetchPrivate {
		log.Info().Str("cache_url", f.cacheURL).Msg("Fetching from remote cache")
		rows, err := f.downloadRemote(ctx, tag)
		if err != nil {
			return err
		}
		metrics.CacheLoads.WithLabelValues("remote").Inc()
		f.store(tag, rows)
		f.mu.Lock()
		f.remoteCacheUsed = true
		f.mu.Unlock()
		return nil
	}

	if fetchPrivate && initialPrivate {
		since = 0
	}
	log.Info().Bool("private", fetchPrivate).Int64("since", since).Msg("Fetching from API")
	params := url.Values{}
	if since > 0 {
		params.Set("since", strconv.FormatInt(since, 10))
	}
	rows, err := f.client.List(ctx, tag, params)
	if err != nil {
		return errors.Annotatef(err, "loading %s", tag)
	}
	metrics.CacheLoads.WithLabelValues("api").Inc()
	f.store(tag, rows)
	return nil
}

func (f *Fetcher) readLocal(tag string) ([]resource.Row, bool, error) {
	path := f.cacheFile(tag)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, nil
	}
	if f.clock.Now().Sub(info.ModTime()) >= cacheMaxAge {
		return nil, false, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errors.Annotatef(err, "reading %s", path)
	}
	rows, err := decodeData(body)
	if err != nil {
		return nil, false, errors.Annotatef(err, "decoding %s", path)
	}
	return rows, true, nil
}

func (f *Fetcher) downloadRemote(ctx context.Context, tag string) ([]resource.Row, error) {
	u := f.cacheURL + "/" + tag + "-0.json"
	body, err := f.client.Download(ctx, u)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching %s from remote cache", tag)
	}
	rows, err := decodeData(body)
	if err != nil {
		return nil, errors.Annotatef(err, "decoding %s", u)
	}
	if f.cacheDir != "" {
		if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
			return nil, errors.Annotate(err, "creating cache dir")
		}
		if err := os.WriteFile(f.cacheFile(tag), body, 0o644); err != nil {
			return nil, errors.Annotatef(err, "writing cache file for %s", tag)
		}
	}
	return rows, nil
}

// Entries returns the loaded rows of tag, loading the full resource first
// if needed.
func (f *Fetcher) Entries(ctx context.Context, tag string) ([]resource.Row, error) {
	if rows, ok := f.loaded(tag); ok {
		return rows, nil
	}
	if err := f.Load(ctx, tag, 0, false, false); err != nil {
		return nil, err
	}
	rows, _ := f.loaded(tag)
	return rows, nil
}

// Get returns one object. Loaded entries are searched first unless force
// is set; otherwise the API is queried with since=1, which also returns
// deleted objects.
func (f *Fetcher) Get(ctx context.Context, tag string, pk int64, depth int, force bool) (resource.Row, error) {
	if !force {
		if rows, ok := f.loaded(tag); ok {
			for _, row := range rows {
				if id, ok := row.ID(); ok && id == pk {
					return row, nil
				}
			}
		}
	}

	params := url.Values{}
	params.Set("id", strconv.FormatInt(pk, 10))
	params.Set("since", "1")
	if depth > 0 {
		params.Set("depth", strconv.Itoa(depth))
	}
	rows, err := f.client.List(ctx, tag, params)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching %s %d", tag, pk)
	}
	for _, row := range rows {
		if id, ok := row.ID(); ok && id == pk {
			return row, nil
		}
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	return nil, errors.NotFoundf("object %s %d", tag, pk)
}
