// Package client ties configuration, storage, fetcher and sync engine
// together behind one entry point used by the CLI and the HTTP mirror.
package client

import (
	"context"

	"github.com/juju/errors"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/buildinfo"
	"github.com/xelth-com/pdbsync/internal/config"
	"github.com/xelth-com/pdbsync/internal/database"
	"github.com/xelth-com/pdbsync/internal/logging"
	"github.com/xelth-com/pdbsync/internal/models"
	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/services/peeringdb"
	"github.com/xelth-com/pdbsync/internal/sync"
)

// Client is the main PeeringDB client: a local mirror plus the means to
// refresh it.
type Client struct {
	cfg     *config.Config
	db      *database.DB
	backend *database.Backend
	api     *peeringdb.Client
	fetcher *peeringdb.Fetcher
	updater *sync.Updater
}

// New connects the configured database, migrates it unless disabled and
// wires the fetcher and updater.
func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	dbCfg := cfg.ORM.Database
	dbCfg.Database = cfg.DatabasePath()
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, errors.Trace(err)
	}

	b := database.NewBackend(db, models.Registry(), database.WithStripTZ(cfg.Sync.StripTZ))
	if cfg.ORM.Migrate {
		if err := b.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, errors.Annotate(err, "migrating database")
		}
	}

	api := NewAPI(cfg, b.Name())
	fetcher := peeringdb.NewFetcher(api, peeringdb.WithCache(cfg.Sync.CacheURL, cfg.Sync.CachePath()))
	updater := sync.NewUpdater(b, fetcher,
		sync.WithFailedLog(sync.NewFailedLog(cfg.Sync.FailedEntriesPath())),
		sync.WithLogger(logging.Logger()),
	)

	return &Client{
		cfg:     cfg,
		db:      db,
		backend: b,
		api:     api,
		fetcher: fetcher,
		updater: updater,
	}, nil
}

// NewAPI builds the PeeringDB API client from the sync section of cfg.
// backendName goes into the User-Agent.
func NewAPI(cfg *config.Config, backendName string) *peeringdb.Client {
	return peeringdb.NewClient(peeringdb.Config{
		URL:       cfg.Sync.URL,
		User:      cfg.Sync.User,
		Password:  cfg.Sync.Password,
		APIKey:    cfg.Sync.APIKey,
		Timeout:   cfg.Sync.TimeoutDuration(),
		UserAgent: buildinfo.UserAgent(backendName),
		RateLimit: cfg.Sync.RateLimit,
	})
}

// Close releases the database.
func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Config() *config.Config { return c.cfg }
func (c *Client) Backend() *database.Backend { return c.backend }
func (c *Client) API() *peeringdb.Client { return c.api }
func (c *Client) Fetcher() *peeringdb.Fetcher { return c.fetcher }
func (c *Client) Updater() *sync.Updater { return c.updater }
func (c *Client) FailedLog() *sync.FailedLog { return c.updater.FailedLog() }

// Tags returns the tag of every resource.
func (c *Client) Tags() []string {
	return resource.Tags()
}

// Get returns the stored object res/pk. A missing object yields an error
// satisfying errors.Is(err, errors.NotFound).
func (c *Client) Get(ctx context.Context, res resource.Resource, pk int64) (backend.Object, error) {
	concrete, err := c.backend.Concrete(res)
	if err != nil {
		return nil, err
	}
	return c.backend.Object(ctx, concrete, pk)
}

// All returns every stored object of res, ordered by id.
func (c *Client) All(ctx context.Context, res resource.Resource) ([]backend.Object, error) {
	concrete, err := c.backend.Concrete(res)
	if err != nil {
		return nil, err
	}
	return c.backend.Objects(ctx, concrete)
}

// Resources returns the resources to sync: sync.only when set, else all.
func (c *Client) Resources() ([]resource.Resource, error) {
	if len(c.cfg.Sync.Only) == 0 {
		return resource.All(), nil
	}
	out := make([]resource.Resource, 0, len(c.cfg.Sync.Only))
	for _, tag := range c.cfg.Sync.Only {
		res, err := resource.Get(tag)
		if err != nil {
			return nil, errors.NewNotValid(err, "sync.only")
		}
		out = append(out, res)
	}
	return out, nil
}

// UpdateAll syncs the configured resources.
func (c *Client) UpdateAll(ctx context.Context, opts sync.UpdateOptions) (*sync.Result, error) {
	rs, err := c.Resources()
	if err != nil {
		return nil, err
	}
	return c.updater.UpdateAll(ctx, rs, opts)
}

// UpdateOne refreshes a single object from the API.
func (c *Client) UpdateOne(ctx context.Context, res resource.Resource, pk int64, depth int) error {
	return c.updater.UpdateOne(ctx, res, pk, depth)
}

// DropTables removes every mirror table.
func (c *Client) DropTables(ctx context.Context) error {
	return c.backend.DropTables(ctx)
}
