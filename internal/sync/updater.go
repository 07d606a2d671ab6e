// Package sync mirrors PeeringDB objects into a local backend.
//
// The Updater pulls whole resources (initial sync) or the rows changed since
// the newest local "updated" timestamp (incremental sync). Related objects
// that are referenced by id but missing locally are fetched and stored
// depth first before the referencing object, so resources may be synced in
// any order.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/logging"
	"github.com/xelth-com/pdbsync/internal/metrics"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// Fetcher supplies remote rows.
type Fetcher interface {
	// Load populates the entries of tag; since is a unix time, 0 for all.
	Load(ctx context.Context, tag string, since int64, fetchPrivate, initialPrivate bool) error
	Entries(ctx context.Context, tag string) ([]resource.Row, error)
	// Get returns one object, querying the API when force is set or the
	// object is not among the loaded entries.
	Get(ctx context.Context, tag string, pk int64, depth int, force bool) (resource.Row, error)
	// Reset forgets the entries loaded by a previous pass.
	Reset()
}

const (
	ModeInitial     = "initial"
	ModeIncremental = "incremental"
	ModeSingle      = "single"
)

// errDryRun rolls back the transaction of a dry run.
const errDryRun = errors.ConstError("dry run")

// UpdateOptions tune UpdateAll.
type UpdateOptions struct {
	// Since overrides the local watermark when set.
	Since *int64
	// Skip lists resource tags to leave untouched.
	Skip []string
	// FetchPrivate requests private fields, which needs credentials.
	FetchPrivate bool
	// DryRun performs the sync and rolls it back.
	DryRun bool
}

// ResourceResult summarizes the sync of one resource.
type ResourceResult struct {
	Tag      string
	Mode     string
	Entries  int
	Synced   int
	Failed   int
	Skipped  bool
	Duration time.Duration
}

// Result summarizes an UpdateAll run.
type Result struct {
	RunID     string
	DryRun    bool
	Resources []ResourceResult
	Duration  time.Duration
	Timestamp time.Time
}

// Failed returns the number of rows that could not be synced.
func (r *Result) Failed() int {
	n := 0
	for _, rr := range r.Resources {
		n += rr.Failed
	}
	return n
}

// Updater drives the sync of PeeringDB resources into a backend.
type Updater struct {
	backend backend.Backend
	fetcher Fetcher
	failed  *FailedLog
	log     zerolog.Logger

	// pending holds the objects being materialized; shared by the
	// transaction-bound copies of an Updater.
	pending *pendingSet
}

// Option configures an Updater.
type Option func(*Updater)

// WithFailedLog records failing rows in l.
func WithFailedLog(l *FailedLog) Option {
	return func(u *Updater) { u.failed = l }
}

// WithLogger replaces the package logger.
func WithLogger(l zerolog.Logger) Option {
	return func(u *Updater) { u.log = l }
}

// NewUpdater creates an Updater storing into b and reading from f.
func NewUpdater(b backend.Backend, f Fetcher, opts ...Option) *Updater {
	u := &Updater{
		backend: b,
		fetcher: f,
		failed:  NewFailedLog(""),
		log:     logging.Logger(),
		pending: &pendingSet{keys: map[objectKey]bool{}},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Backend returns the backend the updater writes to.
func (u *Updater) Backend() backend.Backend { return u.backend }

// FailedLog returns the failed-entries log.
func (u *Updater) FailedLog() *FailedLog { return u.failed }

func (u *Updater) withBackend(b backend.Backend) *Updater {
	clone := *u
	clone.backend = b
	return &clone
}

func (u *Updater) withLogger(l zerolog.Logger) *Updater {
	clone := *u
	clone.log = l
	return &clone
}

type objectKey struct {
	tag string
	pk  int64
}

type pendingSet struct {
	mu   sync.Mutex
	keys map[objectKey]bool
}

func (p *pendingSet) enter(k objectKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.keys[k] {
		return false
	}
	p.keys[k] = true
	return true
}

func (p *pendingSet) leave(k objectKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, k)
}

// IsFatal reports whether err must abort a whole sync instead of failing a
// single row.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

func (u *Updater) skipped(tag string, skip []string) bool {
	for _, s := range skip {
		if s == tag {
			return true
		}
	}
	return false
}

// UpdateAll syncs every resource in rs in the given order. Each resource is
// synced inside one backend transaction. Skipped resources are still loaded,
// so that references to them resolve from their entries.
func (u *Updater) UpdateAll(ctx context.Context, rs []resource.Resource, opts UpdateOptions) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString(), DryRun: opts.DryRun, Timestamp: start.UTC()}
	run := u.withLogger(u.log.With().Str("run", result.RunID).Logger())

	u.fetcher.Reset()
	if err := run.preloadSkipped(ctx, opts); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	for _, res := range rs {
		if u.skipped(res.Tag(), opts.Skip) {
			run.log.Info().Str("resource", res.Tag()).Msg("Skipping")
			result.Resources = append(result.Resources, ResourceResult{Tag: res.Tag(), Skipped: true})
			continue
		}
		rr, err := run.updateResource(ctx, res, opts)
		result.Resources = append(result.Resources, rr)
		if err != nil {
			result.Duration = time.Since(start)
			return result, errors.Annotatef(err, "syncing %s", res.Tag())
		}
	}

	result.Duration = time.Since(start)
	run.log.Info().
		Int("resources", len(result.Resources)).
		Int("failed", result.Failed()).
		Dur("duration", result.Duration).
		Bool("dry_run", opts.DryRun).
		Msg("Sync finished")
	return result, nil
}

func (u *Updater) preloadSkipped(ctx context.Context, opts UpdateOptions) error {
	var since int64
	if opts.Since != nil {
		since = *opts.Since
	}
	for _, tag := range opts.Skip {
		if !resource.IsTag(tag) {
			continue
		}
		u.log.Debug().Str("resource", tag).Int64("since", since).Msg("Loading skipped resource")
		if err := u.fetcher.Load(ctx, tag, since, false, false); err != nil {
			return errors.Annotatef(err, "loading skipped %s", tag)
		}
	}
	return nil
}

func (u *Updater) updateResource(ctx context.Context, res resource.Resource, opts UpdateOptions) (ResourceResult, error) {
	start := time.Now()
	rr := ResourceResult{Tag: res.Tag()}
	log := u.log.With().Str("resource", res.Tag()).Logger()

	c, err := u.backend.Concrete(res)
	if err != nil {
		return rr, err
	}

	var since int64
	if opts.Since != nil {
		since = *opts.Since
	} else if since, err = u.backend.LastChange(ctx, c); err != nil {
		return rr, err
	}

	initialPrivate := false
	if opts.FetchPrivate {
		fetched, err := PrivateDataFetched(ctx, u.backend, res)
		if err != nil {
			return rr, err
		}
		initialPrivate = !fetched
	}

	loadSince := int64(0)
	if since > 0 {
		loadSince = since + 1
	}
	if err := u.fetcher.Load(ctx, res.Tag(), loadSince, opts.FetchPrivate, initialPrivate); err != nil {
		return rr, err
	}
	entries, err := u.fetcher.Entries(ctx, res.Tag())
	if err != nil {
		return rr, err
	}
	rr.Entries = len(entries)
	rr.Mode = ModeIncremental
	if since == 0 {
		rr.Mode = ModeInitial
	}
	log.Info().Int("entries", len(entries)).Str("mode", rr.Mode).Msg("Processing objects")

	err = u.backend.Atomic(ctx, func(tx backend.Backend) error {
		tu := u.withBackend(tx).withLogger(log)
		var err error
		if rr.Mode == ModeInitial {
			rr.Synced, rr.Failed, err = tu.handleInitialSync(ctx, res, entries)
		} else {
			rr.Synced, rr.Failed, err = tu.handleIncrementalSync(ctx, res, entries)
		}
		if err != nil {
			return err
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		log.Info().Int("synced", rr.Synced).Msg("Dry run, rolled back")
		err = nil
	}
	rr.Duration = time.Since(start)
	if err != nil {
		return rr, err
	}

	if !opts.DryRun {
		metrics.ObjectsSynced.WithLabelValues(res.Tag(), rr.Mode).Add(float64(rr.Synced))
		metrics.RecordResourceSync(res.Tag(), rr.Duration)
	}
	log.Info().Int("synced", rr.Synced).Int("failed", rr.Failed).Dur("duration", rr.Duration).Msg("Resource synced")
	return rr, nil
}

// fail records a row-level failure, or returns err when it is fatal.
func (u *Updater) fail(res resource.Resource, row resource.Row, err error) error {
	if IsFatal(err) {
		return err
	}
	pk, _ := row.ID()
	u.log.Error().Err(err).Str("resource", res.Tag()).Int64("pk", pk).Msg("Failed to sync object")
	metrics.SyncFailures.WithLabelValues(res.Tag()).Inc()
	if lerr := u.failed.Add(FailedEntry{Resource: res.Tag(), PK: pk, Error: err.Error()}); lerr != nil {
		u.log.Warn().Err(lerr).Msg("Could not record failed entry")
	}
	return nil
}

// handleInitialSync materializes every row and stores the clean objects in
// one bulk insert. Rows salvaged through collision resolution are
// materialized again and saved one by one.
func (u *Updater) handleInitialSync(ctx context.Context, res resource.Resource, entries []resource.Row) (synced, failed int, err error) {
	c, err := u.backend.Concrete(res)
	if err != nil {
		return 0, 0, err
	}

	var (
		objs  []backend.Object
		rows  []resource.Row
		retry []resource.Row
	)
	for _, row := range entries {
		obj, needsRetry, err := u.CreateObject(ctx, res, row)
		if err != nil {
			if err := u.fail(res, row, err); err != nil {
				return synced, failed, err
			}
			failed++
			continue
		}
		if needsRetry {
			retry = append(retry, row)
			continue
		}
		objs = append(objs, obj)
		rows = append(rows, row)
	}

	if err := u.backend.BulkCreate(ctx, c, objs); err != nil {
		if IsFatal(err) {
			return synced, failed, err
		}
		u.log.Warn().Err(err).Int("objects", len(objs)).Msg("Bulk create failed, saving one by one")
		for i, obj := range objs {
			if err := u.backend.Save(ctx, obj); err != nil {
				if err := u.fail(res, rows[i], err); err != nil {
					return synced, failed, err
				}
				failed++
				continue
			}
			synced++
		}
	} else {
		synced += len(objs)
	}

	for _, row := range retry {
		obj, _, err := u.CreateObject(ctx, res, row)
		if err == nil {
			err = u.backend.Save(ctx, obj)
		}
		if err != nil {
			if err := u.fail(res, row, err); err != nil {
				return synced, failed, err
			}
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// handleIncrementalSync applies changed rows. Stored objects are updated in
// place, so rows pointing at them keep their references.
func (u *Updater) handleIncrementalSync(ctx context.Context, res resource.Resource, entries []resource.Row) (synced, failed int, err error) {
	for _, row := range entries {
		if err := u.applyRow(ctx, res, row); err != nil {
			if err := u.fail(res, row, err); err != nil {
				return synced, failed, err
			}
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (u *Updater) applyRow(ctx context.Context, res resource.Resource, row resource.Row) error {
	pk, ok := row.ID()
	if !ok {
		return errors.NotValidf("%s row without id", res.Tag())
	}
	c, err := u.backend.Concrete(res)
	if err != nil {
		return err
	}

	_, err = u.backend.Object(ctx, c, pk)
	switch {
	case err == nil:
		obj, _, err := u.CreateObject(ctx, res, row)
		if err != nil {
			return err
		}
		return u.CopyObject(ctx, obj)
	case errors.Is(err, errors.NotFound):
		obj, _, err := u.CreateObject(ctx, res, row)
		if err != nil {
			return err
		}
		return u.backend.Save(ctx, obj)
	}
	return err
}

// UpdateOne fetches res/pk from the API, bypassing loaded entries, and
// stores it over the local copy or as a new object. depth is ignored;
// related objects are always resolved.
func (u *Updater) UpdateOne(ctx context.Context, res resource.Resource, pk int64, depth int) error {
	if depth != 0 {
		u.log.Warn().Int("depth", depth).Msg("UpdateOne: depth is not used and will be removed")
	}
	row, err := u.fetcher.Get(ctx, res.Tag(), pk, 0, true)
	if err != nil {
		return err
	}
	obj, _, err := u.CreateObject(ctx, res, row)
	if err != nil {
		return err
	}
	err = u.CopyObject(ctx, obj)
	if errors.Is(err, errors.NotFound) {
		err = u.backend.Save(ctx, obj)
	}
	if err != nil {
		return err
	}
	metrics.ObjectsSynced.WithLabelValues(res.Tag(), ModeSingle).Inc()
	return nil
}

// CopyObject copies every field of fresh onto the stored object with the
// same id, then validates and saves it. Many-relations refuse direct
// assignment and are carried over by the backend on save.
func (u *Updater) CopyObject(ctx context.Context, fresh backend.Object) error {
	c, err := u.backend.ConcreteOf(fresh)
	if err != nil {
		return err
	}
	stored, err := u.backend.Object(ctx, c, fresh.GetID())
	if err != nil {
		return err
	}
	for _, f := range u.backend.Fields(c) {
		v, err := u.backend.GetField(fresh, f.Name)
		if err != nil {
			return err
		}
		if err := u.backend.SetField(stored, f.Name, v); err != nil {
			if errors.Is(err, backend.ErrDirectAssignment) {
				continue
			}
			return err
		}
	}
	if err := u.CleanObject(ctx, stored); err != nil {
		return err
	}
	return u.backend.Save(ctx, stored)
}

// CleanObject validates obj, tolerating complaints about blank values.
func (u *Updater) CleanObject(ctx context.Context, obj backend.Object) error {
	err := u.backend.Clean(ctx, obj)
	if err == nil {
		return nil
	}
	if verr, ok := backend.AsValidationError(err); ok && verr.OnlyBlank() {
		return nil
	}
	return err
}
