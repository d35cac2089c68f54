// Package syncclient keeps a client-side copy of the board in step with the
// server: status moves apply locally first, sync to the server, and roll back
// if the server refuses; periodic reconciliation repairs any drift, such as a
// promotion to por_dispersar performed by the other authority.
package syncclient

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"creditflow/application"
	"creditflow/status"
)

// reconcileConcurrency bounds parallel per-record fetches during a sweep.
const reconcileConcurrency = 4

// Remote is the server surface the controller syncs against.
type Remote interface {
	Fetch(ctx context.Context, id string) (application.StatusRecord, error)
	FetchAll(ctx context.Context) ([]application.StatusRecord, error)
	Move(ctx context.Context, id string, target status.Status, comment string) (application.StatusRecord, error)
}

// Listener delivers change notifications pushed by the server. A nil Listener
// leaves the controller on polling alone.
type Listener interface {
	Changes(ctx context.Context) (<-chan string, error)
}

// Controller owns the cache and the sync loops.
type Controller struct {
	remote   Remote
	cache    *Cache
	listener Listener
	interval time.Duration
	log      zerolog.Logger
}

func NewController(remote Remote, listener Listener, interval time.Duration, log zerolog.Logger) *Controller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Controller{
		remote:   remote,
		cache:    NewCache(),
		listener: listener,
		interval: interval,
		log:      log,
	}
}

// Cache exposes the local board copy for rendering.
func (c *Controller) Cache() *Cache { return c.cache }

// Load primes the cache from the server.
func (c *Controller) Load(ctx context.Context) error {
	records, err := c.remote.FetchAll(ctx)
	if err != nil {
		return &DriftError{Failed: len(c.cache.IDs()), Err: err}
	}
	for _, rec := range records {
		c.cache.Put(rec)
	}
	return nil
}

// ApplyAndSync moves a card locally, then pushes the move to the server. On
// refusal or transport failure the local move is rolled back and a
// RemoteError returned. A second move for the same id while one is in flight
// is dropped.
func (c *Controller) ApplyAndSync(ctx context.Context, id string, target status.Status, comment string) error {
	before, ok := c.cache.beginMove(id, target)
	if !ok {
		c.log.Debug().Str("application_id", id).Msg("move dropped: unknown id or move already in flight")
		return nil
	}

	rec, err := c.remote.Move(ctx, id, target, comment)
	if err != nil {
		c.cache.rollbackMove(before)
		return &RemoteError{ID: id, Err: err}
	}

	c.cache.settleMove(rec)
	return nil
}

// Reconcile re-fetches every cached record that has no move in flight and
// adopts the server's version. Records the server no longer returns are
// evicted.
func (c *Controller) Reconcile(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	for _, id := range c.cache.IDs() {
		if c.cache.isMoving(id) {
			continue
		}
		id := id
		g.Go(func() error {
			rec, err := c.remote.Fetch(ctx, id)
			if err != nil {
				if errors.Is(err, application.ErrNotFound) {
					c.cache.Remove(id)
					return nil
				}
				return err
			}
			if c.cache.isMoving(id) {
				// A move started while we were fetching; its settle wins.
				return nil
			}
			c.cache.Put(rec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &DriftError{Failed: 1, Err: err}
	}
	return nil
}

// Run reconciles on a ticker and, when a listener is configured, immediately
// re-fetches records named in pushed change notifications. The ticker stays
// on even with a listener: it is the fallback when pushes are missed.
func (c *Controller) Run(ctx context.Context) {
	var changes <-chan string
	if c.listener != nil {
		ch, err := c.listener.Changes(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("change feed unavailable, polling only")
		} else {
			changes = ch
		}
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-changes:
			if !ok {
				changes = nil
				c.log.Warn().Msg("change feed closed, polling only")
				continue
			}
			c.refreshOne(ctx, id)
		case <-ticker.C:
			if err := c.Reconcile(ctx); err != nil {
				c.log.Error().Err(err).Msg("reconcile")
			}
		}
	}
}

func (c *Controller) refreshOne(ctx context.Context, id string) {
	if c.cache.isMoving(id) {
		return
	}
	rec, err := c.remote.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			c.cache.Remove(id)
			return
		}
		c.log.Error().Err(err).Str("application_id", id).Msg("refresh after change notification")
		return
	}
	if !c.cache.isMoving(id) {
		c.cache.Put(rec)
	}
}
