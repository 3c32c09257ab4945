// Package cache wires components A-G into the single entry point external
// collaborators use (§6): one Cache per application, constructed from a
// Config describing identity, interfaces, connection field configuration,
// and a transport.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/samsheth/graphcache/connection"
	"github.com/samsheth/graphcache/graph"
	"github.com/samsheth/graphcache/logger"
	"github.com/samsheth/graphcache/normalize"
	"github.com/samsheth/graphcache/operation"
	"github.com/samsheth/graphcache/optimistic"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/record"
	"github.com/samsheth/graphcache/transport"
)

// Config recognizes the options listed in §6.
type Config struct {
	Keys        map[string]graph.KeyFunc
	Interfaces  map[string][]string
	Connections map[string]map[string]plan.ConnectionFieldConfig
	Transport   transport.Transport

	// HydrationTimeout is the default suspension window Hydrate uses when
	// a call doesn't pass its own HydrateOptions.Timeout.
	// SuspensionTimeout caps that window regardless of what a call site
	// requests, so one misconfigured Hydrate call can't wedge the cache
	// into skipping the network indefinitely.
	HydrationTimeout  time.Duration
	SuspensionTimeout time.Duration

	WindowArgs []string

	Log logger.Logger
}

// Cache is the root object applications construct. It owns the graph store,
// the optimistic overlay, the canonical connection engine, the normalizer,
// and the operation pipeline, and exposes the SSR and plan-policy contracts
// named in §6.
type Cache struct {
	store  *graph.Store
	conn   *connection.Engine
	layer  *optimistic.Layer
	writer *normalize.Writer
	pipe   *operation.Pipeline
	log    logger.Logger

	suspensionTimeout time.Duration
	hydrationTimeout  time.Duration

	mu           sync.Mutex
	suspendUntil time.Time
}

// New constructs a Cache from cfg.
func New(cfg Config) *Cache {
	log := cfg.Log
	if log == nil {
		log = logger.New()
	}

	store := graph.New(graph.Config{Keys: cfg.Keys, Interfaces: cfg.Interfaces})

	c := &Cache{
		store:             store,
		log:               log,
		suspensionTimeout: cfg.SuspensionTimeout,
		hydrationTimeout:  cfg.HydrationTimeout,
	}

	// Both the canonical engine and the optimistic layer notify the same
	// store watchers when their state shifts visibly (§4.5.1, §5).
	notify := store.Notify

	c.conn = connection.New(store, log, notify)
	c.layer = optimistic.New(notify)
	c.writer = normalize.New(store, c.conn)

	planOpt := plan.Options{Connections: cfg.Connections, WindowArgs: cfg.WindowArgs}
	c.pipe = operation.New(store, c.conn, c.layer, c.writer, cfg.Transport, log, planOpt)
	c.pipe.SetHydrationGuard(c.IsHydrating)

	return c
}

// ExecuteQuery delegates to the operation pipeline (§4.7).
func (c *Cache) ExecuteQuery(ctx context.Context, req operation.QueryRequest) (*operation.Future, error) {
	return c.pipe.ExecuteQuery(ctx, req)
}

// ExecuteMutation delegates to the operation pipeline.
func (c *Cache) ExecuteMutation(ctx context.Context, req operation.MutationRequest) (*operation.Future, error) {
	return c.pipe.ExecuteMutation(ctx, req)
}

// ExecuteSubscription delegates to the operation pipeline.
func (c *Cache) ExecuteSubscription(ctx context.Context, req operation.SubscriptionRequest) (*operation.SubscriptionHandle, error) {
	return c.pipe.ExecuteSubscription(ctx, req)
}

// WatchQuery delegates to the operation pipeline.
func (c *Cache) WatchQuery(req operation.WatchRequest) (*operation.WatchHandle, error) {
	return c.pipe.WatchQuery(req)
}

// Keys returns every record-id currently held by the graph.
func (c *Cache) Keys() []record.ID {
	return c.store.Keys()
}

// GetRecord exposes direct record reads for tooling/debugging.
func (c *Cache) GetRecord(id record.ID) (record.Snapshot, bool) {
	return c.store.GetRecord(id)
}

// Dehydration is the wire shape dehydrate() hands to SSR callers: an
// ordered list of (id, snapshot) pairs, ready to round-trip through Hydrate.
type Dehydration struct {
	Records []graph.RecordPair
}

// Dehydrate serializes every stored record for SSR handoff (§6).
func (c *Cache) Dehydrate() Dehydration {
	return Dehydration{Records: c.store.Dehydrate()}
}

// HydrateOptions configures one Hydrate call. A zero Timeout falls back to
// the Cache's configured HydrationTimeout, which SuspensionTimeout then caps.
type HydrateOptions struct {
	Timeout time.Duration
}

// Hydrate clears the graph and restores it from a prior Dehydrate call,
// then marks the cache as hydrating for the stated (or configured)
// suspension window so cache-first initial reads don't redundantly refetch
// what the server already rendered (§6).
func (c *Cache) Hydrate(d Dehydration, opts HydrateOptions) error {
	if err := c.store.Hydrate(d.Records); err != nil {
		return err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.hydrationTimeout
	}
	if c.suspensionTimeout > 0 && timeout > c.suspensionTimeout {
		timeout = c.suspensionTimeout
	}

	c.mu.Lock()
	c.suspendUntil = time.Now().Add(timeout)
	c.mu.Unlock()

	c.log.Info("cache: hydrated", "records", len(d.Records), "suspend_for", timeout)
	return nil
}

// IsHydrating reports whether the post-hydrate suspension window is still
// open.
func (c *Cache) IsHydrating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.suspendUntil)
}
