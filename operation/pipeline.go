// Package operation implements the Operation Pipeline (component G): the
// four cache policies, inflight de-duplication, and watcher dispatch that
// sit between the UI adapter and the rest of the cache.
package operation

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samsheth/graphcache/cacheerr"
	"github.com/samsheth/graphcache/connection"
	"github.com/samsheth/graphcache/graph"
	"github.com/samsheth/graphcache/logger"
	"github.com/samsheth/graphcache/materialize"
	"github.com/samsheth/graphcache/normalize"
	"github.com/samsheth/graphcache/optimistic"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/transport"
)

// CachePolicy selects how ExecuteQuery resolves against the cache and
// network (§4.7).
type CachePolicy int

const (
	CacheOnly CachePolicy = iota
	CacheFirst
	NetworkOnly
	CacheAndNetwork
)

// Result is one delivered value: a materialized data object, any GraphQL
// errors attached to the response that produced it, and whether it came
// from the cache or the network.
type Result struct {
	Data      map[string]interface{}
	Errors    []cacheerr.PartialError
	FromCache bool
}

// QueryRequest configures one ExecuteQuery call.
type QueryRequest struct {
	Query         string
	Variables     map[string]interface{}
	Policy        CachePolicy
	OnCacheData   func(res Result, willFetchFromNetwork bool)
	OnNetworkData func(res Result)
	OnError       func(error)
}

// Pipeline wires components A-F behind the four cache policies.
type Pipeline struct {
	store   *graph.Store
	conn    *connection.Engine
	layer   *optimistic.Layer
	writer  *normalize.Writer
	tport   transport.Transport
	log     logger.Logger
	planOpt plan.Options

	planMu    sync.Mutex
	planCache map[string]*plan.Plan

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall

	// isHydrating, when set, reports whether the owning Cache is within its
	// post-hydrate suspension window (§6): CacheAndNetwork treats a complete
	// cache read as sufficient during that window instead of also firing the
	// network leg, the same way CacheFirst already does.
	isHydrating func() bool
}

// SetHydrationGuard wires fn as the pipeline's isHydrating check; the owning
// Cache calls this once at construction.
func (p *Pipeline) SetHydrationGuard(fn func() bool) {
	p.isHydrating = fn
}

// New creates a Pipeline.
func New(store *graph.Store, conn *connection.Engine, layer *optimistic.Layer, writer *normalize.Writer, tport transport.Transport, log logger.Logger, planOpt plan.Options) *Pipeline {
	return &Pipeline{
		store:     store,
		conn:      conn,
		layer:     layer,
		writer:    writer,
		tport:     tport,
		log:       log,
		planOpt:   planOpt,
		planCache: map[string]*plan.Plan{},
		inflight:  map[string]*inflightCall{},
	}
}

func (p *Pipeline) getPlan(query string) (*plan.Plan, error) {
	p.planMu.Lock()
	defer p.planMu.Unlock()
	if pl, ok := p.planCache[query]; ok {
		return pl, nil
	}
	pl, err := plan.Compile(query, p.planOpt)
	if err != nil {
		return nil, cacheerr.NewPlanErr("%v", err)
	}
	p.planCache[query] = pl
	p.log.Debug("operation: compiled plan", "id", pl.ID, "dump", pl.DebugDump())
	return pl, nil
}

// Outcome is the terminal value of a Future.
type Outcome struct {
	Result Result
	Err    error
}

// Future is a cancellable handle to a pending or resolved execution.
type Future struct {
	ch       chan Outcome
	cancelFn func()
	once     sync.Once
}

// Wait blocks until the execution resolves or ctx is canceled.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case o := <-f.ch:
		return o.Result, o.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel removes this caller from any shared inflight execution (§5): it
// does not cancel the transport if other callers still share it.
func (f *Future) Cancel() {
	f.once.Do(func() {
		if f.cancelFn != nil {
			f.cancelFn()
		}
	})
}

func immediateFuture(o Outcome) *Future {
	ch := make(chan Outcome, 1)
	ch <- o
	return &Future{ch: ch}
}

// ExecuteQuery implements the four cache policies of §4.7.
func (p *Pipeline) ExecuteQuery(ctx context.Context, req QueryRequest) (*Future, error) {
	pl, err := p.getPlan(req.Query)
	if err != nil {
		return nil, err
	}

	reader := materialize.New(p.store, p.layer)

	switch req.Policy {
	case CacheOnly:
		data, complete, err := reader.Read(pl, req.Variables)
		if err != nil {
			return nil, err
		}
		if !complete {
			return nil, &cacheerr.CacheMissErr{Signature: pl.MakeSignature(plan.ModeStrict, req.Variables)}
		}
		return immediateFuture(Outcome{Result: Result{Data: data, FromCache: true}}), nil

	case CacheFirst:
		data, complete, err := reader.Read(pl, req.Variables)
		if err != nil {
			return nil, err
		}
		if complete {
			res := Result{Data: data, FromCache: true}
			if req.OnCacheData != nil {
				req.OnCacheData(res, false)
			}
			return immediateFuture(Outcome{Result: res}), nil
		}
		return p.fetchAndNormalize(ctx, pl, req)

	case NetworkOnly:
		return p.fetchAndNormalize(ctx, pl, req)

	case CacheAndNetwork:
		if p.isHydrating != nil && p.isHydrating() {
			data, complete, err := reader.Read(pl, req.Variables)
			if err != nil {
				return nil, err
			}
			if complete {
				res := Result{Data: data, FromCache: true}
				if req.OnCacheData != nil {
					req.OnCacheData(res, false)
				}
				return immediateFuture(Outcome{Result: res}), nil
			}
		}

		// The cache read and the network dispatch share nothing and can run
		// concurrently: an errgroup joins them instead of sequencing a cache
		// read the network fetch doesn't actually depend on.
		var (
			data     map[string]interface{}
			complete bool
			fut      *Future
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			data, complete, err = reader.Read(pl, req.Variables)
			return err
		})
		g.Go(func() error {
			var err error
			fut, err = p.fetchAndNormalize(gctx, pl, req)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if complete && req.OnCacheData != nil {
			req.OnCacheData(Result{Data: data, FromCache: true}, true)
		}
		return fut, nil

	default:
		return nil, cacheerr.NewPlanErr("unknown cache policy %d", req.Policy)
	}
}
