// Package connection implements the Canonical Connection Engine (component
// E): it maintains a unified, paginated view per connection field from
// per-page normalizer writes, using splice-at-cursor semantics for forward
// and backward pagination and wholesale replacement for page-mode
// connections. This is the load-bearing algorithm of the cache (spec §4.5).
package connection

import (
	"sync"

	"github.com/samsheth/graphcache/graph"
	"github.com/samsheth/graphcache/logger"
	"github.com/samsheth/graphcache/record"
)

// PageInfoValues is the already-resolved pageInfo of one fetched page
// (cursor fallbacks per §4.3 have already been applied by the normalizer).
type PageInfoValues struct {
	StartCursor     string
	EndCursor       string
	HasNextPage     bool
	HasPreviousPage bool
}

// PageWrite is what the normalizer hands the canonical engine after writing
// one concrete page: the ordered ids of the edge sub-records it just wrote,
// their cursors (parallel to EdgeIDs), the page's resolved pageInfo, and any
// extra non-connection fields on the connection object (totalCount, etc).
type PageWrite struct {
	EdgeIDs  []record.ID
	Cursors  []string
	PageInfo PageInfoValues
	Extra    record.Snapshot
}

// Origin of a page write, recorded in meta for diagnostics.
type Origin string

const (
	OriginNetwork Origin = "network"
	OriginCache   Origin = "cache"
)

// cursorClass classifies a page write by which paging argument was present.
type cursorClass int

const (
	classLeader cursorClass = iota
	classForward
	classBackward
)

// Request bundles everything one updateConnection/mergeFromCache call needs.
type Request struct {
	CanonicalKey record.ID
	PageKey      record.ID
	After        *string // the resolved "after" argument value, if any
	Before       *string // the resolved "before" argument value, if any
	Page         PageWrite
}

// LeaderRefetchMode selects how a leader refetch treats prior multi-page
// canonical state. ResetOnLeaderRefetch is the spec-mandated default (§4.5.3);
// MergeOrigins mirrors the historical behavior noted as an open question in
// §9 and is provided only for callers that must mirror it.
type LeaderRefetchMode int

const (
	ResetOnLeaderRefetch LeaderRefetchMode = iota
	MergeOrigins
)

// Engine maintains canonical connection records via graph.Store.PutRecord
// exclusively, per §5's shared-resource policy.
type Engine struct {
	mu     sync.Mutex
	store  *graph.Store
	log    logger.Logger
	replay func(map[record.ID]struct{})

	LeaderRefetchMode LeaderRefetchMode
}

// New creates an Engine. replay is invoked after every canonical update with
// the set of touched keys; the owning Cache wires it to graph.Store.Notify,
// so watchers re-read the canonical record with the optimistic overlay
// applied at read time.
func New(store *graph.Store, log logger.Logger, replay func(map[record.ID]struct{})) *Engine {
	return &Engine{store: store, log: log, replay: replay}
}

// UpdateConnection merges a freshly (network-origin) written page into the
// canonical connection record.
func (e *Engine) UpdateConnection(mode PlanConnectionMode, req Request) (map[record.ID]struct{}, error) {
	return e.merge(mode, req, OriginNetwork)
}

// MergeFromCache merges a cache-origin (prewarm/replay) page the same way,
// recording Origin=cache for diagnostics. Correctness does not depend on the
// order cache pages are replayed in (§4.5.5): splice-at-cursor is
// position-stable given consistent cursors.
func (e *Engine) MergeFromCache(mode PlanConnectionMode, req Request) (map[record.ID]struct{}, error) {
	return e.merge(mode, req, OriginCache)
}

// PlanConnectionMode mirrors plan.ConnectionMode without importing the plan
// package, keeping connection's dependency graph leaf-like; normalize.go
// translates plan.ConnectionMode into this type at the call site.
type PlanConnectionMode int

const (
	ModeInfinite PlanConnectionMode = iota
	ModePage
)

func (e *Engine) merge(mode PlanConnectionMode, req Request, origin Origin) (map[record.ID]struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == ModePage {
		return e.mergePage(req)
	}
	return e.mergeInfinite(req, origin)
}

func classify(req Request) cursorClass {
	switch {
	case req.After != nil:
		return classForward
	case req.Before != nil:
		return classBackward
	default:
		return classLeader
	}
}

func (e *Engine) notifyReplay(keys map[record.ID]struct{}) {
	if e.replay != nil {
		e.replay(keys)
	}
}
