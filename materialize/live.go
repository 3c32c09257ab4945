package materialize

import (
	"github.com/kylelemons/godebug/pretty"

	"github.com/samsheth/graphcache/optimistic"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/record"
)

// LiveResult is the redesigned (§9) replacement for proxy-based lazy
// materialization: instead of instrumenting the returned data with access
// tracking proxies, it records the access set (every record-id consulted)
// up front during Read, then recomputes and diffs on demand via Refresh.
type LiveResult struct {
	store storeReader
	layer *optimistic.Layer

	plan *plan.Plan
	vars map[string]interface{}

	data     map[string]interface{}
	complete bool
	deps     map[record.ID]struct{}
}

// NewLive materializes p against vars and returns a LiveResult tracking
// every record consulted while doing so.
func NewLive(store storeReader, layer *optimistic.Layer, p *plan.Plan, vars map[string]interface{}) (*LiveResult, error) {
	lr := &LiveResult{store: store, layer: layer, plan: p, vars: vars}
	if err := lr.recompute(); err != nil {
		return nil, err
	}
	return lr, nil
}

func (lr *LiveResult) recompute() error {
	r := &Reader{store: lr.store, layer: lr.layer, track: map[record.ID]struct{}{}}
	data, complete, err := r.Read(lr.plan, lr.vars)
	if err != nil {
		return err
	}
	lr.data = data
	lr.complete = complete
	lr.deps = r.track
	return nil
}

// Plan returns the compiled plan this result materializes.
func (lr *LiveResult) Plan() *plan.Plan { return lr.plan }

// Vars returns the variables this result was last materialized with.
func (lr *LiveResult) Vars() map[string]interface{} { return lr.vars }

// Data returns the last materialized snapshot.
func (lr *LiveResult) Data() map[string]interface{} { return lr.data }

// Complete reports whether the last materialization was a full cache hit.
func (lr *LiveResult) Complete() bool { return lr.complete }

// Dependencies returns the access set from the last materialization: every
// record-id a watcher holding this result should subscribe to.
func (lr *LiveResult) Dependencies() map[record.ID]struct{} {
	out := make(map[record.ID]struct{}, len(lr.deps))
	for k := range lr.deps {
		out[k] = struct{}{}
	}
	return out
}

// Refresh recomputes the materialized value and reports whether it changed
// relative to the previous snapshot (by deep structural comparison, not
// identity). On change, Data and Dependencies reflect the new value.
func (lr *LiveResult) Refresh() (bool, error) {
	prev := lr.data
	if err := lr.recompute(); err != nil {
		return false, err
	}
	diff := pretty.Compare(prev, lr.data)
	return diff != "", nil
}
