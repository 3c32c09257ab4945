package operation

import (
	"context"

	"github.com/samsheth/graphcache/cacheerr"
	"github.com/samsheth/graphcache/optimistic"
	"github.com/samsheth/graphcache/record"
	"github.com/samsheth/graphcache/transport"
)

// OptimisticEntityWrite is one entity-scoped optimistic patch applied when a
// mutation is dispatched. Patch values are scalar leaves only: the full
// nested-traversal normalization writeDocument performs against the base
// graph is not reused here, since it writes directly to graph.Store and the
// optimistic surface must stay a transactional overlay that never calls
// putRecord (§5).
type OptimisticEntityWrite struct {
	Typename string
	ID       string
	Patch    map[string]interface{}
}

// MutationRequest configures one ExecuteMutation call.
type MutationRequest struct {
	Query      string
	Variables  map[string]interface{}
	Optimistic []OptimisticEntityWrite
	OnComplete func(Result, error)
}

func scalarSnapshot(patch map[string]interface{}) record.Snapshot {
	out := make(record.Snapshot, len(patch))
	for k, v := range patch {
		out[k] = record.Scalar(v)
	}
	return out
}

// ExecuteMutation compiles req.Query, optionally applies an optimistic
// overlay before the request is sent, executes the mutation, and then
// commits the overlay on success (its transaction stays in the optimistic
// layer) or reverts it on failure.
func (p *Pipeline) ExecuteMutation(ctx context.Context, req MutationRequest) (*Future, error) {
	pl, err := p.getPlan(req.Query)
	if err != nil {
		return nil, err
	}

	var handle *optimistic.Handle
	if len(req.Optimistic) > 0 {
		handle = p.layer.ModifyOptimistic(func(tx *optimistic.TxSurface) {
			for _, w := range req.Optimistic {
				id, err := record.EntityID(w.Typename, w.ID)
				if err != nil {
					continue
				}
				tx.WriteFragment(id, scalarSnapshot(w.Patch))
			}
		})
	}

	fut := &Future{ch: make(chan Outcome, 1)}

	go func() {
		resp, err := p.tport.HTTP.Execute(ctx, transport.Request{Query: pl.NetworkQuery, Variables: req.Variables})

		var outcome Outcome
		switch {
		case err != nil:
			outcome.Err = &cacheerr.TransportErr{Cause: err}
		case resp.Data == nil && len(resp.Errors) > 0:
			var partials []cacheerr.PartialError
			for _, e := range resp.Errors {
				partials = append(partials, cacheerr.PartialError{Message: e.Message, Path: e.Path})
			}
			outcome.Err = &cacheerr.CombinedErr{Errors: partials}
		default:
			changed, werr := p.writer.WriteDocument(pl, req.Variables, resp.Data)
			if werr != nil {
				outcome.Err = werr
				break
			}
			p.store.Notify(changed)
			var partials []cacheerr.PartialError
			for _, e := range resp.Errors {
				partials = append(partials, cacheerr.PartialError{Message: e.Message, Path: e.Path})
			}
			outcome.Result = Result{Data: resp.Data, Errors: partials}
		}

		if handle != nil {
			if outcome.Err != nil {
				handle.Revert()
			} else {
				handle.Commit()
			}
		}
		if req.OnComplete != nil {
			req.OnComplete(outcome.Result, outcome.Err)
		}
		fut.ch <- outcome
	}()

	return fut, nil
}
