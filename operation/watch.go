package operation

import (
	"sync"

	"github.com/samsheth/graphcache/graph"
	"github.com/samsheth/graphcache/materialize"
)

// WatchRequest configures one WatchQuery call.
type WatchRequest struct {
	Query     string
	Variables map[string]interface{}
	OnUpdate  func(Result)
}

// WatchHandle is a live, self-updating view over one plan+variables pair.
// It re-subscribes to the graph whenever its dependency set changes across
// a Refresh, so edits to records the current materialization didn't
// previously touch (e.g. a field that only appears once a connection page
// loads) still trigger future notifications.
type WatchHandle struct {
	p    *Pipeline
	live *materialize.LiveResult

	mu       sync.Mutex
	handle   *graph.Handle
	stopped  bool
	onUpdate func(Result)
}

// WatchQuery compiles req.Query, materializes it against the current cache
// state, and keeps it live: req.OnUpdate fires every time a relevant write
// changes the materialized result.
func (p *Pipeline) WatchQuery(req WatchRequest) (*WatchHandle, error) {
	pl, err := p.getPlan(req.Query)
	if err != nil {
		return nil, err
	}

	live, err := materialize.NewLive(p.store, p.layer, pl, req.Variables)
	if err != nil {
		return nil, err
	}

	w := &WatchHandle{p: p, live: live, onUpdate: req.OnUpdate}
	w.resubscribe()
	return w, nil
}

func (w *WatchHandle) resubscribe() {
	if w.handle != nil {
		w.handle.Unsubscribe()
	}
	w.handle = w.p.store.Subscribe(w.live.Dependencies(), w.onNotify)
}

func (w *WatchHandle) onNotify() {
	changed, err := w.live.Refresh()
	if err != nil {
		return
	}

	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	// The access set (and therefore which keys merit a subscription) can
	// shift even when the rendered data didn't change, e.g. a connection
	// page grew without altering already-read fields.
	w.resubscribe()

	if changed && w.onUpdate != nil {
		w.onUpdate(Result{Data: w.live.Data(), FromCache: true})
	}
}

// Update applies a partial document directly into the materialized plan's
// backing records, as if it had arrived from the network, without issuing a
// request — used to splice in optimistic or locally-computed data for the
// exact plan/vars this handle watches.
func (w *WatchHandle) Update(partial map[string]interface{}) error {
	changed, err := w.p.writer.WriteDocument(w.live.Plan(), w.live.Vars(), partial)
	if err != nil {
		return err
	}
	w.p.store.Notify(changed)
	return nil
}

// Unsubscribe stops this watch from receiving further notifications.
func (w *WatchHandle) Unsubscribe() {
	w.mu.Lock()
	w.stopped = true
	h := w.handle
	w.mu.Unlock()
	if h != nil {
		h.Unsubscribe()
	}
}
