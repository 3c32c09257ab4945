package operation

import (
	"context"
	"sync"

	"github.com/samsheth/graphcache/cacheerr"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/transport"
)

// inflightCall de-duplicates concurrent executions sharing the same
// makeSignature(strict, vars) (§4.7): one network round trip, one
// normalization, every caller resolves from it.
type inflightCall struct {
	mu      sync.Mutex
	refs    int
	done    bool
	outcome Outcome
	waiters []chan Outcome
	cancel  context.CancelFunc
}

func (c *inflightCall) addWaiter() chan Outcome {
	ch := make(chan Outcome, 1)
	c.mu.Lock()
	if c.done {
		ch <- c.outcome
	} else {
		c.waiters = append(c.waiters, ch)
		c.refs++
	}
	c.mu.Unlock()
	return ch
}

func (c *inflightCall) finish(o Outcome) {
	c.mu.Lock()
	c.done = true
	c.outcome = o
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w <- o
	}
}

// release drops one caller's reference; cancelling the transport only when
// the last caller has gone (§5's cancellation policy).
func (c *inflightCall) release() {
	c.mu.Lock()
	c.refs--
	cancel := c.refs <= 0 && !c.done
	fn := c.cancel
	c.mu.Unlock()
	if cancel && fn != nil {
		fn()
	}
}

func (p *Pipeline) fetchAndNormalize(ctx context.Context, pl *plan.Plan, req QueryRequest) (*Future, error) {
	sig := pl.MakeSignature(plan.ModeStrict, req.Variables)

	p.inflightMu.Lock()
	call, exists := p.inflight[sig]
	if !exists {
		netCtx, cancel := context.WithCancel(context.Background())
		call = &inflightCall{cancel: cancel}
		p.inflight[sig] = call
		p.inflightMu.Unlock()
		p.log.Debug("operation: network fetch started", "signature", sig)
		go p.runNetwork(netCtx, sig, pl, req, call)
	} else {
		p.inflightMu.Unlock()
		p.log.Debug("operation: joined inflight fetch", "signature", sig)
	}

	waiterCh := call.addWaiter()
	fut := &Future{ch: make(chan Outcome, 1), cancelFn: call.release}

	go func() {
		o := <-waiterCh
		if req.Policy == CacheAndNetwork && req.OnNetworkData != nil {
			req.OnNetworkData(o.Result)
		}
		if o.Err != nil && req.OnError != nil {
			req.OnError(o.Err)
		}
		fut.ch <- o
	}()

	return fut, nil
}

func (p *Pipeline) runNetwork(ctx context.Context, sig string, pl *plan.Plan, req QueryRequest, call *inflightCall) {
	resp, err := p.tport.HTTP.Execute(ctx, transport.Request{Query: pl.NetworkQuery, Variables: req.Variables})

	p.inflightMu.Lock()
	if p.inflight[sig] == call {
		delete(p.inflight, sig)
	}
	p.inflightMu.Unlock()

	if ctx.Err() != nil {
		// Every caller released its reference before this reply arrived
		// (the cancellation that triggers is call.release's, once refs hit
		// zero), so the request was superseded. The reply is discarded
		// instead of being written into the base graph, and the call's
		// future resolves with a StaleResponseErr.
		p.log.Debug("operation: discarding stale response", "signature", sig)
		call.finish(Outcome{Err: &cacheerr.StaleResponseErr{Signature: sig}})
		return
	}

	if err != nil {
		p.log.Warn("operation: network fetch failed", "signature", sig, "err", err)
		call.finish(Outcome{Err: &cacheerr.TransportErr{Cause: err}})
		return
	}

	var partials []cacheerr.PartialError
	for _, e := range resp.Errors {
		partials = append(partials, cacheerr.PartialError{Message: e.Message, Path: e.Path})
	}
	if resp.Data == nil {
		if len(partials) > 0 {
			call.finish(Outcome{Err: &cacheerr.CombinedErr{Errors: partials}})
			return
		}
		call.finish(Outcome{Result: Result{Data: map[string]interface{}{}}})
		return
	}

	changed, err := p.writer.WriteDocument(pl, req.Variables, resp.Data)
	if err != nil {
		call.finish(Outcome{Err: err})
		return
	}
	p.store.Notify(changed)

	call.finish(Outcome{Result: Result{Data: resp.Data, Errors: partials}})
}
