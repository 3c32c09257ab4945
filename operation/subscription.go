package operation

import (
	"context"

	"github.com/samsheth/graphcache/cacheerr"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/transport"
)

// SubscriptionRequest configures one ExecuteSubscription call.
type SubscriptionRequest struct {
	Query     string
	Variables map[string]interface{}
	OnData    func(Result)
	OnError   func(error)
}

// SubscriptionHandle lets a caller stop consuming a live subscription.
type SubscriptionHandle struct {
	cancel context.CancelFunc
}

// Unsubscribe stops the subscription's background consumer.
func (h *SubscriptionHandle) Unsubscribe() {
	h.cancel()
}

// ExecuteSubscription opens req over p.tport.Subscription and normalizes
// every message it delivers into the base graph, notifying watchers as it
// goes.
func (p *Pipeline) ExecuteSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionHandle, error) {
	if p.tport.Subscription == nil {
		return nil, cacheerr.NewPlanErr("operation: no subscription transport configured")
	}

	pl, err := p.getPlan(req.Query)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := p.tport.Subscription.Subscribe(subCtx, transport.Request{Query: pl.NetworkQuery, Variables: req.Variables})
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case resp, ok := <-ch:
				if !ok {
					return
				}
				p.handleSubscriptionMessage(pl, req, resp)
			}
		}
	}()

	return &SubscriptionHandle{cancel: cancel}, nil
}

func (p *Pipeline) handleSubscriptionMessage(pl *plan.Plan, req SubscriptionRequest, resp transport.Response) {
	if resp.Error != nil {
		if req.OnError != nil {
			req.OnError(&cacheerr.TransportErr{Cause: resp.Error})
		}
		return
	}

	var partials []cacheerr.PartialError
	for _, e := range resp.Errors {
		partials = append(partials, cacheerr.PartialError{Message: e.Message, Path: e.Path})
	}

	if resp.Data == nil {
		if len(partials) > 0 && req.OnError != nil {
			req.OnError(&cacheerr.CombinedErr{Errors: partials})
		}
		return
	}

	changed, err := p.writer.WriteDocument(pl, req.Variables, resp.Data)
	if err != nil {
		if req.OnError != nil {
			req.OnError(err)
		}
		return
	}
	p.store.Notify(changed)

	if req.OnData != nil {
		req.OnData(Result{Data: resp.Data, Errors: partials})
	}
}
