package operation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/cacheerr"
	"github.com/samsheth/graphcache/operation"
	"github.com/samsheth/graphcache/transport"
)

// slowHTTP blocks Execute until release is signaled, simulating a network
// reply that arrives only after every caller has already given up on it.
type slowHTTP struct {
	release chan struct{}
	resp    transport.Response
}

func (s *slowHTTP) Execute(ctx context.Context, req transport.Request) (transport.Response, error) {
	<-s.release
	return s.resp, nil
}

func TestExecuteQuery_StaleResponseDiscardedAfterCancel(t *testing.T) {
	vars := map[string]interface{}{"id": "1"}
	http := &slowHTTP{
		release: make(chan struct{}),
		resp: transport.Response{
			Data: map[string]interface{}{
				"hero": map[string]interface{}{"__typename": "Character", "id": "1", "name": "Late"},
			},
		},
	}
	p := newPipeline(t, transport.Transport{HTTP: http})

	fut, err := p.ExecuteQuery(context.Background(), operation.QueryRequest{
		Query: heroQuery, Variables: vars, Policy: operation.NetworkOnly,
	})
	require.NoError(t, err)

	// The only caller gives up before the network reply arrives.
	fut.Cancel()
	close(http.release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = fut.Wait(ctx)
	require.Error(t, err)
	var stale *cacheerr.StaleResponseErr
	require.ErrorAs(t, err, &stale)

	// The discarded reply must never have reached the base graph.
	_, err = p.ExecuteQuery(context.Background(), operation.QueryRequest{
		Query: heroQuery, Variables: vars, Policy: operation.CacheOnly,
	})
	require.Error(t, err)
}
