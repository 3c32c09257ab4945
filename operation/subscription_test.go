package operation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/operation"
	"github.com/samsheth/graphcache/transport"
)

const onPostLikedSub = `subscription OnPostLiked($id: ID!) { postLiked(id: $id) { id likes } }`

func TestExecuteSubscription_NormalizesEachMessage(t *testing.T) {
	stub := transport.NewStub()
	vars := map[string]interface{}{"id": "1"}
	req := transport.Request{Query: onPostLikedSub, Variables: vars}
	stub.Enqueue(req, transport.Response{
		Data: map[string]interface{}{"postLiked": map[string]interface{}{"__typename": "Post", "id": "1", "likes": 1}},
	})
	stub.Enqueue(req, transport.Response{
		Data: map[string]interface{}{"postLiked": map[string]interface{}{"__typename": "Post", "id": "1", "likes": 2}},
	})

	p := newPipeline(t, transport.Transport{HTTP: stub, Subscription: stub})

	received := make(chan int, 2)
	handle, err := p.ExecuteSubscription(context.Background(), operation.SubscriptionRequest{
		Query:     onPostLikedSub,
		Variables: vars,
		OnData: func(res operation.Result) {
			received <- res.Data["postLiked"].(map[string]interface{})["likes"].(int)
		},
	})
	require.NoError(t, err)
	defer handle.Unsubscribe()

	var got []int
	for i := 0; i < 2; i++ {
		select {
		case v := <-received:
			got = append(got, v)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for subscription message")
		}
	}
	require.Equal(t, []int{1, 2}, got)
}

func TestExecuteSubscription_NoTransportConfigured(t *testing.T) {
	stub := transport.NewStub()
	p := newPipeline(t, transport.Transport{HTTP: stub})

	_, err := p.ExecuteSubscription(context.Background(), operation.SubscriptionRequest{
		Query: onPostLikedSub, Variables: map[string]interface{}{"id": "1"},
	})
	require.Error(t, err)
}
