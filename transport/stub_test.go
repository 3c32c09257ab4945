package transport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/transport"
)

func TestStub_ExecuteReturnsEnqueuedResponse(t *testing.T) {
	stub := transport.NewStub()
	req := transport.Request{Query: "query Hero { hero { id } }"}
	stub.Enqueue(req, transport.Response{Data: map[string]interface{}{"hero": map[string]interface{}{"id": "1"}}})

	resp, err := stub.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "1", resp.Data["hero"].(map[string]interface{})["id"])
	require.Len(t, stub.Calls(), 1)
}

func TestStub_ExecuteFIFOThenRepeatsLast(t *testing.T) {
	stub := transport.NewStub()
	req := transport.Request{Query: "query Hero { hero { id } }"}
	stub.Enqueue(req, transport.Response{Data: map[string]interface{}{"n": 1}})
	stub.Enqueue(req, transport.Response{Data: map[string]interface{}{"n": 2}})

	resp1, err := stub.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, resp1.Data["n"])

	resp2, err := stub.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, resp2.Data["n"])

	resp3, err := stub.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, resp3.Data["n"])
}

func TestStub_KeyedByQueryAndVariables(t *testing.T) {
	stub := transport.NewStub()
	reqA := transport.Request{Query: "query Hero($id: ID!) { hero(id: $id) { id } }", Variables: map[string]interface{}{"id": "1"}}
	reqB := transport.Request{Query: "query Hero($id: ID!) { hero(id: $id) { id } }", Variables: map[string]interface{}{"id": "2"}}

	stub.Enqueue(reqA, transport.Response{Data: map[string]interface{}{"id": "1"}})
	stub.Enqueue(reqB, transport.Response{Data: map[string]interface{}{"id": "2"}})

	respA, err := stub.Execute(context.Background(), reqA)
	require.NoError(t, err)
	require.Equal(t, "1", respA.Data["id"])

	respB, err := stub.Execute(context.Background(), reqB)
	require.NoError(t, err)
	require.Equal(t, "2", respB.Data["id"])
}

func TestStub_ExecutePropagatesTransportError(t *testing.T) {
	stub := transport.NewStub()
	req := transport.Request{Query: "query Hero { hero { id } }"}
	stub.Enqueue(req, transport.Response{Error: errors.New("boom")})

	_, err := stub.Execute(context.Background(), req)
	require.Error(t, err)
}

func TestStub_SubscribeStreamsThenCloses(t *testing.T) {
	stub := transport.NewStub()
	req := transport.Request{Query: "subscription { onPost { id } }"}
	stub.Enqueue(req, transport.Response{Data: map[string]interface{}{"onPost": map[string]interface{}{"id": "1"}}})
	stub.Enqueue(req, transport.Response{Data: map[string]interface{}{"onPost": map[string]interface{}{"id": "2"}}})

	ch, err := stub.Subscribe(context.Background(), req)
	require.NoError(t, err)

	var ids []string
	for resp := range ch {
		ids = append(ids, resp.Data["onPost"].(map[string]interface{})["id"].(string))
	}
	require.Equal(t, []string{"1", "2"}, ids)
}
