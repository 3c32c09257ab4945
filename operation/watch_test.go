package operation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/operation"
	"github.com/samsheth/graphcache/transport"
)

func TestWatchQuery_FiresOnUpdateForWrite(t *testing.T) {
	stub := transport.NewStub()
	p := newPipeline(t, transport.Transport{HTTP: stub})

	updates := make(chan operation.Result, 2)
	handle, err := p.WatchQuery(operation.WatchRequest{
		Query:     heroQuery,
		Variables: map[string]interface{}{"id": "1"},
		OnUpdate:  func(res operation.Result) { updates <- res },
	})
	require.NoError(t, err)
	defer handle.Unsubscribe()

	require.NoError(t, handle.Update(map[string]interface{}{
		"hero": map[string]interface{}{"__typename": "Character", "id": "1", "name": "Luke"},
	}))

	select {
	case res := <-updates:
		require.Equal(t, "Luke", res.Data["hero"].(map[string]interface{})["name"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch update")
	}

	require.NoError(t, handle.Update(map[string]interface{}{
		"hero": map[string]interface{}{"__typename": "Character", "id": "1", "name": "Han"},
	}))

	select {
	case res := <-updates:
		require.Equal(t, "Han", res.Data["hero"].(map[string]interface{})["name"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second watch update")
	}
}

func TestWatchQuery_UnsubscribeStopsFurtherUpdates(t *testing.T) {
	stub := transport.NewStub()
	p := newPipeline(t, transport.Transport{HTTP: stub})

	updates := make(chan operation.Result, 2)
	handle, err := p.WatchQuery(operation.WatchRequest{
		Query:     heroQuery,
		Variables: map[string]interface{}{"id": "1"},
		OnUpdate:  func(res operation.Result) { updates <- res },
	})
	require.NoError(t, err)

	handle.Unsubscribe()

	require.NoError(t, handle.Update(map[string]interface{}{
		"hero": map[string]interface{}{"__typename": "Character", "id": "1", "name": "Leia"},
	}))

	select {
	case <-updates:
		t.Fatal("should not have received an update after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}
