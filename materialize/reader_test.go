package materialize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/graph"
	"github.com/samsheth/graphcache/materialize"
	"github.com/samsheth/graphcache/optimistic"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/record"
)

const heroQuery = `query Hero($id: ID!) { hero(id: $id) { id name } }`

func TestReader_Read_TotalMiss(t *testing.T) {
	store := graph.New(graph.Config{})
	layer := optimistic.New(nil)
	reader := materialize.New(store, layer)

	p, err := plan.Compile(heroQuery, plan.Options{})
	require.NoError(t, err)

	data, complete, err := reader.Read(p, map[string]interface{}{"id": "1"})
	require.NoError(t, err)
	require.False(t, complete)
	require.Nil(t, data)
}

func TestReader_Read_PartialHit(t *testing.T) {
	store := graph.New(graph.Config{})
	layer := optimistic.New(nil)
	reader := materialize.New(store, layer)

	heroID, err := record.EntityID("Character", "1")
	require.NoError(t, err)
	require.NoError(t, store.PutRecord(record.RootID, record.Snapshot{
		`hero({"id":"1"})`: record.Ref(heroID),
	}))
	// Only "id" present on the hero entity, "name" missing.
	require.NoError(t, store.PutRecord(heroID, record.Snapshot{
		"id": record.Scalar("1"),
	}))

	p, err := plan.Compile(heroQuery, plan.Options{})
	require.NoError(t, err)

	data, complete, err := reader.Read(p, map[string]interface{}{"id": "1"})
	require.NoError(t, err)
	require.False(t, complete)
	require.NotNil(t, data)
	hero := data["hero"].(map[string]interface{})
	require.Equal(t, "1", hero["id"])
	_, hasName := hero["name"]
	require.False(t, hasName)
}

func TestReader_Read_FullHit(t *testing.T) {
	store := graph.New(graph.Config{})
	layer := optimistic.New(nil)
	reader := materialize.New(store, layer)

	heroID, err := record.EntityID("Character", "1")
	require.NoError(t, err)
	require.NoError(t, store.PutRecord(record.RootID, record.Snapshot{
		`hero({"id":"1"})`: record.Ref(heroID),
	}))
	require.NoError(t, store.PutRecord(heroID, record.Snapshot{
		"id":   record.Scalar("1"),
		"name": record.Scalar("Luke"),
	}))

	p, err := plan.Compile(heroQuery, plan.Options{})
	require.NoError(t, err)

	data, complete, err := reader.Read(p, map[string]interface{}{"id": "1"})
	require.NoError(t, err)
	require.True(t, complete)
	hero := data["hero"].(map[string]interface{})
	require.Equal(t, "Luke", hero["name"])
}

func TestLiveResult_RefreshDetectsChange(t *testing.T) {
	store := graph.New(graph.Config{})
	layer := optimistic.New(nil)

	heroID, err := record.EntityID("Character", "1")
	require.NoError(t, err)
	require.NoError(t, store.PutRecord(record.RootID, record.Snapshot{
		`hero({"id":"1"})`: record.Ref(heroID),
	}))
	require.NoError(t, store.PutRecord(heroID, record.Snapshot{
		"id": record.Scalar("1"), "name": record.Scalar("Luke"),
	}))

	p, err := plan.Compile(heroQuery, plan.Options{})
	require.NoError(t, err)

	live, err := materialize.NewLive(store, layer, p, map[string]interface{}{"id": "1"})
	require.NoError(t, err)
	require.True(t, live.Complete())
	require.Contains(t, live.Dependencies(), heroID)

	changed, err := live.Refresh()
	require.NoError(t, err)
	require.False(t, changed, "no write happened, refresh should be a no-op")

	require.NoError(t, store.PutRecord(heroID, record.Snapshot{"name": record.Scalar("Han")}))
	changed, err = live.Refresh()
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "Han", live.Data()["hero"].(map[string]interface{})["name"])
}

func TestLiveResult_PlanAndVarsAccessors(t *testing.T) {
	store := graph.New(graph.Config{})
	layer := optimistic.New(nil)

	p, err := plan.Compile(heroQuery, plan.Options{})
	require.NoError(t, err)
	vars := map[string]interface{}{"id": "1"}

	live, err := materialize.NewLive(store, layer, p, vars)
	require.NoError(t, err)
	require.Same(t, p, live.Plan())
	require.Equal(t, vars, live.Vars())
}
