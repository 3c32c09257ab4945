package optimistic_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/optimistic"
	"github.com/samsheth/graphcache/record"
)

func mustEntity(t *testing.T, typename, id string) record.ID {
	t.Helper()
	eid, err := record.EntityID(typename, id)
	require.NoError(t, err)
	return eid
}

// Scenario 6: optimistic survives base write. Begin tx: remove Post:2,
// prepend Post:9. Then normalize leader p1,p2,p3. Canonical (as seen via
// overlay) -> [9,1,3].
func TestOverlayConnectionEdges_SurvivesBaseWrite(t *testing.T) {
	layer := optimistic.New(nil)
	canonical := record.ID("@connection.posts()")

	post2 := mustEntity(t, "Post", "2")
	post9 := mustEntity(t, "Post", "9")

	handle := layer.ModifyOptimistic(func(tx *optimistic.TxSurface) {
		conn := tx.Connection(canonical)
		conn.RemoveNode(post2)
		conn.AddNode(post9, record.Snapshot{"id": record.Scalar("9")}, optimistic.AddNodeOptions{
			Position: optimistic.PositionStart,
			Cursor:   "p9",
		})
	})
	defer handle.Commit()

	base := []optimistic.Edge{
		{EdgeID: "edge1", Cursor: "p1", Node: mustEntity(t, "Post", "1")},
		{EdgeID: "edge2", Cursor: "p2", Node: post2},
		{EdgeID: "edge3", Cursor: "p3", Node: mustEntity(t, "Post", "3")},
	}

	got := layer.OverlayConnectionEdges(canonical, base)

	require.Len(t, got, 3)
	require.Equal(t, post9, got[0].Node)
	require.Equal(t, "", string(got[0].EdgeID))
	require.Equal(t, mustEntity(t, "Post", "1"), got[1].Node)
	require.Equal(t, mustEntity(t, "Post", "3"), got[2].Node)
}

func TestOverlayRecord_Revert(t *testing.T) {
	layer := optimistic.New(nil)
	id := mustEntity(t, "Post", "1")

	handle := layer.ModifyOptimistic(func(tx *optimistic.TxSurface) {
		tx.WriteFragment(id, record.Snapshot{"title": record.Scalar("optimistic title")})
	})

	overlaid := layer.OverlayRecord(id, record.Snapshot{"title": record.Scalar("base title")})
	title, ok := overlaid["title"].AsScalar()
	require.True(t, ok)
	require.Equal(t, "optimistic title", title)

	handle.Revert()

	afterRevert := layer.OverlayRecord(id, record.Snapshot{"title": record.Scalar("base title")})
	title, ok = afterRevert["title"].AsScalar()
	require.True(t, ok)
	require.Equal(t, "base title", title)
}

func TestOverlayConnectionEdges_AnchoredInsert(t *testing.T) {
	layer := optimistic.New(nil)
	canonical := record.ID("@connection.posts()")
	post9 := mustEntity(t, "Post", "9")

	handle := layer.ModifyOptimistic(func(tx *optimistic.TxSurface) {
		tx.Connection(canonical).AddNode(post9, nil, optimistic.AddNodeOptions{
			Position:     optimistic.PositionAfterCursor,
			Cursor:       "p9",
			AnchorCursor: "p1",
		})
	})
	defer handle.Commit()

	base := []optimistic.Edge{
		{EdgeID: "edge1", Cursor: "p1", Node: mustEntity(t, "Post", "1")},
		{EdgeID: "edge2", Cursor: "p2", Node: mustEntity(t, "Post", "2")},
	}
	got := layer.OverlayConnectionEdges(canonical, base)
	require.Len(t, got, 3)
	require.Equal(t, "p1", got[0].Cursor)
	require.Equal(t, post9, got[1].Node)
	require.Equal(t, "p2", got[2].Cursor)
}
