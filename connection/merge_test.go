package connection_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/connection"
	"github.com/samsheth/graphcache/graph"
	"github.com/samsheth/graphcache/logger"
	"github.com/samsheth/graphcache/record"
)

const canonicalKey = record.ID("@connection.posts()")

// writeEdges puts one edge sub-record per (node, cursor) pair under
// pageKey.edges.<i> and returns their ids in order, mirroring what
// normalize.Writer does for a concrete page.
func writeEdges(t *testing.T, store *graph.Store, pageKey record.ID, nodes, cursors []string) []record.ID {
	t.Helper()
	ids := make([]record.ID, len(nodes))
	for i, n := range nodes {
		id, err := record.ScopedID(pageKey, "edges."+string(rune('0'+i)))
		require.NoError(t, err)
		node, err := record.EntityID("Post", n)
		require.NoError(t, err)
		require.NoError(t, store.PutRecord(id, record.Snapshot{
			"cursor": record.Scalar(cursors[i]),
			"node":   record.Ref(node),
		}))
		ids[i] = id
	}
	return ids
}

func newEngine(t *testing.T) (*connection.Engine, *graph.Store) {
	t.Helper()
	store := graph.New(graph.Config{})
	e := connection.New(store, logger.New(), nil)
	return e, store
}

func pageWrite(t *testing.T, store *graph.Store, pageKey record.ID, nodes, cursors []string, hasNext, hasPrev bool) connection.PageWrite {
	ids := writeEdges(t, store, pageKey, nodes, cursors)
	return connection.PageWrite{
		EdgeIDs: ids,
		Cursors: cursors,
		PageInfo: connection.PageInfoValues{
			StartCursor:     cursors[0],
			EndCursor:       cursors[len(cursors)-1],
			HasNextPage:     hasNext,
			HasPreviousPage: hasPrev,
		},
	}
}

func edgeCursors(t *testing.T, store *graph.Store, canonical record.ID) []string {
	t.Helper()
	snap, ok := store.GetRecord(canonical)
	require.True(t, ok)
	ids, ok := snap["edges"].AsRefList()
	require.True(t, ok)
	out := make([]string, len(ids))
	for i, id := range ids {
		edgeSnap, ok := store.GetRecord(id)
		require.True(t, ok)
		c, ok := edgeSnap["cursor"].AsScalar()
		require.True(t, ok)
		out[i] = c.(string)
	}
	return out
}

func pageInfoOf(t *testing.T, store *graph.Store, canonical record.ID) record.Snapshot {
	t.Helper()
	snap, ok := store.GetRecord(canonical)
	require.True(t, ok)
	ref, ok := snap["pageInfo"].AsRef()
	require.True(t, ok)
	info, ok := store.GetRecord(ref)
	require.True(t, ok)
	return info
}

func scalarStr(t *testing.T, snap record.Snapshot, key string) string {
	t.Helper()
	v, ok := snap[key].AsScalar()
	require.True(t, ok)
	s, _ := v.(string)
	return s
}

func scalarBool(t *testing.T, snap record.Snapshot, key string) bool {
	t.Helper()
	v, ok := snap[key].AsScalar()
	require.True(t, ok)
	b, _ := v.(bool)
	return b
}

// Scenario 1: leader then forward.
func TestMergeInfinite_LeaderThenForward(t *testing.T) {
	e, store := newEngine(t)

	leaderPage := pageWrite(t, store, "@.posts(leader)", []string{"p1", "p2", "p3"}, []string{"p1", "p2", "p3"}, true, false)
	_, err := e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey,
		PageKey:      "@.posts(leader)",
		Page:         leaderPage,
	})
	require.NoError(t, err)

	after := "p3"
	forwardPage := pageWrite(t, store, "@.posts(after-p3)", []string{"p4", "p5", "p6"}, []string{"p4", "p5", "p6"}, false, false)
	_, err = e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey,
		PageKey:      "@.posts(after-p3)",
		After:        &after,
		Page:         forwardPage,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"p1", "p2", "p3", "p4", "p5", "p6"}, edgeCursors(t, store, canonicalKey))
	info := pageInfoOf(t, store, canonicalKey)
	require.Equal(t, "p1", scalarStr(t, info, "startCursor"))
	require.Equal(t, "p6", scalarStr(t, info, "endCursor"))
	require.False(t, scalarBool(t, info, "hasNextPage"))
	require.False(t, scalarBool(t, info, "hasPreviousPage"))
}

// Scenario 2: leader refetch resets.
func TestMergeInfinite_LeaderRefetchResets(t *testing.T) {
	e, store := newEngine(t)

	leaderPage := pageWrite(t, store, "@.posts(leader)", []string{"p1", "p2", "p3"}, []string{"p1", "p2", "p3"}, true, false)
	req := connection.Request{CanonicalKey: canonicalKey, PageKey: "@.posts(leader)", Page: leaderPage}
	_, err := e.UpdateConnection(connection.ModeInfinite, req)
	require.NoError(t, err)

	after := "p3"
	forwardPage := pageWrite(t, store, "@.posts(after-p3)", []string{"p4", "p5", "p6"}, []string{"p4", "p5", "p6"}, false, false)
	_, err = e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(after-p3)", After: &after, Page: forwardPage,
	})
	require.NoError(t, err)

	// Refetch the leader again, same content, from a fresh page record.
	leaderAgain := pageWrite(t, store, "@.posts(leader2)", []string{"p1", "p2", "p3"}, []string{"p1", "p2", "p3"}, true, false)
	_, err = e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(leader2)", Page: leaderAgain,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"p1", "p2", "p3"}, edgeCursors(t, store, canonicalKey))
	info := pageInfoOf(t, store, canonicalKey)
	require.Equal(t, "p3", scalarStr(t, info, "endCursor"))
	require.True(t, scalarBool(t, info, "hasNextPage"))
}

// Scenario 3: backward prepend.
func TestMergeInfinite_BackwardPrepend(t *testing.T) {
	e, store := newEngine(t)

	leaderPage := pageWrite(t, store, "@.posts(leader)", []string{"p4", "p5", "p6"}, []string{"p4", "p5", "p6"}, false, true)
	_, err := e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(leader)", Page: leaderPage,
	})
	require.NoError(t, err)

	before := "p4"
	backPage := pageWrite(t, store, "@.posts(before-p4)", []string{"p1", "p2", "p3"}, []string{"p1", "p2", "p3"}, false, false)
	_, err = e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(before-p4)", Before: &before, Page: backPage,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"p1", "p2", "p3", "p4", "p5", "p6"}, edgeCursors(t, store, canonicalKey))
	info := pageInfoOf(t, store, canonicalKey)
	require.Equal(t, "p1", scalarStr(t, info, "startCursor"))
	require.False(t, scalarBool(t, info, "hasPreviousPage"))
}

// Scenario 4: middle refetch discards future pages.
func TestMergeInfinite_MiddleRefetchDiscardsFuture(t *testing.T) {
	e, store := newEngine(t)

	leaderPage := pageWrite(t, store, "@.posts(leader)", []string{"p1", "p2", "p3"}, []string{"p1", "p2", "p3"}, true, false)
	_, err := e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(leader)", Page: leaderPage,
	})
	require.NoError(t, err)

	afterP3 := "p3"
	page2 := pageWrite(t, store, "@.posts(after-p3)", []string{"p4", "p5", "p6"}, []string{"p4", "p5", "p6"}, true, false)
	_, err = e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(after-p3)", After: &afterP3, Page: page2,
	})
	require.NoError(t, err)

	afterP6 := "p6"
	page3 := pageWrite(t, store, "@.posts(after-p6)", []string{"p7", "p8", "p9"}, []string{"p7", "p8", "p9"}, false, false)
	_, err = e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(after-p6)", After: &afterP6, Page: page3,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"}, edgeCursors(t, store, canonicalKey))

	// Refetch after p3 again with the same p4-p6 page: splice truncates at
	// the anchor and re-appends, discarding p7-p9.
	refetch := pageWrite(t, store, "@.posts(after-p3-again)", []string{"p4", "p5", "p6"}, []string{"p4", "p5", "p6"}, true, false)
	_, err = e.UpdateConnection(connection.ModeInfinite, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(after-p3-again)", After: &afterP3, Page: refetch,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"p1", "p2", "p3", "p4", "p5", "p6"}, edgeCursors(t, store, canonicalKey))
	info := pageInfoOf(t, store, canonicalKey)
	require.Equal(t, "p6", scalarStr(t, info, "endCursor"))
	require.True(t, scalarBool(t, info, "hasNextPage"))
}

// Page mode is wholesale replacement: no splice, no meta history.
func TestMergePage_Replaces(t *testing.T) {
	e, store := newEngine(t)

	first := pageWrite(t, store, "@.posts(page1)", []string{"p1", "p2"}, []string{"p1", "p2"}, true, false)
	_, err := e.UpdateConnection(connection.ModePage, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(page1)", Page: first,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p1", "p2"}, edgeCursors(t, store, canonicalKey))

	second := pageWrite(t, store, "@.posts(page2)", []string{"p3", "p4"}, []string{"p3", "p4"}, false, true)
	_, err = e.UpdateConnection(connection.ModePage, connection.Request{
		CanonicalKey: canonicalKey, PageKey: "@.posts(page2)", Page: second,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p3", "p4"}, edgeCursors(t, store, canonicalKey))
}
