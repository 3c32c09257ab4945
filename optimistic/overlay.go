package optimistic

import "github.com/samsheth/graphcache/record"

// OverlayRecord applies every live transaction's writeFragment mutations
// targeting id, in commit order, over base. Returns base unchanged if no
// transaction touches id.
func (l *Layer) OverlayRecord(id record.ID, base record.Snapshot) record.Snapshot {
	out := base
	for _, tx := range l.snapshot() {
		for _, m := range tx.Mutations {
			if m.fragment != nil && m.fragment.id == id {
				if out == nil {
					out = record.Snapshot{}
				}
				out = out.Merge(m.fragment.partial)
			}
		}
	}
	return out
}

// Edge is one materializable connection edge: either a base edge (EdgeID
// set, already written by the normalizer) or a synthetic edge introduced by
// an optimistic AddNode (EdgeID empty, NodeSnapshot set so the materializer
// can read the node's fields without a base record).
type Edge struct {
	EdgeID       record.ID
	Cursor       string
	Node         record.ID
	NodeSnapshot record.Snapshot
}

// OverlayConnectionEdges applies every live transaction's addNode/removeNode
// mutations scoped to canonicalKey, in commit order, over base. Each
// mutation sees the result of every earlier mutation in the replay, matching
// "transactions re-apply in commit order on top of the base" (§4.6).
func (l *Layer) OverlayConnectionEdges(canonicalKey record.ID, base []Edge) []Edge {
	edges := append([]Edge(nil), base...)

	for _, tx := range l.snapshot() {
		for _, m := range tx.Mutations {
			switch {
			case m.add != nil && m.add.canonicalKey == canonicalKey:
				edges = insertEdge(edges, m.add)
			case m.remove != nil && m.remove.canonicalKey == canonicalKey:
				edges = removeEdge(edges, m.remove.node)
			}
		}
	}
	return edges
}

func insertEdge(edges []Edge, m *addMutation) []Edge {
	newEdge := Edge{Cursor: m.cursor, Node: m.node, NodeSnapshot: m.nodeSnapshot}
	switch m.position {
	case PositionStart:
		return append([]Edge{newEdge}, edges...)
	case PositionEnd:
		return append(append([]Edge(nil), edges...), newEdge)
	case PositionBeforeCursor, PositionAfterCursor:
		idx := indexOfCursor(edges, m.anchorCursor)
		if idx < 0 {
			return append(append([]Edge(nil), edges...), newEdge)
		}
		insertAt := idx
		if m.position == PositionAfterCursor {
			insertAt = idx + 1
		}
		out := make([]Edge, 0, len(edges)+1)
		out = append(out, edges[:insertAt]...)
		out = append(out, newEdge)
		out = append(out, edges[insertAt:]...)
		return out
	default:
		return append(append([]Edge(nil), edges...), newEdge)
	}
}

// indexOfCursor locates an edge by its real cursor value. When more than one
// edge shares a cursor, the first occurrence wins (see DESIGN.md).
func indexOfCursor(edges []Edge, cursor string) int {
	for i, e := range edges {
		if e.Cursor == cursor {
			return i
		}
	}
	return -1
}

func removeEdge(edges []Edge, node record.ID) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Node != node {
			out = append(out, e)
		}
	}
	return out
}
