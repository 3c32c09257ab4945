// Package materialize implements the materializer (component D): projecting
// a compiled plan.Plan back out of the graph store (and its optimistic
// overlay) into plain response-shaped data, tracking completeness so callers
// can distinguish a full hit from a partial or total miss.
package materialize

import (
	"github.com/samsheth/graphcache/optimistic"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/record"
)

type storeReader interface {
	GetRecord(id record.ID) (record.Snapshot, bool)
}

// Reader materializes plans against a graph and its optimistic overlay.
type Reader struct {
	store storeReader
	layer *optimistic.Layer

	// track, when non-nil, accumulates every record-id consulted during a
	// Read call; used by the live form's access-set/Refresh contract (§9).
	track map[record.ID]struct{}
}

// New creates a Reader bound to store and layer.
func New(store storeReader, layer *optimistic.Layer) *Reader {
	return &Reader{store: store, layer: layer}
}

// Read materializes p against vars, returning the response-shaped data and
// whether every selected field was present (a full cache hit). A false
// complete with non-nil data is a partial hit; nil data is a total miss.
func (r *Reader) Read(p *plan.Plan, vars map[string]interface{}) (map[string]interface{}, bool, error) {
	rootSnap, ok := r.getSnapshot(record.RootID)
	if !ok {
		return nil, false, nil
	}
	return r.readFields(p.Root, vars, rootSnap, record.RootID)
}

// Has reports whether p would materialize as a full cache hit. It performs
// a full Read and discards the materialized data.
func (r *Reader) Has(p *plan.Plan, vars map[string]interface{}) (bool, error) {
	_, complete, err := r.Read(p, vars)
	return complete, err
}

func (r *Reader) getSnapshot(id record.ID) (record.Snapshot, bool) {
	if r.track != nil {
		r.track[id] = struct{}{}
	}
	base, ok := r.store.GetRecord(id)
	overlaid := r.layer.OverlayRecord(id, base)
	if overlaid != nil {
		return overlaid, true
	}
	return nil, ok
}

func (r *Reader) readFields(fields []*plan.PlanField, vars map[string]interface{}, snap record.Snapshot, scopeID record.ID) (map[string]interface{}, bool, error) {
	out := make(map[string]interface{}, len(fields))
	complete := true
	for _, pf := range fields {
		key, err := pf.FieldKey(vars)
		if err != nil {
			return nil, false, err
		}
		v, ok := snap[key]
		if !ok {
			complete = false
			continue
		}
		val, fieldComplete, err := r.readValue(pf, vars, v, scopeID)
		if err != nil {
			return nil, false, err
		}
		if !fieldComplete {
			complete = false
		}
		out[pf.ResponseKey] = val
	}
	return out, complete, nil
}

func (r *Reader) readValue(pf *plan.PlanField, vars map[string]interface{}, v record.Value, scopeID record.ID) (interface{}, bool, error) {
	if pf.IsConnection {
		return r.readConnection(pf, vars, scopeID, v)
	}

	switch v.Kind() {
	case record.KindUndefined:
		return nil, false, nil
	case record.KindScalar:
		s, _ := v.AsScalar()
		return s, true, nil
	case record.KindRef:
		id, _ := v.AsRef()
		childSnap, ok := r.getSnapshot(id)
		if !ok {
			return nil, false, nil
		}
		return r.readFields(pf.SelectionSet, vars, childSnap, id)
	case record.KindRefList:
		ids, _ := v.AsRefList()
		out := make([]interface{}, 0, len(ids))
		complete := true
		for _, id := range ids {
			childSnap, ok := r.getSnapshot(id)
			if !ok {
				complete = false
				out = append(out, nil)
				continue
			}
			obj, c, err := r.readFields(pf.SelectionSet, vars, childSnap, id)
			if err != nil {
				return nil, false, err
			}
			if !c {
				complete = false
			}
			out = append(out, obj)
		}
		return out, complete, nil
	case record.KindObject:
		m, _ := v.AsObject()
		return r.readFields(pf.SelectionSet, vars, record.Snapshot(m), scopeID)
	case record.KindArray:
		vs, _ := v.AsArray()
		out := make([]interface{}, 0, len(vs))
		complete := true
		for _, item := range vs {
			val, c, err := r.readValue(pf, vars, item, scopeID)
			if err != nil {
				return nil, false, err
			}
			if !c {
				complete = false
			}
			out = append(out, val)
		}
		return out, complete, nil
	}
	return nil, false, nil
}

// readConnection prefers the canonical connection record over the concrete
// page a given read originally wrote (§4.4: "connection field reads prefer
// the canonical connection record"), falling back to the concrete page
// referenced by pageRef only when no canonical record exists yet.
func (r *Reader) readConnection(pf *plan.PlanField, vars map[string]interface{}, scopeID record.ID, pageRef record.Value) (interface{}, bool, error) {
	identity, err := pf.IdentityJSON(vars)
	if err != nil {
		return nil, false, err
	}
	scope := ""
	if scopeID != record.RootID {
		scope = string(scopeID)
	}
	canonicalKey := record.CanonicalID(scope, pf.ConnectionKey, identity)

	recID := canonicalKey
	isCanonical := true
	snap, ok := r.getSnapshot(canonicalKey)
	if !ok {
		concreteID, okRef := pageRef.AsRef()
		if !okRef {
			return nil, false, nil
		}
		recID = concreteID
		isCanonical = false
		snap, ok = r.getSnapshot(recID)
		if !ok {
			return nil, false, nil
		}
	}

	edgesField := pf.SelectionMap["edges"]
	pageInfoField := pf.SelectionMap["pageInfo"]
	complete := true
	result := map[string]interface{}{}

	var edgeIDs []record.ID
	if v, ok := snap["edges"]; ok {
		edgeIDs, _ = v.AsRefList()
	}

	baseEdges := make([]optimistic.Edge, 0, len(edgeIDs))
	for _, edgeID := range edgeIDs {
		edgeSnap, ok := r.getSnapshot(edgeID)
		if !ok {
			complete = false
			continue
		}
		var cursor string
		if v, ok := edgeSnap["cursor"]; ok {
			if s, ok := v.AsScalar(); ok {
				if str, ok := s.(string); ok {
					cursor = str
				}
			}
		}
		var node record.ID
		if v, ok := edgeSnap["node"]; ok {
			node, _ = v.AsRef()
		}
		baseEdges = append(baseEdges, optimistic.Edge{EdgeID: edgeID, Cursor: cursor, Node: node})
	}

	finalEdges := baseEdges
	if isCanonical {
		finalEdges = r.layer.OverlayConnectionEdges(canonicalKey, baseEdges)
	}

	if edgesField != nil {
		nodeField := edgesField.SelectionMap["node"]
		edges := make([]interface{}, 0, len(finalEdges))
		for _, e := range finalEdges {
			var edgeObj map[string]interface{}
			var c bool
			var err error

			switch {
			case e.EdgeID != "":
				// Base edge: its sub-record already stores "cursor" and a
				// "node" ref, so the normal field walk resolves both.
				var edgeSnap record.Snapshot
				edgeSnap, ok := r.getSnapshot(e.EdgeID)
				if !ok {
					complete = false
					edges = append(edges, nil)
					continue
				}
				edgeObj, c, err = r.readFields(edgesField.SelectionSet, vars, edgeSnap, e.EdgeID)
			case e.NodeSnapshot != nil && nodeField != nil:
				// Synthetic edge from an optimistic AddNode: no base
				// sub-record exists, so only cursor/node are materializable.
				var nodeObj map[string]interface{}
				nodeObj, c, err = r.readFields(nodeField.SelectionSet, vars, e.NodeSnapshot, e.Node)
				edgeObj = map[string]interface{}{"cursor": e.Cursor, "node": nodeObj}
			default:
				complete = false
				edges = append(edges, map[string]interface{}{"cursor": e.Cursor})
				continue
			}
			if err != nil {
				return nil, false, err
			}
			if !c {
				complete = false
			}
			edges = append(edges, edgeObj)
		}
		result["edges"] = edges
	}

	if pageInfoField != nil {
		if piRef, ok := snap["pageInfo"]; ok {
			if piID, ok := piRef.AsRef(); ok {
				piSnap, ok := r.getSnapshot(piID)
				if ok {
					piObj, c, err := r.readFields(pageInfoField.SelectionSet, vars, piSnap, piID)
					if err != nil {
						return nil, false, err
					}
					if !c {
						complete = false
					}
					result["pageInfo"] = piObj
				} else {
					complete = false
				}
			}
		}
	}

	for _, f := range pf.SelectionSet {
		if f.ResponseKey == "edges" || f.ResponseKey == "pageInfo" {
			continue
		}
		key, err := f.FieldKey(vars)
		if err != nil {
			return nil, false, err
		}
		v, ok := snap[key]
		if !ok {
			complete = false
			continue
		}
		val, c, err := r.readValue(f, vars, v, recID)
		if err != nil {
			return nil, false, err
		}
		if !c {
			complete = false
		}
		result[f.ResponseKey] = val
	}

	return result, complete, nil
}
