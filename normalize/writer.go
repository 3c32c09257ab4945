// Package normalize implements the normalizer (component C): the single
// traversal that writes one operation's response payload into the graph
// store, upserting entities by identity, embedding unidentifiable objects in
// place, and handing every connection-shaped field to the Canonical
// Connection Engine after writing its concrete page.
package normalize

import (
	"strconv"

	"github.com/samsarahq/go/oops"

	"github.com/samsheth/graphcache/connection"
	"github.com/samsheth/graphcache/graph"
	"github.com/samsheth/graphcache/plan"
	"github.com/samsheth/graphcache/record"
)

// Writer normalizes operation payloads into a graph.Store, invoking a
// connection.Engine for every connection field it encounters.
type Writer struct {
	store *graph.Store
	conn  *connection.Engine
}

// New creates a Writer bound to store and conn.
func New(store *graph.Store, conn *connection.Engine) *Writer {
	return &Writer{store: store, conn: conn}
}

// WriteDocument writes data (the decoded "data" object of one GraphQL
// response) for p against vars, returning the set of record-ids whose
// stored value changed as a result (directly written, or touched by the
// canonical engine). Safe to call twice with byte-identical data: per
// §8's idempotence property, a repeat write produces an identical graph
// and an empty practical diff (though changed still names every key
// touched, since PutRecord does not itself suppress no-op writes).
func (w *Writer) WriteDocument(p *plan.Plan, vars map[string]interface{}, data map[string]interface{}) (map[record.ID]struct{}, error) {
	changed := map[record.ID]struct{}{}

	root, err := w.writeFields(p.Root, vars, data, record.RootID, changed)
	if err != nil {
		return nil, err
	}
	if err := w.store.PutRecord(record.RootID, root); err != nil {
		return nil, err
	}
	changed[record.RootID] = struct{}{}

	return changed, nil
}

// writeFields builds the Snapshot for one object's own fields: obj is the
// decoded JSON object, scopeID is the record-id that owns it (used to scope
// nested page/connection ids), and fields is the set of plan fields
// selected against it.
func (w *Writer) writeFields(fields []*plan.PlanField, vars map[string]interface{}, obj map[string]interface{}, scopeID record.ID, changed map[record.ID]struct{}) (record.Snapshot, error) {
	out := record.Snapshot{}
	if tv, ok := obj["__typename"]; ok {
		out["__typename"] = record.Scalar(tv)
	}
	for _, pf := range fields {
		raw, present := obj[pf.ResponseKey]
		if !present {
			continue
		}
		key, err := pf.FieldKey(vars)
		if err != nil {
			return nil, oops.Wrapf(err, "field key for %q", pf.ResponseKey)
		}
		val, err := w.writeField(pf, vars, raw, scopeID, changed)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func (w *Writer) writeField(pf *plan.PlanField, vars map[string]interface{}, raw interface{}, scopeID record.ID, changed map[record.ID]struct{}) (record.Value, error) {
	if raw == nil {
		return record.Scalar(nil), nil
	}
	if pf.IsConnection {
		return w.writeConnection(pf, vars, raw, scopeID, changed)
	}
	if len(pf.SelectionSet) == 0 {
		return scalarValue(raw), nil
	}
	switch v := raw.(type) {
	case []interface{}:
		return w.writeList(pf, vars, v, scopeID, changed)
	case map[string]interface{}:
		return w.writeObject(pf, vars, v, scopeID, changed)
	default:
		return record.Scalar(raw), nil
	}
}

func scalarValue(raw interface{}) record.Value {
	if items, ok := raw.([]interface{}); ok {
		vals := make([]record.Value, len(items))
		for i, it := range items {
			vals[i] = scalarValue(it)
		}
		return record.Array(vals)
	}
	return record.Scalar(raw)
}

func (w *Writer) writeList(pf *plan.PlanField, vars map[string]interface{}, items []interface{}, scopeID record.ID, changed map[record.ID]struct{}) (record.Value, error) {
	vals := make([]record.Value, 0, len(items))
	ids := make([]record.ID, 0, len(items))
	allRefs := len(items) > 0
	for _, item := range items {
		if item == nil {
			vals = append(vals, record.Scalar(nil))
			allRefs = false
			continue
		}
		obj, ok := item.(map[string]interface{})
		if !ok {
			vals = append(vals, scalarValue(item))
			allRefs = false
			continue
		}
		v, err := w.writeObject(pf, vars, obj, scopeID, changed)
		if err != nil {
			return record.Value{}, err
		}
		vals = append(vals, v)
		if id, ok := v.AsRef(); ok {
			ids = append(ids, id)
		} else {
			allRefs = false
		}
	}
	if allRefs {
		return record.RefList(ids), nil
	}
	return record.Array(vals), nil
}

// writeObject normalizes one decoded object: identifiable objects (those
// resolving a record.ID via graph.Store.Identify) are written as their own
// record and referenced; everything else is embedded in place (§4.1,
// §4.2's upsert contract).
func (w *Writer) writeObject(pf *plan.PlanField, vars map[string]interface{}, obj map[string]interface{}, scopeID record.ID, changed map[record.ID]struct{}) (record.Value, error) {
	typename, _ := obj["__typename"].(string)
	if typename == "" {
		typename = pf.TypeCondition
	}

	if typename != "" {
		if id, ok := w.store.Identify(typename, obj); ok {
			snap, err := w.writeFields(pf.SelectionSet, vars, obj, id, changed)
			if err != nil {
				return record.Value{}, err
			}
			if err := w.store.PutRecord(id, snap); err != nil {
				return record.Value{}, err
			}
			changed[id] = struct{}{}
			return record.Ref(id), nil
		}
	}

	snap, err := w.writeFields(pf.SelectionSet, vars, obj, scopeID, changed)
	if err != nil {
		return record.Value{}, err
	}
	return record.Object(map[string]record.Value(snap)), nil
}

func (w *Writer) writeConnection(pf *plan.PlanField, vars map[string]interface{}, raw interface{}, parentID record.ID, changed map[record.ID]struct{}) (record.Value, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return record.Scalar(raw), nil
	}

	fieldKey, err := pf.FieldKey(vars)
	if err != nil {
		return record.Value{}, err
	}
	pageKey, err := record.PageKeyID(parentID, fieldKey)
	if err != nil {
		return record.Value{}, err
	}

	edgeIDs, cursors, err := w.writeEdges(pf, vars, obj, pageKey, changed)
	if err != nil {
		return record.Value{}, err
	}

	pageInfo := readPageInfo(obj)
	if pageInfo.StartCursor == "" && len(cursors) > 0 {
		pageInfo.StartCursor = cursors[0]
	}
	if pageInfo.EndCursor == "" && len(cursors) > 0 {
		pageInfo.EndCursor = cursors[len(cursors)-1]
	}

	var extraFields []*plan.PlanField
	for _, f := range pf.SelectionSet {
		if f.ResponseKey != "edges" && f.ResponseKey != "pageInfo" {
			extraFields = append(extraFields, f)
		}
	}
	extraSnap, err := w.writeFields(extraFields, vars, obj, pageKey, changed)
	if err != nil {
		return record.Value{}, err
	}

	concretePageInfoID, err := record.ScopedID(pageKey, "pageInfo")
	if err != nil {
		return record.Value{}, err
	}
	if err := w.store.PutRecord(concretePageInfoID, pageInfoSnapshot(pageInfo)); err != nil {
		return record.Value{}, err
	}
	changed[concretePageInfoID] = struct{}{}

	pageSnap := record.Snapshot{"edges": record.RefList(edgeIDs), "pageInfo": record.Ref(concretePageInfoID)}
	for k, v := range extraSnap {
		pageSnap[k] = v
	}
	if err := w.store.PutRecord(pageKey, pageSnap); err != nil {
		return record.Value{}, err
	}
	changed[pageKey] = struct{}{}

	args, err := pf.BuildArgs(vars)
	if err != nil {
		return record.Value{}, err
	}
	after := stringArg(args, "after")
	before := stringArg(args, "before")

	identity, err := pf.IdentityJSON(vars)
	if err != nil {
		return record.Value{}, err
	}
	scope := ""
	if parentID != record.RootID {
		scope = string(parentID)
	}
	canonicalKey := record.CanonicalID(scope, pf.ConnectionKey, identity)

	mode := connection.ModeInfinite
	if pf.ConnectionMode == plan.ConnectionModePage {
		mode = connection.ModePage
	}

	engineChanged, err := w.conn.UpdateConnection(mode, connection.Request{
		CanonicalKey: canonicalKey,
		PageKey:      pageKey,
		After:        after,
		Before:       before,
		Page: connection.PageWrite{
			EdgeIDs:  edgeIDs,
			Cursors:  cursors,
			PageInfo: pageInfo,
			Extra:    extraSnap,
		},
	})
	if err != nil {
		return record.Value{}, err
	}
	for k := range engineChanged {
		changed[k] = struct{}{}
	}

	return record.Ref(pageKey), nil
}

func (w *Writer) writeEdges(pf *plan.PlanField, vars map[string]interface{}, obj map[string]interface{}, pageKey record.ID, changed map[record.ID]struct{}) ([]record.ID, []string, error) {
	edgesField := pf.SelectionMap["edges"]
	rawEdges, _ := obj["edges"].([]interface{})
	if edgesField == nil || len(rawEdges) == 0 {
		return nil, nil, nil
	}

	nodeField := edgesField.SelectionMap["node"]
	var edgeFields []*plan.PlanField
	for _, f := range edgesField.SelectionSet {
		if f.ResponseKey != "node" && f.ResponseKey != "cursor" {
			edgeFields = append(edgeFields, f)
		}
	}

	ids := make([]record.ID, 0, len(rawEdges))
	cursors := make([]string, 0, len(rawEdges))
	for i, re := range rawEdges {
		edgeObj, _ := re.(map[string]interface{})
		edgeID, err := record.ScopedID(pageKey, "edges."+strconv.Itoa(i))
		if err != nil {
			return nil, nil, err
		}

		var cursor string
		if edgeObj != nil {
			if c, ok := edgeObj["cursor"].(string); ok {
				cursor = c
			}
		}

		edgeSnap, err := w.writeFields(edgeFields, vars, edgeObj, edgeID, changed)
		if err != nil {
			return nil, nil, err
		}
		edgeSnap["cursor"] = record.Scalar(cursor)

		if nodeField != nil && edgeObj != nil {
			nodeVal, err := w.writeField(nodeField, vars, edgeObj["node"], edgeID, changed)
			if err != nil {
				return nil, nil, err
			}
			edgeSnap["node"] = nodeVal
		}

		if err := w.store.PutRecord(edgeID, edgeSnap); err != nil {
			return nil, nil, err
		}
		changed[edgeID] = struct{}{}

		ids = append(ids, edgeID)
		cursors = append(cursors, cursor)
	}
	return ids, cursors, nil
}

func readPageInfo(obj map[string]interface{}) connection.PageInfoValues {
	var pi connection.PageInfoValues
	raw, ok := obj["pageInfo"].(map[string]interface{})
	if !ok {
		return pi
	}
	if s, ok := raw["startCursor"].(string); ok {
		pi.StartCursor = s
	}
	if s, ok := raw["endCursor"].(string); ok {
		pi.EndCursor = s
	}
	if b, ok := raw["hasNextPage"].(bool); ok {
		pi.HasNextPage = b
	}
	if b, ok := raw["hasPreviousPage"].(bool); ok {
		pi.HasPreviousPage = b
	}
	return pi
}

func pageInfoSnapshot(pi connection.PageInfoValues) record.Snapshot {
	return record.Snapshot{
		"startCursor":     record.Scalar(pi.StartCursor),
		"endCursor":       record.Scalar(pi.EndCursor),
		"hasNextPage":     record.Scalar(pi.HasNextPage),
		"hasPreviousPage": record.Scalar(pi.HasPreviousPage),
	}
}

func stringArg(args map[string]interface{}, name string) *string {
	v, ok := args[name]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
