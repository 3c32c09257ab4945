package connection

import (
	"github.com/samsheth/graphcache/record"
)

// metaRecord is the wire shape of the "<canonicalId>.meta" record: the
// ordered list of concrete page ids contributing to the canonical edge list,
// which page is the leader, and per-page hint/origin diagnostics.
type metaRecord struct {
	Pages  []record.ID
	Leader record.ID
	Hints  map[record.ID]string // pageKey -> "leader"|"forward"|"backward"
	Origin map[record.ID]string // pageKey -> "network"|"cache"
}

func (e *Engine) pageInfoID(canonicalKey record.ID) record.ID {
	id, _ := record.ScopedID(canonicalKey, "pageInfo")
	return id
}

func (e *Engine) metaID(canonicalKey record.ID) record.ID {
	id, _ := record.ScopedID(canonicalKey, "meta")
	return id
}

// mergePage implements page-mode connections (§4.5.2): the canonical record
// becomes exactly the incoming page. No splicing, no meta.
func (e *Engine) mergePage(req Request) (map[record.ID]struct{}, error) {
	pageInfoID := e.pageInfoID(req.CanonicalKey)
	changed := map[record.ID]struct{}{req.CanonicalKey: {}, pageInfoID: {}}

	if err := e.store.PutRecord(pageInfoID, pageInfoSnapshot(req.Page.PageInfo)); err != nil {
		return nil, err
	}

	canonical := record.Snapshot{
		"edges":    record.RefList(req.Page.EdgeIDs),
		"pageInfo": record.Ref(pageInfoID),
	}
	for k, v := range req.Page.Extra {
		canonical[k] = v
	}
	if err := e.store.PutRecord(req.CanonicalKey, canonical); err != nil {
		return nil, err
	}

	e.log.Debug("connection: page replace", "canonical", req.CanonicalKey, "page", req.PageKey)
	e.notifyReplay(changed)
	return changed, nil
}

// mergeInfinite implements infinite-mode splice-at-cursor merging (§4.5.3).
func (e *Engine) mergeInfinite(req Request, origin Origin) (map[record.ID]struct{}, error) {
	class := classify(req)
	pageInfoID := e.pageInfoID(req.CanonicalKey)
	metaID := e.metaID(req.CanonicalKey)
	changed := map[record.ID]struct{}{
		req.CanonicalKey: {},
		pageInfoID:        {},
		metaID:            {},
	}

	existingCanonical, _ := e.store.GetRecord(req.CanonicalKey)
	existingPageInfo, _ := e.store.GetRecord(pageInfoID)
	meta := e.loadMeta(metaID)

	var newEdges []record.ID
	var newPageInfo record.Snapshot

	switch class {
	case classLeader:
		// Under the default ResetOnLeaderRefetch mode a leader write resets
		// canonical state entirely (§4.5.3): prior multi-page splice history
		// no longer applies once the base page is refetched from scratch.
		// MergeOrigins instead prepends the leader page to the prior edges.
		if e.LeaderRefetchMode == MergeOrigins && len(meta.Pages) > 0 {
			base := refListOf(existingCanonical, "edges")
			newEdges = append(append([]record.ID(nil), req.Page.EdgeIDs...), base...)
			e.log.Debug("connection: leader refetch (merge-origins)", "canonical", req.CanonicalKey)
		} else {
			newEdges = append([]record.ID(nil), req.Page.EdgeIDs...)
			meta = metaRecord{}
			e.log.Debug("connection: leader refetch (reset)", "canonical", req.CanonicalKey)
		}
		newPageInfo = pageInfoSnapshot(req.Page.PageInfo)
		meta.Leader = req.PageKey

	case classForward:
		base := refListOf(existingCanonical, "edges")
		anchor := -1
		if req.After != nil {
			anchor = findCursorIndex(e.store, base, *req.After)
		}
		splice := anchor + 1
		if anchor < 0 {
			splice = len(base)
		}
		newEdges = append(append([]record.ID(nil), base[:splice]...), req.Page.EdgeIDs...)
		e.log.Debug("connection: forward splice", "canonical", req.CanonicalKey, "after", req.After, "anchor", anchor)

		newPageInfo = existingPageInfo.Clone()
		if newPageInfo == nil {
			newPageInfo = record.Snapshot{}
		}
		newPageInfo["endCursor"] = record.Scalar(req.Page.PageInfo.EndCursor)
		newPageInfo["hasNextPage"] = record.Scalar(req.Page.PageInfo.HasNextPage)
		if _, ok := newPageInfo["startCursor"]; !ok {
			newPageInfo["startCursor"] = record.Scalar(req.Page.PageInfo.StartCursor)
		}
		if _, ok := newPageInfo["hasPreviousPage"]; !ok {
			newPageInfo["hasPreviousPage"] = record.Scalar(req.Page.PageInfo.HasPreviousPage)
		}

	case classBackward:
		base := refListOf(existingCanonical, "edges")
		anchor := -1
		if req.Before != nil {
			anchor = findCursorIndex(e.store, base, *req.Before)
		}
		splice := anchor
		if anchor < 0 {
			splice = 0
		}
		newEdges = append(append([]record.ID(nil), req.Page.EdgeIDs...), base[splice:]...)
		e.log.Debug("connection: backward splice", "canonical", req.CanonicalKey, "before", req.Before, "anchor", anchor)

		newPageInfo = existingPageInfo.Clone()
		if newPageInfo == nil {
			newPageInfo = record.Snapshot{}
		}
		newPageInfo["startCursor"] = record.Scalar(req.Page.PageInfo.StartCursor)
		newPageInfo["hasPreviousPage"] = record.Scalar(req.Page.PageInfo.HasPreviousPage)
		if _, ok := newPageInfo["endCursor"]; !ok {
			newPageInfo["endCursor"] = record.Scalar(req.Page.PageInfo.EndCursor)
		}
		if _, ok := newPageInfo["hasNextPage"]; !ok {
			newPageInfo["hasNextPage"] = record.Scalar(req.Page.PageInfo.HasNextPage)
		}
	}

	if err := e.store.PutRecord(pageInfoID, newPageInfo); err != nil {
		return nil, err
	}

	canonical := record.Snapshot{"edges": record.RefList(newEdges)}
	canonical["pageInfo"] = record.Ref(pageInfoID)
	for k, v := range req.Page.Extra {
		// Extra fields: scalars overwrite every page; reference-typed
		// fields are preserved unless the new page actually provides one
		// (§4.5.4's extra-field preservation rule).
		if v.Kind() == record.KindRef || v.Kind() == record.KindRefList {
			canonical[k] = v
			continue
		}
		canonical[k] = v
	}
	if existingCanonical != nil {
		for k, v := range existingCanonical {
			if k == "edges" || k == "pageInfo" {
				continue
			}
			if _, overwritten := req.Page.Extra[k]; overwritten {
				continue
			}
			if v.Kind() == record.KindRef || v.Kind() == record.KindRefList {
				canonical[k] = v
			}
		}
	}
	if err := e.store.PutRecord(req.CanonicalKey, canonical); err != nil {
		return nil, err
	}

	meta.Pages = appendUniquePage(meta.Pages, req.PageKey)
	if meta.Hints == nil {
		meta.Hints = map[record.ID]string{}
	}
	if meta.Origin == nil {
		meta.Origin = map[record.ID]string{}
	}
	meta.Hints[req.PageKey] = hintName(class)
	meta.Origin[req.PageKey] = string(origin)
	if err := e.store.PutRecord(metaID, meta.toSnapshot()); err != nil {
		return nil, err
	}

	e.notifyReplay(changed)
	return changed, nil
}

func hintName(c cursorClass) string {
	switch c {
	case classLeader:
		return "leader"
	case classForward:
		return "forward"
	case classBackward:
		return "backward"
	default:
		return ""
	}
}

func appendUniquePage(pages []record.ID, page record.ID) []record.ID {
	for _, p := range pages {
		if p == page {
			return pages
		}
	}
	return append(pages, page)
}

func refListOf(snap record.Snapshot, key string) []record.ID {
	if snap == nil {
		return nil
	}
	if v, ok := snap[key]; ok {
		if ids, ok := v.AsRefList(); ok {
			return ids
		}
	}
	return nil
}

// findCursorIndex locates the edge in edges whose cursor sub-field equals
// cursor, reading each edge sub-record's "cursor" scalar. Returns -1 when the
// anchor is not found (the forward caller then appends the page and the
// backward caller prepends it), per §4.5.3's "anchor not present"
// edge case. When more than one edge shares a cursor, the first occurrence
// wins (an explicit Open Question resolution, see DESIGN.md).
func findCursorIndex(store interface {
	GetRecord(record.ID) (record.Snapshot, bool)
}, edges []record.ID, cursor string) int {
	for i, e := range edges {
		snap, ok := store.GetRecord(e)
		if !ok {
			continue
		}
		v, ok := snap["cursor"]
		if !ok {
			continue
		}
		s, ok := v.AsScalar()
		if !ok {
			continue
		}
		if str, ok := s.(string); ok && str == cursor {
			return i
		}
	}
	return -1
}

func pageInfoSnapshot(pi PageInfoValues) record.Snapshot {
	return record.Snapshot{
		"startCursor":     record.Scalar(pi.StartCursor),
		"endCursor":       record.Scalar(pi.EndCursor),
		"hasNextPage":     record.Scalar(pi.HasNextPage),
		"hasPreviousPage": record.Scalar(pi.HasPreviousPage),
	}
}

func (e *Engine) loadMeta(metaID record.ID) metaRecord {
	snap, ok := e.store.GetRecord(metaID)
	if !ok {
		return metaRecord{Hints: map[record.ID]string{}, Origin: map[record.ID]string{}}
	}
	m := metaRecord{Hints: map[record.ID]string{}, Origin: map[record.ID]string{}}
	if v, ok := snap["pages"]; ok {
		if ids, ok := v.AsRefList(); ok {
			m.Pages = ids
		}
	}
	if v, ok := snap["leader"]; ok {
		if s, ok := v.AsScalar(); ok {
			if str, ok := s.(string); ok {
				m.Leader = record.ID(str)
			}
		}
	}
	if v, ok := snap["hints"]; ok {
		if obj, ok := v.AsObject(); ok {
			for k, vv := range obj {
				if s, ok := vv.AsScalar(); ok {
					if str, ok := s.(string); ok {
						m.Hints[record.ID(k)] = str
					}
				}
			}
		}
	}
	if v, ok := snap["origin"]; ok {
		if obj, ok := v.AsObject(); ok {
			for k, vv := range obj {
				if s, ok := vv.AsScalar(); ok {
					if str, ok := s.(string); ok {
						m.Origin[record.ID(k)] = str
					}
				}
			}
		}
	}
	return m
}

func (m metaRecord) toSnapshot() record.Snapshot {
	hints := map[string]record.Value{}
	for k, v := range m.Hints {
		hints[string(k)] = record.Scalar(v)
	}
	origin := map[string]record.Value{}
	for k, v := range m.Origin {
		origin[string(k)] = record.Scalar(v)
	}
	return record.Snapshot{
		"pages":  record.RefList(m.Pages),
		"leader": record.Scalar(string(m.Leader)),
		"hints":  record.Object(hints),
		"origin": record.Object(origin),
	}
}
