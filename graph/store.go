// Package graph implements the normalized graph store: a flat mapping from
// record-id to record snapshot, with reference semantics, entity identity,
// interface resolution, and change notification. It is the sole owner of
// base record state; every other component holds a borrowed *Store.
package graph

import (
	"sort"
	"sync"

	"github.com/samsarahq/go/oops"

	"github.com/samsheth/graphcache/cacheerr"
	"github.com/samsheth/graphcache/record"
)

// KeyFunc computes an identity key for instances of one typename. An empty
// key (or false) means the object is unidentifiable by this function.
type KeyFunc func(obj map[string]interface{}) (string, bool)

// Config configures identity and interface resolution for a Store.
type Config struct {
	// Keys overrides the identity function per typename.
	Keys map[string]KeyFunc
	// Interfaces maps an interface typename to its concrete member
	// typenames, in the order concretes should be probed on read.
	Interfaces map[string][]string
}

type watcher struct {
	id       uint64
	deps     map[record.ID]struct{}
	callback func()
}

// Store is the single owning structure for the cache's normalized graph.
// All access is synchronized by one coarse mutex: §5 of the design mandates
// a single exclusive lock over the whole graph rather than per-record locks,
// since canonical connection updates span many records atomically.
type Store struct {
	mu sync.Mutex

	records    map[record.ID]record.Snapshot
	keyFuncs   map[string]KeyFunc
	interfaces map[string][]string

	watchers  map[uint64]*watcher
	nextWatch uint64
}

// New creates an empty Store.
func New(cfg Config) *Store {
	s := &Store{
		records:    make(map[record.ID]record.Snapshot),
		keyFuncs:   cfg.Keys,
		interfaces: cfg.Interfaces,
		watchers:   make(map[uint64]*watcher),
	}
	if s.keyFuncs == nil {
		s.keyFuncs = map[string]KeyFunc{}
	}
	if s.interfaces == nil {
		s.interfaces = map[string][]string{}
	}
	return s
}

// PutRecord merges partial over the existing snapshot at id per the
// putRecord contract (§4.1): arrays/ref-lists replace, scalars/refs
// overwrite, nested plain objects shallow-merge, KindUndefined deletes.
func (s *Store) PutRecord(id record.ID, partial record.Snapshot) error {
	if id == "" {
		return &cacheerr.InvalidRecordIDErr{ID: string(id), Reason: "empty id"}
	}
	if typename := id.Typename(); typename != "" {
		if tv, ok := partial["__typename"]; ok {
			if scalar, ok := tv.AsScalar(); ok {
				if got, _ := scalar.(string); got != "" && got != typename {
					if !s.isInterfaceConcrete(typename, got) {
						return &cacheerr.TypeMismatchErr{ID: string(id), Expected: typename, Got: got}
					}
				}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[id]
	if !ok {
		existing = record.Snapshot{}
	}
	s.records[id] = existing.Merge(partial)
	return nil
}

func (s *Store) isInterfaceConcrete(typename, got string) bool {
	for _, c := range s.interfaces[typename] {
		if c == got {
			return true
		}
	}
	return false
}

// GetRecord returns the base (non-overlaid) snapshot at id, resolving
// interface ids to whichever concrete member currently exists.
func (s *Store) GetRecord(id record.ID) (record.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRecordLocked(id)
}

func (s *Store) getRecordLocked(id record.ID) (record.Snapshot, bool) {
	if snap, ok := s.records[id]; ok {
		return snap, true
	}
	typename := id.Typename()
	if concretes, ok := s.interfaces[typename]; ok {
		rawID := string(id)
		suffix := rawID[len(typename)+1:]
		for _, concrete := range concretes {
			concreteID, err := record.EntityID(concrete, suffix)
			if err != nil {
				continue
			}
			if snap, ok := s.records[concreteID]; ok {
				return snap, true
			}
		}
	}
	return nil, false
}

// Identify consults user key functions, then the "id" field, to compute the
// record-id for a decoded entity-shaped object. Returns false if the object
// is unidentifiable (and should be embedded into its parent instead).
func (s *Store) Identify(typename string, obj map[string]interface{}) (record.ID, bool) {
	s.mu.Lock()
	keyFunc := s.keyFuncs[typename]
	s.mu.Unlock()

	if keyFunc != nil {
		if key, ok := keyFunc(obj); ok && key != "" {
			id, err := record.EntityID(typename, key)
			if err != nil {
				return "", false
			}
			return id, true
		}
		return "", false
	}

	raw, ok := obj["id"]
	if !ok || raw == nil {
		return "", false
	}
	idStr, ok := scalarToIDString(raw)
	if !ok {
		return "", false
	}
	id, err := record.EntityID(typename, idStr)
	if err != nil {
		return "", false
	}
	return id, true
}

func scalarToIDString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return trimFloat(t), true
	case int:
		return trimInt(int64(t)), true
	case int64:
		return trimInt(t), true
	default:
		return "", false
	}
}

// Keys returns the record-ids currently stored, in a stable (sorted) order.
func (s *Store) Keys() []record.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.ID, 0, len(s.records))
	for id := range s.records {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear empties all records and notifies a global reset (every live
// watcher is invoked).
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = make(map[record.ID]record.Snapshot)
	callbacks := make([]func(), 0, len(s.watchers))
	for _, w := range s.watchers {
		callbacks = append(callbacks, w.callback)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Subscribe registers a watcher invoked whenever Notify is called with a
// changed-key set intersecting deps. It returns a handle whose Unsubscribe
// removes the watcher; Unsubscribe is idempotent.
type Handle struct {
	id    uint64
	store *Store
	once  sync.Once
}

func (h *Handle) Unsubscribe() {
	h.once.Do(func() {
		h.store.mu.Lock()
		delete(h.store.watchers, h.id)
		h.store.mu.Unlock()
	})
}

func (s *Store) Subscribe(deps map[record.ID]struct{}, callback func()) *Handle {
	s.mu.Lock()
	s.nextWatch++
	id := s.nextWatch
	s.watchers[id] = &watcher{id: id, deps: deps, callback: callback}
	s.mu.Unlock()
	return &Handle{id: id, store: s}
}

// Notify runs every watcher whose deps intersect changedKeys, deduplicated
// within this call: each matching watcher's callback fires at most once.
func (s *Store) Notify(changedKeys map[record.ID]struct{}) {
	if len(changedKeys) == 0 {
		return
	}
	s.mu.Lock()
	var toRun []func()
	for _, w := range s.watchers {
		for k := range changedKeys {
			if _, ok := w.deps[k]; ok {
				toRun = append(toRun, w.callback)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, cb := range toRun {
		cb()
	}
}

// Dehydrate serializes every stored record for SSR handoff.
func (s *Store) Dehydrate() []RecordPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordPair, 0, len(s.records))
	ids := make([]record.ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out = append(out, RecordPair{ID: id, Snapshot: s.records[id]})
	}
	return out
}

// RecordPair is one (id, snapshot) entry of a dehydrated graph.
type RecordPair struct {
	ID       record.ID
	Snapshot record.Snapshot
}

// Hydrate clears the graph and restores it from a prior Dehydrate call.
func (s *Store) Hydrate(pairs []RecordPair) error {
	records := make(map[record.ID]record.Snapshot, len(pairs))
	for _, p := range pairs {
		if p.ID == "" {
			return oops.Errorf("hydrate: empty record id")
		}
		records[p.ID] = p.Snapshot
	}

	s.mu.Lock()
	s.records = records
	callbacks := make([]func(), 0, len(s.watchers))
	for _, w := range s.watchers {
		callbacks = append(callbacks, w.callback)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return nil
}
