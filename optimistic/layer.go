// Package optimistic implements the optimistic mutation layer (component
// F): a transactional, ordered overlay over the base graph. Overlays are
// composed with base records lazily at read time and never call
// graph.Store.PutRecord (§5's shared resource policy).
package optimistic

import (
	"sync"

	"github.com/samsheth/graphcache/record"
)

// Position selects where an optimistic add inserts relative to a
// connection's existing edges.
type Position int

const (
	PositionStart Position = iota
	PositionEnd
	PositionBeforeCursor
	PositionAfterCursor
)

type addMutation struct {
	canonicalKey record.ID
	node         record.ID // entity id of the inserted node
	nodeSnapshot record.Snapshot
	cursor       string // the new edge's own cursor, synthesized by the caller
	position     Position
	anchorCursor string // for BeforeCursor/AfterCursor: the existing edge's cursor to position against
}

type removeMutation struct {
	canonicalKey record.ID
	node         record.ID
}

type fragmentMutation struct {
	id      record.ID
	partial record.Snapshot
}

// mutation is the structured record of one call against the transaction
// surface, tagged by which field is non-nil.
type mutation struct {
	add      *addMutation
	remove   *removeMutation
	fragment *fragmentMutation
}

// Transaction is one optimistic transaction: an ordered sequence of
// mutations, addressed by a caller-supplied or layer-assigned id.
type Transaction struct {
	ID        string
	Mutations []mutation
}

// Layer holds the ordered log of live optimistic transactions.
type Layer struct {
	mu           sync.Mutex
	transactions []*Transaction
	nextID       uint64

	// onReplay is invoked by replay, after ModifyOptimistic and Revert, with
	// the set of dependency keys whose visible value may have changed; the owning Cache wires
	// this to graph.Store.Notify so watchers re-materialize.
	onReplay func(map[record.ID]struct{})
}

// New creates an empty optimistic Layer.
func New(onReplay func(map[record.ID]struct{})) *Layer {
	return &Layer{onReplay: onReplay}
}

// Handle lets a caller commit or revert a transaction begun with
// ModifyOptimistic.
type Handle struct {
	layer *Layer
	tx    *Transaction
	done  bool
}

// TxSurface is the transactional surface exposed to a ModifyOptimistic
// callback.
type TxSurface struct {
	layer *Layer
	tx    *Transaction
}

// ConnectionSurface exposes addNode/removeNode against one canonical
// connection within a transaction.
type ConnectionSurface struct {
	tx           *Transaction
	canonicalKey record.ID
}

// Connection returns a builder scoped to the canonical connection addressed
// by canonicalKey (callers compute canonicalKey via the same construction
// rules the planner/engine use).
func (s *TxSurface) Connection(canonicalKey record.ID) *ConnectionSurface {
	return &ConnectionSurface{tx: s.tx, canonicalKey: canonicalKey}
}

// AddNodeOptions configures one AddNode call. Cursor is the new edge's own
// cursor (may be a client-synthesized placeholder); AnchorCursor is the
// existing edge's cursor to position against and is required for
// PositionBeforeCursor/PositionAfterCursor, ignored otherwise.
type AddNodeOptions struct {
	Position     Position
	Cursor       string
	AnchorCursor string
}

// AddNode inserts node (an entity id plus its optimistic snapshot) into the
// connection at the stated position.
func (c *ConnectionSurface) AddNode(node record.ID, snapshot record.Snapshot, opts AddNodeOptions) {
	c.tx.Mutations = append(c.tx.Mutations, mutation{add: &addMutation{
		canonicalKey: c.canonicalKey,
		node:         node,
		nodeSnapshot: snapshot,
		position:     opts.Position,
		cursor:       opts.Cursor,
		anchorCursor: opts.AnchorCursor,
	}})
}

// RemoveNode filters node out of the connection's edges by identity.
func (c *ConnectionSurface) RemoveNode(node record.ID) {
	c.tx.Mutations = append(c.tx.Mutations, mutation{remove: &removeMutation{
		canonicalKey: c.canonicalKey,
		node:         node,
	}})
}

// WriteFragment overlays partial onto the record addressed by id.
func (s *TxSurface) WriteFragment(id record.ID, partial record.Snapshot) {
	s.tx.Mutations = append(s.tx.Mutations, mutation{fragment: &fragmentMutation{id: id, partial: partial}})
}

// ModifyOptimistic runs fn against a fresh transaction, commits its
// mutations into the log (visible to subsequent reads), and returns a
// handle for later revert. The transaction is visible immediately: callers
// wanting staged-then-committed semantics should call Commit/Revert
// explicitly.
func (l *Layer) ModifyOptimistic(fn func(*TxSurface)) *Handle {
	l.mu.Lock()
	l.nextID++
	tx := &Transaction{ID: idFromCounter(l.nextID)}
	l.mu.Unlock()

	fn(&TxSurface{layer: l, tx: tx})

	l.mu.Lock()
	l.transactions = append(l.transactions, tx)
	l.mu.Unlock()

	l.replay(tx)

	return &Handle{layer: l, tx: tx}
}

func idFromCounter(n uint64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 16)
	for n > 0 {
		buf = append(buf, digits[n%36])
		n /= 36
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// Commit is a no-op beyond marking the handle used: the transaction is
// already applied to the visible overlay from ModifyOptimistic onward. It
// exists to match the begin/commit/revert lifecycle of §3's Optimistic
// layer contract.
func (h *Handle) Commit() {
	h.done = true
}

// Revert drops the transaction and triggers a replay so dependents recompute
// without it.
func (h *Handle) Revert() {
	if h.done {
		return
	}
	h.done = true

	l := h.layer
	l.mu.Lock()
	for i, tx := range l.transactions {
		if tx == h.tx {
			l.transactions = append(l.transactions[:i], l.transactions[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	l.replay(h.tx)
}

// replay notifies dependents of every canonical/entity key a transaction's
// mutations touch.
func (l *Layer) replay(tx *Transaction) {
	if l.onReplay == nil {
		return
	}
	keys := map[record.ID]struct{}{}
	for _, m := range tx.Mutations {
		switch {
		case m.add != nil:
			keys[m.add.canonicalKey] = struct{}{}
		case m.remove != nil:
			keys[m.remove.canonicalKey] = struct{}{}
		case m.fragment != nil:
			keys[m.fragment.id] = struct{}{}
		}
	}
	l.onReplay(keys)
}

// snapshot returns the live transaction list in commit order, safe to range
// over without holding the lock.
func (l *Layer) snapshot() []*Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Transaction(nil), l.transactions...)
}
