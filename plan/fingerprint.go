package plan

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// fnv32 hashes s into a 32-bit stable fingerprint. This is an intentionally
// stdlib-only leaf: FNV-1a is the idiomatic Go default for a non-cryptographic
// hash of this kind (see hash/fnv's doc comment), and pulling in a
// third-party hash package would buy nothing over it.
func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// fingerprintPlan renders a canonical, human-readable shape of the plan's
// selection tree, argument names, and connection metadata. Two documents
// with structurally equal selections produce byte-identical fingerprints,
// which is what backs Plan.ID's stability guarantee.
func fingerprintPlan(p *Plan) string {
	var b strings.Builder
	b.WriteString(string(p.Operation))
	b.WriteByte('|')
	b.WriteString(p.RootTypename)
	b.WriteByte('\n')
	writeFieldsFingerprint(&b, p.Root, 0)
	return b.String()
}

func writeFieldsFingerprint(b *strings.Builder, fields []*PlanField, depth int) {
	indent := strings.Repeat("  ", depth)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.ResponseKey
	}
	for _, f := range fields {
		b.WriteString(indent)
		b.WriteString(f.ResponseKey)
		b.WriteByte(':')
		b.WriteString(f.FieldName)
		if len(f.ExpectedArgNames) > 0 {
			b.WriteByte('(')
			b.WriteString(strings.Join(f.ExpectedArgNames, ","))
			b.WriteByte(')')
		}
		if f.TypeCondition != "" {
			b.WriteString(" on ")
			b.WriteString(f.TypeCondition)
		}
		if f.IsConnection {
			b.WriteString(" @connection(key=")
			b.WriteString(f.ConnectionKey)
			b.WriteString(",mode=")
			b.WriteString(strconv.Itoa(int(f.ConnectionMode)))
			b.WriteString(",filters=")
			b.WriteString(strings.Join(f.ConnectionFilters, ","))
			b.WriteByte(')')
		}
		b.WriteByte('\n')
		if len(f.SelectionSet) > 0 {
			writeFieldsFingerprint(b, f.SelectionSet, depth+1)
		}
	}
}

// debugDump renders a deep, stable dump of v for diagnostics, using go-spew
// for deterministic, deeply recursive struct dumps instead of a hand-rolled
// recursive printer.
func debugDump(v interface{}) string {
	cfg := spew.ConfigState{Indent: "  ", SortKeys: true, DisableMethods: true}
	return cfg.Sdump(v)
}

// DebugDump renders a deep dump of the plan's field tree for diagnostics.
// The operation pipeline logs this once per newly compiled plan.
func (p *Plan) DebugDump() string {
	return debugDump(p.Root)
}
