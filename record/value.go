package record

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindUndefined marks an absent field; putRecord treats writing this as
	// removing the field entirely.
	KindUndefined Kind = iota
	KindScalar
	KindObject
	KindRef
	KindRefList
	KindArray
)

// Value is the tagged union every record field resolves to: a scalar, an
// embedded plain object, a single reference, a reference list, or an array
// of any of those (including nested arrays).
//
// This replaces the dynamically-typed {__ref}/{__refs}/scalar union of the
// source representation with an explicit, switch-on-tag variant.
type Value struct {
	kind    Kind
	scalar  interface{}
	object  map[string]Value
	ref     ID
	refList []ID
	array   []Value
}

// Undefined is the zero Value, distinct from Scalar(nil).
var Undefined = Value{kind: KindUndefined}

// Scalar wraps a string, number, boolean, or nil leaf value.
func Scalar(v interface{}) Value { return Value{kind: KindScalar, scalar: v} }

// Object wraps an embedded plain object (no identity of its own).
func Object(m map[string]Value) Value { return Value{kind: KindObject, object: m} }

// Ref wraps a single reference to another record.
func Ref(id ID) Value { return Value{kind: KindRef, ref: id} }

// RefList wraps an ordered reference list.
func RefList(ids []ID) Value { return Value{kind: KindRefList, refList: append([]ID(nil), ids...)} }

// Array wraps an ordered sequence of values of any variant.
func Array(vs []Value) Value { return Value{kind: KindArray, array: append([]Value(nil), vs...)} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

func (v Value) AsScalar() (interface{}, bool) {
	if v.kind != KindScalar {
		return nil, false
	}
	return v.scalar, true
}

func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.object, true
}

func (v Value) AsRef() (ID, bool) {
	if v.kind != KindRef {
		return "", false
	}
	return v.ref, true
}

func (v Value) AsRefList() ([]ID, bool) {
	if v.kind != KindRefList {
		return nil, false
	}
	return v.refList, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.array, true
}

// Equal performs a structural comparison of two values; the tests use it
// to check writeDocument's idempotence.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined:
		return true
	case KindScalar:
		return scalarEqual(a.scalar, b.scalar)
	case KindObject:
		if len(a.object) != len(b.object) {
			return false
		}
		for k, av := range a.object {
			bv, ok := b.object[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindRef:
		return a.ref == b.ref
	case KindRefList:
		if len(a.refList) != len(b.refList) {
			return false
		}
		for i := range a.refList {
			if a.refList[i] != b.refList[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.array) != len(b.array) {
			return false
		}
		for i := range a.array {
			if !Equal(a.array[i], b.array[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func scalarEqual(a, b interface{}) bool {
	return a == b
}

// Snapshot is a mapping from field-key to a Value, the unit of storage for
// one record in the graph store.
type Snapshot map[string]Value

// Clone returns a shallow copy of s safe to mutate independently.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge applies partial over s per the putRecord contract: arrays and
// reference-list values replace, scalars and refs overwrite, nested plain
// objects shallow-merge, and KindUndefined fields are deleted.
func (s Snapshot) Merge(partial Snapshot) Snapshot {
	out := s.Clone()
	for k, v := range partial {
		if v.IsUndefined() {
			delete(out, k)
			continue
		}
		if v.kind == KindObject {
			if existing, ok := out[k]; ok && existing.kind == KindObject {
				merged := existing.object
				if merged == nil {
					merged = map[string]Value{}
				} else {
					clone := make(map[string]Value, len(merged))
					for ek, ev := range merged {
						clone[ek] = ev
					}
					merged = clone
				}
				for ok2, ov := range v.object {
					if ov.IsUndefined() {
						delete(merged, ok2)
					} else {
						merged[ok2] = ov
					}
				}
				out[k] = Object(merged)
				continue
			}
		}
		out[k] = v
	}
	return out
}
