// Package record defines the flat value model shared by every cache
// component: record identifiers and the tagged Value variant that
// replaces the dynamically-typed {__ref}/{__refs}/scalar union described in
// the cache's design notes.
package record

import (
	"strings"

	"github.com/samsarahq/go/oops"
)

// ID identifies a record in the graph store. It is either the fixed root id,
// an entity id of the form "Typename:id", a scoped sub-id, a field-key on a
// record, or a canonical connection id.
type ID string

// RootID is the fixed identifier for the top-level query/mutation record.
const RootID ID = "@"

const (
	entitySep    = ":"
	scopeSep     = "."
	canonicalTag = "@connection."
)

// EntityID builds the id for an entity of the given typename and raw id.
func EntityID(typename, id string) (ID, error) {
	if typename == "" || id == "" {
		return "", oops.Errorf("InvalidRecordId: empty typename or id")
	}
	if strings.Contains(typename, entitySep) || strings.Contains(id, entitySep) {
		return "", oops.Errorf("InvalidRecordId: typename/id must not contain %q", entitySep)
	}
	return ID(typename + entitySep + id), nil
}

// ScopedID builds a sub-id scoped under an existing record, e.g. the
// "<EntityId>.pageInfo" sub-record of a connection page.
func ScopedID(parent ID, suffix string) (ID, error) {
	if parent == "" || suffix == "" {
		return "", oops.Errorf("InvalidRecordId: empty parent or suffix")
	}
	return ID(string(parent) + scopeSep + suffix), nil
}

// FieldKeyID builds the id of a field-key record addressed off a parent
// record, e.g. 'posts({"first":3})'.
func FieldKeyID(parent ID, fieldKey string) (ID, error) {
	if fieldKey == "" {
		return "", oops.Errorf("InvalidRecordId: empty field key")
	}
	if parent == RootID {
		return ID(fieldKey), nil
	}
	return ScopedID(parent, fieldKey)
}

// PageKeyID builds the concrete page key "@." + parentId + "." + fieldKey.
func PageKeyID(parent ID, fieldKey string) (ID, error) {
	if fieldKey == "" {
		return "", oops.Errorf("InvalidRecordId: empty field key")
	}
	return ID("@." + string(parent) + "." + fieldKey), nil
}

// CanonicalID builds a canonical connection id:
// '@connection.<scope>.<key>(<identity>)', or '@connection.<key>(<identity>)'
// when scope is empty.
func CanonicalID(scope, key, identityJSON string) ID {
	prefix := ""
	if scope != "" {
		prefix = scope + scopeSep
	}
	return ID(canonicalTag + prefix + key + "(" + identityJSON + ")")
}

// Typename extracts the "<Typename>" portion of an entity id, or "" if id is
// not shaped like an entity id.
func (i ID) Typename() string {
	s := string(i)
	if s == "" || s == string(RootID) || strings.HasPrefix(s, canonicalTag) || strings.HasPrefix(s, "@.") {
		return ""
	}
	idx := strings.Index(s, entitySep)
	if idx <= 0 {
		return ""
	}
	return s[:idx]
}

// IsEntity reports whether i is shaped like "<Typename>:<id>".
func (i ID) IsEntity() bool {
	return i.Typename() != ""
}

// IsCanonicalConnection reports whether i addresses a canonical connection
// record.
func (i ID) IsCanonicalConnection() bool {
	return strings.HasPrefix(string(i), canonicalTag)
}

// WithTypename rewrites an interface-shaped entity id ("Iface:7") into the
// concrete typename ("Concrete:7"), preserving the raw id suffix.
func (i ID) WithTypename(concreteTypename string) (ID, error) {
	s := string(i)
	idx := strings.Index(s, entitySep)
	if idx <= 0 {
		return "", oops.Errorf("InvalidRecordId: %q is not an entity id", s)
	}
	return EntityID(concreteTypename, s[idx+1:])
}

func (i ID) String() string { return string(i) }
