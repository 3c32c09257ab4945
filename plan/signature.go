package plan

import (
	"fmt"

	"github.com/samsheth/graphcache/internal/stablejson"
	"github.com/samsheth/graphcache/record"
)

// MakeVarsKey returns a stable JSON encoding of the subset of vars named by
// mode's variable mask, in the order named in spec.md §3: equal under deep
// equality of the masked variables regardless of key order in vars itself.
func (p *Plan) MakeVarsKey(mode VarsMode, vars map[string]interface{}) string {
	names := mode.names(p.VarMask)
	masked := make(map[string]interface{}, len(names))
	for _, n := range names {
		if v, ok := vars[n]; ok {
			masked[n] = v
		}
	}
	return stablejson.Marshal(masked)
}

// MakeSignature returns "<id>|<mode>|<varsKey>", the key used for inflight
// de-duplication and watcher identity.
func (p *Plan) MakeSignature(mode VarsMode, vars map[string]interface{}) string {
	return fmt.Sprintf("%d|%d|%s", p.ID, mode, p.MakeVarsKey(mode, vars))
}

// GetDependencies computes the union of dependency keys for this plan given
// vars: every field's field-key, plus the canonical connection key of every
// connection field whose scope is known statically — a connection field
// sitting directly on the root selection, where the canonical scope is
// always "" (record.RootID). normalize.Writer and materialize.Reader key a
// nested connection's canonical record by the runtime-resolved id of its
// enclosing entity (graph.Store.Identify against the actual response or
// stored data; see writeConnection/readConnection), which a plan can't
// reproduce from vars alone — nothing short of the normalized data names
// that id. collectDependencies therefore only emits a canonical key where
// it can match the record the engine actually writes; a nested connection
// still contributes its own field-key dependency, so a write that touches
// it is not silently unobserved, just tracked at field-key rather than
// canonical-key granularity. Watchers get exact nested-connection
// invalidation from materialize.LiveResult's read-time access tracking
// instead.
func (p *Plan) GetDependencies(mode VarsMode, vars map[string]interface{}) (map[string]struct{}, error) {
	names := mode.names(p.VarMask)
	masked := make(map[string]interface{}, len(names))
	for _, n := range names {
		if v, ok := vars[n]; ok {
			masked[n] = v
		}
	}
	deps := map[string]struct{}{}
	if err := collectDependencies(p.Root, masked, record.RootID, deps); err != nil {
		return nil, err
	}
	return deps, nil
}

func collectDependencies(fields []*PlanField, vars map[string]interface{}, scopeID record.ID, deps map[string]struct{}) error {
	for _, f := range fields {
		key, err := f.FieldKey(vars)
		if err != nil {
			return err
		}
		deps[key] = struct{}{}

		if f.IsConnection && scopeID == record.RootID {
			identity, err := f.IdentityJSON(vars)
			if err != nil {
				return err
			}
			deps[string(record.CanonicalID("", f.ConnectionKey, identity))] = struct{}{}
		}

		if len(f.SelectionSet) > 0 {
			// Any field with children moves dependency computation off the
			// root scope: the child's real scope is whatever entity id this
			// field's object resolves to at normalize time, which is exactly
			// the unknown collectDependencies can't reproduce. A non-root
			// placeholder is enough to suppress emitting a canonical key we
			// can't get right; its exact value is never read.
			childScope := scopeID
			if childScope == record.RootID {
				childScope = record.ID(key)
			}
			if err := collectDependencies(f.SelectionSet, vars, childScope, deps); err != nil {
				return err
			}
		}
	}
	return nil
}

// Field looks up an immediate root field by response key.
func (p *Plan) Field(responseKey string) (*PlanField, bool) {
	f, ok := p.rootMap[responseKey]
	return f, ok
}
