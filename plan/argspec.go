package plan

import (
	"sort"

	"github.com/samsarahq/go/oops"
)

// ArgSpec is a small bytecode/AST for building a field's arguments from
// operation variables, as prescribed by the cache's design notes in place of
// source-level argument-building closures: it serializes cleanly for plan
// caching and evaluates the same way every time for a given vars map.
type ArgSpec interface {
	// Eval resolves the spec against vars, returning a value built from
	// nil/bool/float64/string/json.Number/map[string]interface{}/[]interface{}.
	Eval(vars map[string]interface{}) (interface{}, error)
	isArgSpec()
}

// Var resolves to the named operation variable.
type Var struct {
	Name string
}

func (Var) isArgSpec() {}

func (v Var) Eval(vars map[string]interface{}) (interface{}, error) {
	val, ok := vars[v.Name]
	if !ok {
		return nil, nil
	}
	return val, nil
}

// Const resolves to a fixed literal value, decoded from the document text at
// compile time.
type Const struct {
	Value interface{}
}

func (Const) isArgSpec() {}

func (c Const) Eval(vars map[string]interface{}) (interface{}, error) {
	return c.Value, nil
}

// Array resolves each item in order.
type Array struct {
	Items []ArgSpec
}

func (Array) isArgSpec() {}

func (a Array) Eval(vars map[string]interface{}) (interface{}, error) {
	out := make([]interface{}, len(a.Items))
	for i, item := range a.Items {
		v, err := item.Eval(vars)
		if err != nil {
			return nil, oops.Wrapf(err, "evaluating array item %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// ObjectEntry is one key/value pair of an Object ArgSpec.
type ObjectEntry struct {
	Key   string
	Value ArgSpec
}

// Object resolves each entry in declared order into a map. Entries whose
// evaluated value is nil (an elided/undefined variable) are dropped.
type Object struct {
	Entries []ObjectEntry
}

func (Object) isArgSpec() {}

func (o Object) Eval(vars map[string]interface{}) (interface{}, error) {
	out := make(map[string]interface{}, len(o.Entries))
	for _, e := range o.Entries {
		v, err := e.Value.Eval(vars)
		if err != nil {
			return nil, oops.Wrapf(err, "evaluating object entry %q", e.Key)
		}
		if v == nil {
			continue
		}
		out[e.Key] = v
	}
	return out, nil
}

// ArgNames returns the sorted, deduplicated set of argument names declared
// on spec (top-level map keys), used to compute expectedArgNames/pageArgs.
func ArgNames(entries []ObjectEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Key)
	}
	sort.Strings(names)
	out := names[:0]
	for _, n := range names {
		if len(out) == 0 || out[len(out)-1] != n {
			out = append(out, n)
		}
	}
	return out
}
