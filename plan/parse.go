package plan

import (
	"encoding/json"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/samsarahq/go/oops"

	"github.com/samsheth/graphcache/cacheerr"
)

// parseDocument parses document text into one irOperation, selecting the
// named operation (or the lone operation when there is exactly one), and
// inlines every fragment spread/inline fragment into a flattened selection
// set the same way federation/normalize.go's flattener collapses fragments
// before the planner walks a query — except here there is no backing
// schema (compile/4.2 explicitly has no schema validator), so flattening is
// purely structural and fragments on interfaces/unions are preserved as a
// per-field typeCondition tag instead of being resolved against real types.
func parseDocument(document string, operationName string) (*irOperation, error) {
	doc, err := parser.Parse(parser.ParseParams{Source: document})
	if err != nil {
		return nil, cacheerr.NewPlanErr("parsing document: %v", err)
	}

	fragments := map[string]*ast.FragmentDefinition{}
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			if d.Name != nil {
				fragments[d.Name.Value] = d
			}
		case *ast.OperationDefinition:
			operations = append(operations, d)
		}
	}

	op, err := selectOperation(operations, operationName)
	if err != nil {
		return nil, err
	}

	f := &flattener{fragments: fragments}
	selSet, err := f.flattenSet(op.SelectionSet, nil)
	if err != nil {
		return nil, err
	}

	kind := op.Operation
	if kind == "" {
		kind = "query"
	}
	name := ""
	if op.Name != nil {
		name = op.Name.Value
	}

	var varNames []string
	for _, vd := range op.VariableDefinitions {
		if vd.Variable != nil && vd.Variable.Name != nil {
			varNames = append(varNames, vd.Variable.Name.Value)
		}
	}

	return &irOperation{kind: kind, name: name, varNames: varNames, selectionSet: selSet}, nil
}

func selectOperation(ops []*ast.OperationDefinition, operationName string) (*ast.OperationDefinition, error) {
	if len(ops) == 0 {
		return nil, cacheerr.NewPlanErr("document has no operation definitions")
	}
	if operationName == "" {
		if len(ops) > 1 {
			return nil, cacheerr.NewPlanErr("document has multiple operations; operationName required")
		}
		return ops[0], nil
	}
	for _, op := range ops {
		if op.Name != nil && op.Name.Value == operationName {
			return op, nil
		}
	}
	return nil, cacheerr.NewPlanErr("no operation named %q", operationName)
}

// flattener inlines fragment spreads and records an active typeCondition
// stack while descending into inline fragments / fragment definitions on
// interfaces or unions.
type flattener struct {
	fragments map[string]*ast.FragmentDefinition
	seen      map[string]bool
}

func (f *flattener) flattenSet(set *ast.SelectionSet, typeCondition []string) (*irSelectionSet, error) {
	if set == nil {
		return nil, nil
	}
	out := &irSelectionSet{}
	byKey := map[string]*irField{}
	var order []string

	var walk func(sel ast.Selection) error
	walk = func(sel ast.Selection) error {
		switch s := sel.(type) {
		case *ast.Field:
			field, err := f.buildField(s, typeCondition)
			if err != nil {
				return err
			}
			key := field.responseKey()
			if existing, ok := byKey[key]; ok {
				return mergeField(existing, field)
			}
			byKey[key] = field
			order = append(order, key)
			return nil

		case *ast.FragmentSpread:
			name := s.Name.Value
			if f.seen == nil {
				f.seen = map[string]bool{}
			}
			if f.seen[name] {
				return nil
			}
			f.seen[name] = true
			def, ok := f.fragments[name]
			if !ok {
				return cacheerr.NewPlanErr("unknown fragment %q", name)
			}
			cond := typeCondition
			if def.TypeCondition != nil && def.TypeCondition.Name != nil {
				cond = append(append([]string{}, typeCondition...), def.TypeCondition.Name.Value)
			}
			inner, err := f.flattenSet(def.SelectionSet, cond)
			delete(f.seen, name)
			if err != nil {
				return err
			}
			for _, field := range inner.fields {
				key := field.responseKey()
				if existing, ok := byKey[key]; ok {
					if err := mergeField(existing, field); err != nil {
						return err
					}
					continue
				}
				byKey[key] = field
				order = append(order, key)
			}
			return nil

		case *ast.InlineFragment:
			cond := typeCondition
			if s.TypeCondition != nil && s.TypeCondition.Name != nil {
				cond = append(append([]string{}, typeCondition...), s.TypeCondition.Name.Value)
			}
			inner, err := f.flattenSet(s.SelectionSet, cond)
			if err != nil {
				return err
			}
			for _, field := range inner.fields {
				key := field.responseKey()
				if existing, ok := byKey[key]; ok {
					if err := mergeField(existing, field); err != nil {
						return err
					}
					continue
				}
				byKey[key] = field
				order = append(order, key)
			}
			return nil

		default:
			return cacheerr.NewPlanErr("unsupported selection node")
		}
	}

	for _, sel := range set.Selections {
		if err := walk(sel); err != nil {
			return nil, err
		}
	}

	out.fields = make([]*irField, 0, len(order))
	for _, k := range order {
		out.fields = append(out.fields, byKey[k])
	}
	return out, nil
}

func mergeField(existing, incoming *irField) error {
	if existing.name != incoming.name {
		return cacheerr.NewPlanErr("two selections with same alias %q have different names (%s and %s)",
			existing.responseKey(), existing.name, incoming.name)
	}
	if incoming.selectionSet != nil {
		if existing.selectionSet == nil {
			existing.selectionSet = incoming.selectionSet
		} else {
			existing.selectionSet.fields = append(existing.selectionSet.fields, incoming.selectionSet.fields...)
		}
	}
	return nil
}

func (f *flattener) buildField(s *ast.Field, typeCondition []string) (*irField, error) {
	alias := ""
	if s.Alias != nil {
		alias = s.Alias.Value
	}
	name := ""
	if s.Name != nil {
		name = s.Name.Value
	}

	args, err := buildArgEntries(s.Arguments)
	if err != nil {
		return nil, oops.Wrapf(err, "field %s", name)
	}

	var directives []irDirective
	for _, d := range s.Directives {
		dname := ""
		if d.Name != nil {
			dname = d.Name.Value
		}
		dargs, err := buildArgEntries(d.Arguments)
		if err != nil {
			return nil, oops.Wrapf(err, "directive @%s", dname)
		}
		directives = append(directives, irDirective{name: dname, args: dargs})
	}

	var inner *irSelectionSet
	if s.SelectionSet != nil {
		inner, err = f.flattenSet(s.SelectionSet, nil)
		if err != nil {
			return nil, err
		}
	}

	field := &irField{
		alias:        alias,
		name:         name,
		args:         args,
		directives:   directives,
		selectionSet: inner,
	}
	_ = typeCondition // carried via directive metadata at read time; see normalize/materialize typeCondition handling
	if len(typeCondition) > 0 {
		field.directives = append(field.directives, irDirective{
			name: "__typeCondition",
			args: []ObjectEntry{{Key: "on", Value: Const{Value: typeCondition[len(typeCondition)-1]}}},
		})
	}
	return field, nil
}

func buildArgEntries(args []*ast.Argument) ([]ObjectEntry, error) {
	sorted := make([]*ast.Argument, len(args))
	copy(sorted, args)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name.Value < sorted[j].Name.Value })

	entries := make([]ObjectEntry, 0, len(sorted))
	for _, a := range sorted {
		spec, err := valueToArgSpec(a.Value)
		if err != nil {
			return nil, oops.Wrapf(err, "argument %s", a.Name.Value)
		}
		entries = append(entries, ObjectEntry{Key: a.Name.Value, Value: spec})
	}
	return entries, nil
}

func valueToArgSpec(v ast.Value) (ArgSpec, error) {
	switch val := v.(type) {
	case nil:
		return Const{Value: nil}, nil
	case *ast.Variable:
		return Var{Name: val.Name.Value}, nil
	case *ast.IntValue:
		var n json.Number = json.Number(val.Value)
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return Const{Value: f}, nil
	case *ast.FloatValue:
		n := json.Number(val.Value)
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return Const{Value: f}, nil
	case *ast.StringValue:
		return Const{Value: val.Value}, nil
	case *ast.BooleanValue:
		return Const{Value: val.Value}, nil
	case *ast.EnumValue:
		return Const{Value: val.Value}, nil
	case *ast.NullValue:
		return Const{Value: nil}, nil
	case *ast.ListValue:
		items := make([]ArgSpec, 0, len(val.Values))
		for _, item := range val.Values {
			spec, err := valueToArgSpec(item)
			if err != nil {
				return nil, err
			}
			items = append(items, spec)
		}
		return Array{Items: items}, nil
	case *ast.ObjectValue:
		fields := make([]*ast.ObjectField, len(val.Fields))
		copy(fields, val.Fields)
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name.Value < fields[j].Name.Value })
		entries := make([]ObjectEntry, 0, len(fields))
		for _, fld := range fields {
			spec, err := valueToArgSpec(fld.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, ObjectEntry{Key: fld.Name.Value, Value: spec})
		}
		return Object{Entries: entries}, nil
	default:
		return nil, cacheerr.NewPlanErr("unsupported argument value node")
	}
}
