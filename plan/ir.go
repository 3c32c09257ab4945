package plan

// The IR below is produced once from a parsed GraphQL document (see
// parse.go) and is the only thing the rest of the planner touches. Isolating
// the graphql-go/graphql AST behind this translation keeps the bulk of the
// planner's logic (argument building, connection classification, key
// construction, fingerprinting) independent of the parser library's node
// shapes.

type irOperation struct {
	kind         string // "query" | "mutation" | "subscription"
	name         string
	varNames     []string // declared operation variables, in document order
	selectionSet *irSelectionSet
}

type irSelectionSet struct {
	fields []*irField
}

type irField struct {
	alias        string
	name         string
	args         []ObjectEntry
	directives   []irDirective
	selectionSet *irSelectionSet // nil for leaf scalar/enum fields
}

type irDirective struct {
	name string
	args []ObjectEntry
}

func (d irDirective) arg(name string) (ArgSpec, bool) {
	for _, e := range d.args {
		if e.Key == name {
			return e.Value, true
		}
	}
	return nil, false
}

func (f *irField) directive(name string) (irDirective, bool) {
	for _, d := range f.directives {
		if d.name == name {
			return d, true
		}
	}
	return irDirective{}, false
}

func (f *irField) responseKey() string {
	if f.alias != "" {
		return f.alias
	}
	return f.name
}
