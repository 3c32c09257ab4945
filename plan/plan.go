// Package plan implements the Document Planner (component B): compiling a
// GraphQL document once into a value-typed, side-effect-free Plan that
// precomputes selection trees, argument builders, stable field keys,
// variable masks, dependency sets, and a plan identity.
package plan

import (
	"sort"

	"github.com/samsarahq/go/oops"

	"github.com/samsheth/graphcache/internal/stablejson"
)

// OperationKind is the kind of GraphQL operation a Plan was compiled from.
type OperationKind string

const (
	OperationQuery        OperationKind = "query"
	OperationMutation     OperationKind = "mutation"
	OperationSubscription OperationKind = "subscription"
)

// ConnectionMode selects how the canonical connection engine merges pages
// for one connection field.
type ConnectionMode int

const (
	// ConnectionModeInfinite merges pages via splice-at-cursor (§4.5.3).
	ConnectionModeInfinite ConnectionMode = iota
	// ConnectionModePage replaces the canonical record wholesale on every
	// fetch (§4.5.2).
	ConnectionModePage
)

// ConnectionFieldConfig declares that a field is a connection and how it
// should be merged, overriding the @connection-directive/heuristic
// detection in compile's classification step.
type ConnectionFieldConfig struct {
	Mode ConnectionMode
	// Args, when non-empty, is the explicit connectionFilters list; when
	// empty, connectionFilters defaults to all non-window args.
	Args []string
}

// Options configures compile.
type Options struct {
	// Connections maps parentType -> fieldName -> config. parentType is
	// the root operation typename ("Query"/"Mutation"/"Subscription") for
	// top-level fields; for nested fields it is the enclosing field's
	// type condition when it has one, else the enclosing field's name.
	// "" matches any parent type not otherwise listed.
	Connections map[string]map[string]ConnectionFieldConfig
	// WindowArgs overrides the default {first,last,after,before} window
	// argument set.
	WindowArgs []string
	// OperationName selects which operation in a multi-operation document
	// to compile; required only when document has more than one.
	OperationName string
	// RootTypename overrides the default "Query"/"Mutation"/"Subscription"
	// naming for connection-config lookups at the root level.
	RootTypename string
}

var defaultWindowArgs = []string{"first", "last", "after", "before"}

// PlanField is one field of a compiled selection tree.
type PlanField struct {
	ResponseKey string
	FieldName   string

	SelectionSet []*PlanField
	SelectionMap map[string]*PlanField

	args            []ObjectEntry
	ExpectedArgNames []string

	IsConnection      bool
	ConnectionKey     string
	ConnectionFilters []string
	ConnectionMode    ConnectionMode
	PageArgs          []string

	TypeCondition string

	// SelID is a stable per-field identifier (its position in a
	// depth-first enumeration of the plan).
	SelID int
}

// BuildArgs evaluates the field's argument tree against vars.
func (f *PlanField) BuildArgs(vars map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(f.args))
	for _, e := range f.args {
		v, err := e.Value.Eval(vars)
		if err != nil {
			return nil, oops.Wrapf(err, "building arg %q for field %q", e.Key, f.ResponseKey)
		}
		if v == nil {
			continue
		}
		out[e.Key] = v
	}
	return out, nil
}

// StringifyArgs emits a stable JSON object over the field's resolved
// arguments using ascending key order; undefined args are elided.
func (f *PlanField) StringifyArgs(vars map[string]interface{}) (string, error) {
	args, err := f.BuildArgs(vars)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}
	generic := make(map[string]interface{}, len(args))
	for k, v := range args {
		generic[k] = v
	}
	return stablejson.Marshal(generic), nil
}

// FieldKey computes the record field-key for this field given vars: the
// field name alone when args stringify empty, else "name(args)".
func (f *PlanField) FieldKey(vars map[string]interface{}) (string, error) {
	args, err := f.StringifyArgs(vars)
	if err != nil {
		return "", err
	}
	if args == "" || args == "{}" {
		return f.FieldName, nil
	}
	return f.FieldName + "(" + args + ")", nil
}

// IdentityJSON computes the stable JSON of this field's connectionFilters
// (or all non-window args) for canonical connection key construction.
func (f *PlanField) IdentityJSON(vars map[string]interface{}) (string, error) {
	args, err := f.BuildArgs(vars)
	if err != nil {
		return "", err
	}
	filters := f.ConnectionFilters
	identity := make(map[string]interface{}, len(filters))
	for _, name := range filters {
		if v, ok := args[name]; ok {
			identity[name] = v
		}
	}
	return stablejson.Marshal(identity), nil
}

// Plan is the compiled, immutable descriptor of a document.
type Plan struct {
	Operation     OperationKind
	RootTypename  string
	Root          []*PlanField
	rootMap       map[string]*PlanField
	NetworkQuery  string
	ID            uint32
	VarMask       VarMask
	WindowArgs    map[string]bool
	SelectionFingerprint string

	allFields []*PlanField // depth-first enumeration, indexed by SelID
}

// VarMask carries the two ordered variable-name lists used by
// makeVarsKey/makeSignature: strict includes every declared variable,
// canonical elides window arguments.
type VarMask struct {
	Strict    []string
	Canonical []string
}

// VarsMode selects which VarMask list makeVarsKey/makeSignature/
// getDependencies use.
type VarsMode int

const (
	ModeStrict VarsMode = iota
	ModeCanonical
)

func (m VarsMode) names(mask VarMask) []string {
	if m == ModeCanonical {
		return mask.Canonical
	}
	return mask.Strict
}

// Compile parses document and compiles it into a Plan.
func Compile(document string, opts Options) (*Plan, error) {
	op, err := parseDocument(document, opts.OperationName)
	if err != nil {
		return nil, err
	}

	windowArgs := defaultWindowArgs
	if len(opts.WindowArgs) > 0 {
		windowArgs = opts.WindowArgs
	}
	windowSet := make(map[string]bool, len(windowArgs))
	for _, a := range windowArgs {
		windowSet[a] = true
	}

	rootTypename := opts.RootTypename
	if rootTypename == "" {
		switch op.kind {
		case string(OperationMutation):
			rootTypename = "Mutation"
		case string(OperationSubscription):
			rootTypename = "Subscription"
		default:
			rootTypename = "Query"
		}
	}

	b := &builder{
		connections: opts.Connections,
		windowArgs:  windowSet,
	}

	root, err := b.buildFields(op.selectionSet, rootTypename)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Operation:    OperationKind(op.kind),
		RootTypename: rootTypename,
		Root:         root,
		rootMap:      fieldMap(root),
		WindowArgs:   windowSet,
		allFields:    b.allFields,
	}

	varNames := op.varNames
	p.VarMask.Strict = varNames
	for _, name := range varNames {
		if !windowSet[name] {
			p.VarMask.Canonical = append(p.VarMask.Canonical, name)
		}
	}

	p.SelectionFingerprint = fingerprintPlan(p)
	p.ID = fnv32(p.SelectionFingerprint)
	p.NetworkQuery = document

	return p, nil
}

func fieldMap(fields []*PlanField) map[string]*PlanField {
	m := make(map[string]*PlanField, len(fields))
	for _, f := range fields {
		m[f.ResponseKey] = f
	}
	return m
}

type builder struct {
	connections map[string]map[string]ConnectionFieldConfig
	windowArgs  map[string]bool
	allFields   []*PlanField
}

func (b *builder) buildFields(set *irSelectionSet, parentType string) ([]*PlanField, error) {
	if set == nil {
		return nil, nil
	}
	out := make([]*PlanField, 0, len(set.fields))
	for _, irf := range set.fields {
		pf, err := b.buildField(irf, parentType)
		if err != nil {
			return nil, err
		}
		out = append(out, pf)
	}
	return out, nil
}

func (b *builder) buildField(irf *irField, parentType string) (*PlanField, error) {
	pf := &PlanField{
		ResponseKey: irf.responseKey(),
		FieldName:   irf.name,
		args:        irf.args,
		SelID:       len(b.allFields),
	}
	pf.ExpectedArgNames = ArgNames(irf.args)
	if tc, ok := irf.directive("__typeCondition"); ok {
		if spec, ok := tc.arg("on"); ok {
			if v, err := spec.Eval(nil); err == nil {
				if s, ok := v.(string); ok {
					pf.TypeCondition = s
				}
			}
		}
	}

	b.allFields = append(b.allFields, pf)

	childType := pf.TypeCondition
	if childType == "" {
		childType = pf.FieldName
	}

	if irf.selectionSet != nil {
		children, err := b.buildFields(irf.selectionSet, childType)
		if err != nil {
			return nil, err
		}
		pf.SelectionSet = children
		pf.SelectionMap = fieldMap(children)
	}

	b.classifyConnection(pf, irf, parentType)

	return pf, nil
}

func (b *builder) classifyConnection(pf *PlanField, irf *irField, parentType string) {
	cfg, hasCfg := b.lookupConnectionConfig(parentType, pf.FieldName)

	_, hasDirective := irf.directive("connection")
	hasEdgesAndPageInfo := hasSubfields(pf, "edges", "pageInfo")

	isConnection := hasDirective || hasCfg || hasEdgesAndPageInfo
	if !isConnection {
		return
	}
	pf.IsConnection = true

	mode := ConnectionModeInfinite
	if hasCfg {
		mode = cfg.Mode
	}
	pf.ConnectionMode = mode

	connectionKey := pf.FieldName
	var explicitFilters []string
	if d, ok := irf.directive("connection"); ok {
		if keySpec, ok := d.arg("key"); ok {
			if v, err := keySpec.Eval(nil); err == nil {
				if s, ok := v.(string); ok && s != "" {
					connectionKey = s
				}
			}
		}
		if filtersSpec, ok := d.arg("filters"); ok {
			if v, err := filtersSpec.Eval(nil); err == nil {
				if list, ok := v.([]interface{}); ok {
					for _, item := range list {
						if s, ok := item.(string); ok {
							explicitFilters = append(explicitFilters, s)
						}
					}
				}
			}
		}
	}
	if hasCfg && len(cfg.Args) > 0 {
		explicitFilters = cfg.Args
	}
	pf.ConnectionKey = connectionKey

	if len(explicitFilters) > 0 {
		sort.Strings(explicitFilters)
		pf.ConnectionFilters = explicitFilters
	} else {
		var nonWindow []string
		for _, name := range pf.ExpectedArgNames {
			if !b.windowArgs[name] {
				nonWindow = append(nonWindow, name)
			}
		}
		pf.ConnectionFilters = nonWindow
	}

	var pageArgs []string
	for _, name := range pf.ExpectedArgNames {
		if b.windowArgs[name] {
			pageArgs = append(pageArgs, name)
		}
	}
	pf.PageArgs = pageArgs
}

func (b *builder) lookupConnectionConfig(parentType, fieldName string) (ConnectionFieldConfig, bool) {
	if byField, ok := b.connections[parentType]; ok {
		if cfg, ok := byField[fieldName]; ok {
			return cfg, true
		}
	}
	if byField, ok := b.connections[""]; ok {
		if cfg, ok := byField[fieldName]; ok {
			return cfg, true
		}
	}
	return ConnectionFieldConfig{}, false
}

func hasSubfields(pf *PlanField, names ...string) bool {
	if pf.SelectionMap == nil {
		return false
	}
	for _, n := range names {
		if _, ok := pf.SelectionMap[n]; !ok {
			return false
		}
	}
	return true
}
