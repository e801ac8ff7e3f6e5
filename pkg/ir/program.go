package ir

import "fmt"

// Loc identifies a CFG program point within one function. Locations are
// allocated by AddLoc and are unique per function; the zero Loc is invalid.
type Loc int

// Param is one formal parameter with its declared type.
type Param struct {
	Name string
	Type string
}

// Function is one CFG function: parameters, a variable type table, and for
// each location the simultaneous assignments to compute there plus the
// outgoing transitions. Functions are built once by a parser and read-only
// afterwards.
type Function struct {
	name    string
	params  []Param
	retType string

	types   map[string]string
	locs    int
	initLoc Loc
	descs   map[Loc]string
	exprs   map[Loc][]Assign
	trans   map[Loc]map[bool]Loc
	callers []string
}

// NewFunction creates a function with the given signature. Parameter types
// are entered into the type table.
func NewFunction(name string, params []Param, retType string) *Function {
	f := &Function{
		name:    name,
		params:  params,
		retType: retType,
		types:   make(map[string]string),
		descs:   make(map[Loc]string),
		exprs:   make(map[Loc][]Assign),
		trans:   make(map[Loc]map[bool]Loc),
	}
	for _, p := range params {
		f.types[p.Name] = p.Type
	}
	return f
}

func (f *Function) Name() string    { return f.name }
func (f *Function) Params() []Param { return f.params }
func (f *Function) RetType() string { return f.retType }

// DeclareType records a variable's declared type. Redeclaration overwrites;
// the parser is responsible for consistency.
func (f *Function) DeclareType(name, typ string) {
	f.types[name] = typ
}

// Type returns a variable's declared type, or AnyType when undeclared.
func (f *Function) Type(name string) string {
	if t, ok := f.types[name]; ok {
		return t
	}
	return AnyType
}

// Vars returns the names of all declared variables. Order is unspecified.
func (f *Function) Vars() []string {
	names := make([]string, 0, len(f.types))
	for name := range f.types {
		names = append(names, name)
	}
	return names
}

// AddLoc allocates a new location with an optional human-readable
// description. The first location added becomes the initial location.
func (f *Function) AddLoc(desc string) Loc {
	f.locs++
	loc := Loc(f.locs)
	if desc != "" {
		f.descs[loc] = desc
	}
	if f.initLoc == 0 {
		f.initLoc = loc
	}
	return loc
}

// InitLoc returns the function's initial location (zero if no location was
// ever added).
func (f *Function) InitLoc() Loc { return f.initLoc }

// NumLocs returns how many locations the function has.
func (f *Function) NumLocs() int { return f.locs }

// Desc returns a location's description, or empty.
func (f *Function) Desc(loc Loc) string { return f.descs[loc] }

// AddExpr appends an assignment to a location's ordered expression list.
func (f *Function) AddExpr(loc Loc, target string, e Expr) {
	f.exprs[loc] = append(f.exprs[loc], Assign{Var: target, Expr: e})
}

// Exprs returns the ordered assignments at a location. The returned slice
// must not be modified.
func (f *Function) Exprs(loc Loc) []Assign { return f.exprs[loc] }

// AddTrans records an outgoing edge. Unconditional edges are keyed true;
// two-way locations carry both a true and a false edge.
func (f *Function) AddTrans(loc Loc, cond bool, target Loc) {
	edges := f.trans[loc]
	if edges == nil {
		edges = make(map[bool]Loc, 2)
		f.trans[loc] = edges
	}
	edges[cond] = target
}

// NumTrans returns how many outgoing edges a location has: zero (terminal),
// one (unconditional) or two (condition-keyed).
func (f *Function) NumTrans(loc Loc) int { return len(f.trans[loc]) }

// Trans returns the destination for a location under the given condition
// value.
func (f *Function) Trans(loc Loc, cond bool) (Loc, bool) {
	target, ok := f.trans[loc][cond]
	return target, ok
}

// AddCaller records that another function calls this one. The engine never
// reads this; it exists for call-graph-aware tooling.
func (f *Function) AddCaller(name string) {
	f.callers = append(f.callers, name)
}

// Callers lists the recorded calling functions.
func (f *Function) Callers() []string { return f.callers }

// Program is a set of uniquely named functions.
type Program struct {
	name  string
	fncs  map[string]*Function
	order []string
}

// NewProgram creates an empty program. The name identifies the candidate
// (e.g. a submission id) in harness reports.
func NewProgram(name string) *Program {
	return &Program{name: name, fncs: make(map[string]*Function)}
}

func (p *Program) Name() string { return p.name }

// AddFn registers a function. Function names must be unique.
func (p *Program) AddFn(f *Function) error {
	if _, ok := p.fncs[f.Name()]; ok {
		return fmt.Errorf("duplicate function %q", f.Name())
	}
	p.fncs[f.Name()] = f
	p.order = append(p.order, f.Name())
	return nil
}

// Fn looks up a function by name.
func (p *Program) Fn(name string) (*Function, bool) {
	f, ok := p.fncs[name]
	return f, ok
}

// Fns returns all functions in registration order.
func (p *Program) Fns() []*Function {
	fncs := make([]*Function, 0, len(p.order))
	for _, name := range p.order {
		fncs = append(fncs, p.fncs[name])
	}
	return fncs
}
