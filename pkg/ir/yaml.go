package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML program documents are the wire format between parsers (which run in
// another process, often another language) and this engine. The shape:
//
//	name: submission-17
//	functions:
//	  - name: main
//	    params: [{name: n, type: int}]
//	    return: int
//	    types: {i: int, s: int}
//	    locations:
//	      - desc: at the beginning of function 'main'
//	        exprs:
//	          - var: i
//	            expr: {const: "0"}
//	        next: 2
//	      - desc: loop condition
//	        exprs:
//	          - var: $cond
//	            expr: {op: <, args: [{var: i}, {var: n}]}
//	        then: 3
//	        else: 4
//
// Locations are numbered by list position starting at 1; `next` is an
// unconditional edge, `then`/`else` the two-way edges.

type programDoc struct {
	Name      string        `yaml:"name,omitempty"`
	Functions []functionDoc `yaml:"functions"`
}

type functionDoc struct {
	Name      string            `yaml:"name"`
	Params    []paramDoc        `yaml:"params,omitempty"`
	Return    string            `yaml:"return"`
	Types     map[string]string `yaml:"types,omitempty"`
	Locations []locationDoc     `yaml:"locations"`
	Callers   []string          `yaml:"callers,omitempty"`
}

type paramDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type locationDoc struct {
	Desc  string      `yaml:"desc,omitempty"`
	Exprs []assignDoc `yaml:"exprs,omitempty"`
	Next  *int        `yaml:"next,omitempty"`
	Then  *int        `yaml:"then,omitempty"`
	Else  *int        `yaml:"else,omitempty"`
}

type assignDoc struct {
	Var  string   `yaml:"var"`
	Expr exprNode `yaml:"expr"`
}

// exprNode wraps Expr for YAML (de)serialization. Exactly one of the
// var/const/op forms must be present.
type exprNode struct {
	Expr Expr
}

type exprDoc struct {
	Var  string `yaml:"var,omitempty"`
	Type string `yaml:"type,omitempty"`
	// A value node, not a pointer: yaml.v3 only decodes into yaml.Node
	// fields held by value. Presence is signalled by a nonzero Kind.
	Const yaml.Node  `yaml:"const,omitempty"`
	Op    string     `yaml:"op,omitempty"`
	Args  []exprNode `yaml:"args,omitempty"`
}

func (n exprNode) MarshalYAML() (any, error) {
	switch e := n.Expr.(type) {
	case Var:
		return exprDoc{Var: e.Name, Type: e.Type}, nil
	case Const:
		return exprDoc{Const: yaml.Node{
			Kind:  yaml.ScalarNode,
			Style: yaml.DoubleQuotedStyle,
			Value: e.Value,
		}}, nil
	case Op:
		args := make([]exprNode, len(e.Args))
		for i, a := range e.Args {
			args[i] = exprNode{Expr: a}
		}
		return exprDoc{Op: e.Name, Args: args}, nil
	default:
		return nil, fmt.Errorf("cannot encode expression %v", n.Expr)
	}
}

func (n *exprNode) UnmarshalYAML(node *yaml.Node) error {
	var doc exprDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	switch {
	case doc.Var != "":
		n.Expr = Var{Name: doc.Var, Type: doc.Type}
	case doc.Const.Kind != 0:
		n.Expr = Const{Value: doc.Const.Value}
	case doc.Op != "":
		args := make([]Expr, len(doc.Args))
		for i, a := range doc.Args {
			args[i] = a.Expr
		}
		n.Expr = Op{Name: doc.Op, Args: args}
	default:
		return fmt.Errorf("expression at line %d has none of var/const/op", node.Line)
	}
	return nil
}

// EncodeProgram renders a program as a YAML document.
func EncodeProgram(p *Program) ([]byte, error) {
	doc := programDoc{Name: p.Name()}
	for _, f := range p.Fns() {
		fd := functionDoc{
			Name:    f.Name(),
			Return:  f.RetType(),
			Types:   make(map[string]string),
			Callers: f.Callers(),
		}
		for _, prm := range f.Params() {
			fd.Params = append(fd.Params, paramDoc{Name: prm.Name, Type: prm.Type})
		}
		paramNames := make(map[string]bool, len(f.Params()))
		for _, prm := range f.Params() {
			paramNames[prm.Name] = true
		}
		for _, name := range f.Vars() {
			if !paramNames[name] {
				fd.Types[name] = f.Type(name)
			}
		}
		if len(fd.Types) == 0 {
			fd.Types = nil
		}
		for loc := Loc(1); loc <= Loc(f.NumLocs()); loc++ {
			ld := locationDoc{Desc: f.Desc(loc)}
			for _, as := range f.Exprs(loc) {
				ld.Exprs = append(ld.Exprs, assignDoc{Var: as.Var, Expr: exprNode{Expr: as.Expr}})
			}
			switch f.NumTrans(loc) {
			case 1:
				target, _ := f.Trans(loc, true)
				ld.Next = intPtr(int(target))
			case 2:
				t, _ := f.Trans(loc, true)
				e, _ := f.Trans(loc, false)
				ld.Then = intPtr(int(t))
				ld.Else = intPtr(int(e))
			}
			fd.Locations = append(fd.Locations, ld)
		}
		doc.Functions = append(doc.Functions, fd)
	}
	return yaml.Marshal(doc)
}

// DecodeProgram parses a YAML program document.
func DecodeProgram(data []byte) (*Program, error) {
	var doc programDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	p := NewProgram(doc.Name)
	for _, fd := range doc.Functions {
		params := make([]Param, len(fd.Params))
		for i, prm := range fd.Params {
			params[i] = Param{Name: prm.Name, Type: prm.Type}
		}
		f := NewFunction(fd.Name, params, fd.Return)
		for name, typ := range fd.Types {
			f.DeclareType(name, typ)
		}
		for _, caller := range fd.Callers {
			f.AddCaller(caller)
		}
		for i, ld := range fd.Locations {
			loc := f.AddLoc(ld.Desc)
			for _, as := range ld.Exprs {
				f.AddExpr(loc, as.Var, as.Expr.Expr)
			}
			if ld.Next != nil && (ld.Then != nil || ld.Else != nil) {
				return nil, fmt.Errorf("function %q location %d mixes next with then/else", fd.Name, i+1)
			}
		}
		// Transitions refer to later locations, so wire them after all
		// locations exist.
		for i, ld := range fd.Locations {
			loc := Loc(i + 1)
			switch {
			case ld.Next != nil:
				if err := checkTarget(f, *ld.Next); err != nil {
					return nil, fmt.Errorf("function %q location %d: %w", fd.Name, i+1, err)
				}
				f.AddTrans(loc, true, Loc(*ld.Next))
			case ld.Then != nil || ld.Else != nil:
				if ld.Then == nil || ld.Else == nil {
					return nil, fmt.Errorf("function %q location %d needs both then and else", fd.Name, i+1)
				}
				if err := checkTarget(f, *ld.Then); err != nil {
					return nil, fmt.Errorf("function %q location %d: %w", fd.Name, i+1, err)
				}
				if err := checkTarget(f, *ld.Else); err != nil {
					return nil, fmt.Errorf("function %q location %d: %w", fd.Name, i+1, err)
				}
				f.AddTrans(loc, true, Loc(*ld.Then))
				f.AddTrans(loc, false, Loc(*ld.Else))
			}
		}
		if err := p.AddFn(f); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func checkTarget(f *Function, target int) error {
	if target < 1 || target > f.NumLocs() {
		return fmt.Errorf("transition target %d out of range", target)
	}
	return nil
}

func intPtr(v int) *int { return &v }
