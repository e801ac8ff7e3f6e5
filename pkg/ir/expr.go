package ir

import "strings"

// Reserved variable names. Parsers lower input consumption, printing,
// returns and branch conditions onto these; the engine treats them specially.
const (
	VarIn   = "$in"
	VarOut  = "$out"
	VarRet  = "$ret"
	VarCond = "$cond"
)

// AnyType is the declared type of untyped temporaries.
const AnyType = "*"

// Expr is one node of an expression tree: a variable read, a literal
// constant, or a named operator applied to argument expressions.
type Expr interface {
	expr()
	String() string
}

// Var reads a variable from the activation's memory.
type Var struct {
	Name string
	// Type is the variable's static type when the parser knows it,
	// otherwise empty.
	Type string
}

func (Var) expr() {}

func (v Var) String() string { return v.Name }

// Const is a literal token. Its lexical shape (quoting, digits, decimal
// point) is interpreted by the active language plugin.
type Const struct {
	Value string
}

func (Const) expr() {}

func (c Const) String() string { return c.Value }

// Op applies a named operator to ordered argument expressions. Beyond the
// structural operators the engine implements itself, operator names are
// resolved by the active language plugin.
type Op struct {
	Name string
	Args []Expr
}

func (Op) expr() {}

func (o Op) String() string {
	parts := make([]string, len(o.Args))
	for i, a := range o.Args {
		parts[i] = a.String()
	}
	return o.Name + "(" + strings.Join(parts, ", ") + ")"
}

// NewOp is a convenience constructor for operator nodes.
func NewOp(name string, args ...Expr) Op {
	return Op{Name: name, Args: args}
}

// Assign pairs a target variable with the expression computed for it at a
// location. All assignments of one location take effect simultaneously.
type Assign struct {
	Var  string
	Expr Expr
}
