// Package java implements the reference language semantics plugin: literal
// parsing, operator evaluation with Java's numeric promotion, and type
// conversion for a Java-like source language.
package java

import (
	"math"
	"strconv"
	"strings"

	"github.com/bruggerl/clara/pkg/interp"
	"github.com/bruggerl/clara/pkg/runtime"
)

// Lang is the registry key this plugin registers under.
const Lang = "java"

// Semantics is stateless; one value can serve any number of engines.
type Semantics struct{}

// New returns the Java semantics plugin.
func New() *Semantics { return &Semantics{} }

// Register binds the plugin into a registry under its language key.
func Register(r *interp.Registry) { r.Register(Lang, New()) }

var unaryOps = map[string]bool{
	"!": true, "-": true, "+": true,
}

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"==": true, "!=": true,
	"^": true, "&": true, "|": true,
	"&&": true, "||": true,
}

func (*Semantics) IsUnaryOp(name string) bool  { return unaryOps[name] }
func (*Semantics) IsBinaryOp(name string) bool { return binaryOps[name] }

// ParseConst disambiguates literals by lexical shape: `?` is the undefined
// sentinel, double quotes a string, single quotes a character (yielding its
// code point), then booleans, integers and floats.
func (*Semantics) ParseConst(text string) (runtime.Value, error) {
	if text == "?" {
		return runtime.Undef, nil
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return runtime.StringValue{Val: text[1 : len(text)-1]}, nil
	}
	if len(text) >= 3 && text[0] == '\'' && text[len(text)-1] == '\'' {
		ch := decodeCharEscapes(text[1 : len(text)-1])
		runes := []rune(ch)
		if len(runes) == 1 {
			return runtime.IntValue{Val: int64(runes[0])}, nil
		}
		return nil, interp.Errf(interp.ErrRuntime, "bad character literal %s", text)
	}
	switch text {
	case "true":
		return runtime.BoolValue{Val: true}, nil
	case "false":
		return runtime.BoolValue{Val: false}, nil
	case "null":
		return runtime.Unset, nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return runtime.IntValue{Val: n}, nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(text, "f"), "d"), 64); err == nil {
		return runtime.FloatValue{Val: f}, nil
	}
	return nil, interp.Errf(interp.ErrRuntime, "unknown constant: %s", text)
}

func decodeCharEscapes(s string) string {
	switch s {
	case `\t`:
		return "\t"
	case `\b`:
		return "\b"
	case `\n`:
		return "\n"
	case `\r`:
		return "\r"
	case `\'`:
		return "'"
	case `\"`:
		return `"`
	case `\\`:
		return `\`
	case `\0`:
		return "\x00"
	}
	return s
}

// ToNumeric admits ints, floats and booleans (as 0/1) into the numeric
// domain; everything else is a type error.
func (*Semantics) ToNumeric(v runtime.Value) (runtime.Value, error) {
	switch n := v.(type) {
	case runtime.IntValue, runtime.FloatValue:
		return v, nil
	case runtime.BoolValue:
		if n.Val {
			return runtime.IntValue{Val: 1}, nil
		}
		return runtime.IntValue{Val: 0}, nil
	}
	return nil, interp.Errf(interp.ErrType, "non-numeric value: '%s'", v)
}

// EvalUnary coerces the operand numerically first; `!` yields integer 0/1.
func (s *Semantics) EvalUnary(name string, x runtime.Value) (runtime.Value, error) {
	n, err := s.ToNumeric(x)
	if err != nil {
		return nil, err
	}
	switch name {
	case "+":
		return n, nil
	case "-":
		switch v := n.(type) {
		case runtime.IntValue:
			return runtime.IntValue{Val: -v.Val}, nil
		case runtime.FloatValue:
			return runtime.FloatValue{Val: -v.Val}, nil
		}
	case "!":
		if runtime.Truthy(n) {
			return runtime.IntValue{Val: 0}, nil
		}
		return runtime.IntValue{Val: 1}, nil
	}
	return nil, interp.Errf(interp.ErrRuntime, "unknown unary op: %q", name)
}

// EvalBinary applies order-independent promotion: if either operand is
// floating point, both widen to float. Bitwise operators require integers.
func (s *Semantics) EvalBinary(name string, x, y runtime.Value) (runtime.Value, error) {
	xn, err := s.ToNumeric(x)
	if err != nil {
		return nil, err
	}
	yn, err := s.ToNumeric(y)
	if err != nil {
		return nil, err
	}

	if xf, ok := xn.(runtime.FloatValue); ok {
		return evalFloatBinary(name, xf.Val, widenFloat(yn))
	}
	if yf, ok := yn.(runtime.FloatValue); ok {
		return evalFloatBinary(name, widenFloat(xn), yf.Val)
	}
	return evalIntBinary(name, xn.(runtime.IntValue).Val, yn.(runtime.IntValue).Val)
}

func widenFloat(v runtime.Value) float64 {
	switch n := v.(type) {
	case runtime.FloatValue:
		return n.Val
	case runtime.IntValue:
		return float64(n.Val)
	}
	return 0
}

func evalIntBinary(name string, x, y int64) (runtime.Value, error) {
	switch name {
	case "+":
		return runtime.IntValue{Val: x + y}, nil
	case "-":
		return runtime.IntValue{Val: x - y}, nil
	case "*":
		return runtime.IntValue{Val: x * y}, nil
	case "/":
		if y == 0 {
			return nil, interp.Errf(interp.ErrRuntime, "division by zero")
		}
		return runtime.IntValue{Val: x / y}, nil
	case "%":
		if y == 0 {
			return nil, interp.Errf(interp.ErrRuntime, "division by zero")
		}
		return runtime.IntValue{Val: x % y}, nil
	case "^":
		return runtime.IntValue{Val: x ^ y}, nil
	case "&":
		return runtime.IntValue{Val: x & y}, nil
	case "|":
		return runtime.IntValue{Val: x | y}, nil
	case "==":
		return runtime.BoolValue{Val: x == y}, nil
	case "!=":
		return runtime.BoolValue{Val: x != y}, nil
	case "<":
		return runtime.BoolValue{Val: x < y}, nil
	case "<=":
		return runtime.BoolValue{Val: x <= y}, nil
	case ">":
		return runtime.BoolValue{Val: x > y}, nil
	case ">=":
		return runtime.BoolValue{Val: x >= y}, nil
	}
	return nil, interp.Errf(interp.ErrRuntime, "unknown binary op: %q", name)
}

func evalFloatBinary(name string, x, y float64) (runtime.Value, error) {
	switch name {
	case "+":
		return runtime.FloatValue{Val: x + y}, nil
	case "-":
		return runtime.FloatValue{Val: x - y}, nil
	case "*":
		return runtime.FloatValue{Val: x * y}, nil
	case "/":
		if y == 0 {
			return nil, interp.Errf(interp.ErrRuntime, "division by zero")
		}
		return runtime.FloatValue{Val: x / y}, nil
	case "%":
		if y == 0 {
			return nil, interp.Errf(interp.ErrRuntime, "division by zero")
		}
		return runtime.FloatValue{Val: math.Mod(x, y)}, nil
	case "==":
		return runtime.BoolValue{Val: x == y}, nil
	case "!=":
		return runtime.BoolValue{Val: x != y}, nil
	case "<":
		return runtime.BoolValue{Val: x < y}, nil
	case "<=":
		return runtime.BoolValue{Val: x <= y}, nil
	case ">":
		return runtime.BoolValue{Val: x > y}, nil
	case ">=":
		return runtime.BoolValue{Val: x >= y}, nil
	case "^", "&", "|":
		return nil, interp.Errf(interp.ErrType, "bitwise %q on floating point", name)
	}
	return nil, interp.Errf(interp.ErrRuntime, "unknown binary op: %q", name)
}

// Convert coerces a value to a named declared type. Undef passes through
// untouched; `T[]` converts element-wise, leaving unset holes unset;
// unknown / any types pass values through unchanged.
func (s *Semantics) Convert(v runtime.Value, typ string) (runtime.Value, error) {
	if runtime.IsUndef(v) {
		return v, nil
	}
	if strings.HasSuffix(typ, "[]") {
		arr, ok := v.(*runtime.ArrayValue)
		if !ok {
			return nil, interp.Errf(interp.ErrType, "expected array, got '%s'", v)
		}
		elemType := strings.TrimSuffix(typ, "[]")
		elems := make([]runtime.Value, arr.Len())
		for i, el := range arr.Elems {
			if _, unset := el.(runtime.UnsetValue); unset {
				elems[i] = el
				continue
			}
			conv, err := s.Convert(el, elemType)
			if err != nil {
				return nil, err
			}
			elems[i] = conv
		}
		return &runtime.ArrayValue{Elems: elems}, nil
	}

	switch typ {
	case "int", "long", "short", "byte":
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return runtime.IntValue{Val: n}, nil
	case "float", "double":
		switch n := v.(type) {
		case runtime.FloatValue:
			return n, nil
		case runtime.IntValue:
			return runtime.FloatValue{Val: float64(n.Val)}, nil
		case runtime.BoolValue:
			if n.Val {
				return runtime.FloatValue{Val: 1}, nil
			}
			return runtime.FloatValue{Val: 0}, nil
		case runtime.StringValue:
			f, err := strconv.ParseFloat(n.Val, 64)
			if err != nil {
				return nil, interp.Errf(interp.ErrRuntime, "cannot convert '%s' to float", n.Val)
			}
			return runtime.FloatValue{Val: f}, nil
		}
		return nil, interp.Errf(interp.ErrType, "cannot convert '%s' to float", v)
	case "char":
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return runtime.IntValue{Val: ((n % 128) + 128) % 128}, nil
	default:
		// Covers "*", "String", "boolean", "void" and anything the
		// parser left opaque: values pass through unchanged.
		return v, nil
	}
}

func toInt(v runtime.Value) (int64, error) {
	switch n := v.(type) {
	case runtime.IntValue:
		return n.Val, nil
	case runtime.FloatValue:
		return int64(n.Val), nil
	case runtime.BoolValue:
		if n.Val {
			return 1, nil
		}
		return 0, nil
	case runtime.StringValue:
		i, err := strconv.ParseInt(strings.TrimSpace(n.Val), 10, 64)
		if err != nil {
			return 0, interp.Errf(interp.ErrRuntime, "cannot convert '%s' to int", n.Val)
		}
		return i, nil
	}
	return 0, interp.Errf(interp.ErrType, "cannot convert '%s' to int", v)
}
