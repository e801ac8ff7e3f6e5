package java

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bruggerl/clara/pkg/interp"
	"github.com/bruggerl/clara/pkg/ir"
	"github.com/bruggerl/clara/pkg/runtime"
)

// Builtin resolves the plugin's named operator library.
func (s *Semantics) Builtin(name string) (interp.Builtin, bool) {
	if name == "cast" {
		return s.castBuiltin, true
	}
	b, ok := builtins[name]
	return b, ok
}

// castBuiltin implements the explicit cast the parser lowers to
// cast(typeConst, expr). The type argument stays unevaluated.
func (s *Semantics) castBuiltin(ev interp.Evaluator, args []ir.Expr) (runtime.Value, error) {
	if len(args) != 2 {
		return nil, interp.Errf(interp.ErrType, "cast expects 2 arguments, got %d", len(args))
	}
	typ, ok := args[0].(ir.Const)
	if !ok {
		return nil, interp.Errf(interp.ErrType, "cast type must be a constant")
	}
	v, err := ev.Eval(args[1])
	if err != nil {
		return nil, err
	}
	return s.Convert(v, typ.Value)
}

// strict wraps a builtin body with arity checking and eager argument
// evaluation, which is all most builtins need.
func strict(name string, arity int, fn func(args []runtime.Value) (runtime.Value, error)) interp.Builtin {
	return func(ev interp.Evaluator, exprs []ir.Expr) (runtime.Value, error) {
		if len(exprs) != arity {
			return nil, interp.Errf(interp.ErrType, "%s expects %d arguments, got %d", name, arity, len(exprs))
		}
		args := make([]runtime.Value, len(exprs))
		for i, e := range exprs {
			v, err := ev.Eval(e)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return fn(args)
	}
}

var builtins = map[string]interp.Builtin{
	"Length":    strict("Length", 1, builtinLength),
	"Substring": strict("Substring", 3, builtinSubstring),
	"IndexOf":   strict("IndexOf", 2, builtinIndexOf),
	"Replace":   strict("Replace", 3, builtinReplace),
	"CharAt":    strict("CharAt", 2, builtinCharAt),
	"ArrayCopy": strict("ArrayCopy", 2, builtinArrayCopy),
	"Sort":      strict("Sort", 1, builtinSort),
	"Abs":       strict("Abs", 1, builtinAbs),
	"Min":       strict("Min", 2, builtinMin),
	"Max":       strict("Max", 2, builtinMax),
	"Floor":     strict("Floor", 1, mathBuiltin("Floor", math.Floor)),
	"Ceil":      strict("Ceil", 1, mathBuiltin("Ceil", math.Ceil)),
	"Sqrt":      strict("Sqrt", 1, mathBuiltin("Sqrt", math.Sqrt)),
	"Log":       strict("Log", 1, mathBuiltin("Log", math.Log)),
	"Pow":       strict("Pow", 2, builtinPow),
}

func builtinLength(args []runtime.Value) (runtime.Value, error) {
	switch v := args[0].(type) {
	case runtime.StringValue:
		return runtime.IntValue{Val: int64(utf8.RuneCountInString(v.Val))}, nil
	case *runtime.ArrayValue:
		return runtime.IntValue{Val: int64(v.Len())}, nil
	}
	return nil, interp.Errf(interp.ErrType, "Length on '%s'", args[0])
}

func builtinSubstring(args []runtime.Value) (runtime.Value, error) {
	s, ok := args[0].(runtime.StringValue)
	if !ok {
		return nil, interp.Errf(interp.ErrType, "Substring on '%s'", args[0])
	}
	from, err := toInt(args[1])
	if err != nil {
		return nil, err
	}
	to, err := toInt(args[2])
	if err != nil {
		return nil, err
	}
	runes := []rune(s.Val)
	if from < 0 || to > int64(len(runes)) || from > to {
		return nil, interp.Errf(interp.ErrIndex, "substring bounds [%d, %d) for length %d", from, to, len(runes))
	}
	return runtime.StringValue{Val: string(runes[from:to])}, nil
}

func builtinIndexOf(args []runtime.Value) (runtime.Value, error) {
	s, ok := args[0].(runtime.StringValue)
	sub, ok2 := args[1].(runtime.StringValue)
	if !ok || !ok2 {
		return nil, interp.Errf(interp.ErrType, "IndexOf needs string arguments")
	}
	// Rune index, like CharAt and Substring.
	b := strings.Index(s.Val, sub.Val)
	if b < 0 {
		return runtime.IntValue{Val: -1}, nil
	}
	return runtime.IntValue{Val: int64(utf8.RuneCountInString(s.Val[:b]))}, nil
}

func builtinReplace(args []runtime.Value) (runtime.Value, error) {
	s, ok := args[0].(runtime.StringValue)
	old, ok2 := args[1].(runtime.StringValue)
	new_, ok3 := args[2].(runtime.StringValue)
	if !ok || !ok2 || !ok3 {
		return nil, interp.Errf(interp.ErrType, "Replace needs string arguments")
	}
	return runtime.StringValue{Val: strings.ReplaceAll(s.Val, old.Val, new_.Val)}, nil
}

func builtinCharAt(args []runtime.Value) (runtime.Value, error) {
	s, ok := args[0].(runtime.StringValue)
	if !ok {
		return nil, interp.Errf(interp.ErrType, "CharAt on '%s'", args[0])
	}
	i, err := toInt(args[1])
	if err != nil {
		return nil, err
	}
	runes := []rune(s.Val)
	if i < 0 || i >= int64(len(runes)) {
		return nil, interp.Errf(interp.ErrIndex, "string index out of bounds: %d", i)
	}
	return runtime.IntValue{Val: int64(runes[i])}, nil
}

// builtinArrayCopy mirrors Arrays.copyOf: a fresh array of the requested
// length, truncated or padded with unset elements.
func builtinArrayCopy(args []runtime.Value) (runtime.Value, error) {
	arr, ok := args[0].(*runtime.ArrayValue)
	if !ok {
		return nil, interp.Errf(interp.ErrType, "ArrayCopy on '%s'", args[0])
	}
	n, err := toInt(args[1])
	if err != nil {
		return nil, err
	}
	out := runtime.NewArray(int(n))
	for i := 0; i < len(out.Elems) && i < arr.Len(); i++ {
		out.Elems[i] = runtime.Copy(arr.Elems[i])
	}
	return out, nil
}

func builtinSort(args []runtime.Value) (runtime.Value, error) {
	arr, ok := args[0].(*runtime.ArrayValue)
	if !ok {
		return nil, interp.Errf(interp.ErrType, "Sort on '%s'", args[0])
	}
	keys := make([]float64, arr.Len())
	for i, el := range arr.Elems {
		switch n := el.(type) {
		case runtime.IntValue:
			keys[i] = float64(n.Val)
		case runtime.FloatValue:
			keys[i] = n.Val
		default:
			return nil, interp.Errf(interp.ErrType, "Sort on non-numeric element '%s'", el)
		}
	}
	out := runtime.Copy(arr).(*runtime.ArrayValue)
	sort.SliceStable(out.Elems, func(i, j int) bool {
		return asFloat(out.Elems[i]) < asFloat(out.Elems[j])
	})
	return out, nil
}

func asFloat(v runtime.Value) float64 {
	switch n := v.(type) {
	case runtime.IntValue:
		return float64(n.Val)
	case runtime.FloatValue:
		return n.Val
	}
	return 0
}

func builtinAbs(args []runtime.Value) (runtime.Value, error) {
	switch n := args[0].(type) {
	case runtime.IntValue:
		if n.Val < 0 {
			return runtime.IntValue{Val: -n.Val}, nil
		}
		return n, nil
	case runtime.FloatValue:
		return runtime.FloatValue{Val: math.Abs(n.Val)}, nil
	}
	return nil, interp.Errf(interp.ErrType, "Abs on '%s'", args[0])
}

func builtinMin(args []runtime.Value) (runtime.Value, error) { return minMax(args, true) }
func builtinMax(args []runtime.Value) (runtime.Value, error) { return minMax(args, false) }

// minMax follows binary promotion: an all-integer comparison stays integer.
func minMax(args []runtime.Value, min bool) (runtime.Value, error) {
	xi, xok := args[0].(runtime.IntValue)
	yi, yok := args[1].(runtime.IntValue)
	if xok && yok {
		if (xi.Val < yi.Val) == min {
			return xi, nil
		}
		return yi, nil
	}
	for _, a := range args {
		switch a.(type) {
		case runtime.IntValue, runtime.FloatValue:
		default:
			return nil, interp.Errf(interp.ErrType, "Min/Max on '%s'", a)
		}
	}
	x, y := asFloat(args[0]), asFloat(args[1])
	if (x < y) == min {
		return runtime.FloatValue{Val: x}, nil
	}
	return runtime.FloatValue{Val: y}, nil
}

func mathBuiltin(name string, fn func(float64) float64) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		switch n := args[0].(type) {
		case runtime.IntValue:
			return runtime.FloatValue{Val: fn(float64(n.Val))}, nil
		case runtime.FloatValue:
			return runtime.FloatValue{Val: fn(n.Val)}, nil
		}
		return nil, interp.Errf(interp.ErrType, "%s on '%s'", name, args[0])
	}
}

func builtinPow(args []runtime.Value) (runtime.Value, error) {
	for _, a := range args {
		switch a.(type) {
		case runtime.IntValue, runtime.FloatValue:
		default:
			return nil, interp.Errf(interp.ErrType, "Pow on '%s'", a)
		}
	}
	return runtime.FloatValue{Val: math.Pow(asFloat(args[0]), asFloat(args[1]))}, nil
}
