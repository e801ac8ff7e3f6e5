package interp

import (
	"strings"

	"github.com/bruggerl/clara/pkg/ir"
	"github.com/bruggerl/clara/pkg/runtime"
)

// boundEval is the Evaluator handed to plugin builtins: ec's dispatch bound
// to one activation's memory.
type boundEval struct {
	ec  *execContext
	mem *runtime.Memory
}

func (b boundEval) Eval(e ir.Expr) (runtime.Value, error) {
	return b.ec.eval(e, b.mem)
}

// eval dispatches on expression kind. All reads see the pre-step memory.
func (ec *execContext) eval(e ir.Expr, mem *runtime.Memory) (runtime.Value, error) {
	switch n := e.(type) {
	case ir.Var:
		return mem.Get(n.Name), nil
	case ir.Const:
		v, err := ec.sem.ParseConst(n.Value)
		if err != nil {
			return nil, wrapExpr(err, n)
		}
		return v, nil
	case ir.Op:
		v, err := ec.evalOp(n, mem)
		if err != nil {
			return nil, wrapExpr(err, n)
		}
		return v, nil
	default:
		return nil, Errf(ErrRuntime, "cannot evaluate %T", e)
	}
}

func (ec *execContext) evalOp(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	name := op.Name

	// Logical short-circuit belongs to the engine; operand coercion stays
	// with the plugin.
	if (name == "&&" || name == "||") && len(op.Args) == 2 {
		return ec.evalShortCircuit(op, mem)
	}

	if len(op.Args) == 1 && ec.sem.IsUnaryOp(name) {
		x, err := ec.eval(op.Args[0], mem)
		if err != nil {
			return nil, err
		}
		return ec.sem.EvalUnary(name, x)
	}

	if ec.sem.IsBinaryOp(name) {
		if len(op.Args) != 2 {
			return nil, Errf(ErrRuntime, "got %d args for binary op %q", len(op.Args), name)
		}
		x, err := ec.eval(op.Args[0], mem)
		if err != nil {
			return nil, err
		}
		y, err := ec.eval(op.Args[1], mem)
		if err != nil {
			return nil, err
		}
		return ec.sem.EvalBinary(name, x, y)
	}

	switch name {
	case "[]":
		return ec.evalArrayIndex(op, mem)
	case "ArrayCreate":
		return ec.evalArrayCreate(op, mem)
	case "ArrayInit":
		return ec.evalArrayInit(op, mem)
	case "ArrayAssign":
		return ec.evalArrayAssign(op, mem)
	case "ite":
		return ec.evalIte(op, mem)
	case "StrAppend":
		return ec.evalStrAppend(op, mem)
	case "StrFormat":
		return ec.evalStrFormat(op, mem)
	case "ListHead":
		return ec.evalListHead(op, mem)
	case "ListTail":
		return ec.evalListTail(op, mem)
	case "FuncCall":
		return ec.evalFuncCall(op, mem)
	}

	if b, ok := ec.sem.Builtin(name); ok {
		return b(boundEval{ec: ec, mem: mem}, op.Args)
	}
	return nil, Errf(ErrRuntime, "unknown operator %q", name)
}

func (ec *execContext) evalShortCircuit(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	left, err := ec.eval(op.Args[0], mem)
	if err != nil {
		return nil, err
	}
	x, err := ec.sem.ToNumeric(left)
	if err != nil {
		return nil, err
	}
	if op.Name == "||" && runtime.Truthy(x) {
		return x, nil
	}
	if op.Name == "&&" && !runtime.Truthy(x) {
		return runtime.IntValue{Val: 0}, nil
	}
	right, err := ec.eval(op.Args[1], mem)
	if err != nil {
		return nil, err
	}
	return ec.sem.ToNumeric(right)
}

// toIndex coerces an index expression's value to an integer through the
// plugin's numeric domain, truncating floats.
func (ec *execContext) toIndex(v runtime.Value) (int, error) {
	n, err := ec.sem.ToNumeric(v)
	if err != nil {
		return 0, err
	}
	switch num := n.(type) {
	case runtime.IntValue:
		return int(num.Val), nil
	case runtime.FloatValue:
		return int(num.Val), nil
	}
	return 0, Errf(ErrType, "non-integer index '%s'", n)
}

func (ec *execContext) asArray(v runtime.Value) (*runtime.ArrayValue, error) {
	arr, ok := v.(*runtime.ArrayValue)
	if !ok {
		return nil, Errf(ErrType, "expected array, got '%s'", v)
	}
	return arr, nil
}

func (ec *execContext) evalArrayIndex(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) != 2 {
		return nil, Errf(ErrRuntime, "got %d args for '[]'", len(op.Args))
	}
	v, err := ec.eval(op.Args[0], mem)
	if err != nil {
		return nil, err
	}
	arr, err := ec.asArray(v)
	if err != nil {
		return nil, err
	}
	iv, err := ec.eval(op.Args[1], mem)
	if err != nil {
		return nil, err
	}
	i, err := ec.toIndex(iv)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= arr.Len() {
		return nil, Errf(ErrIndex, "array index out of bounds: %d", i)
	}
	return arr.Elems[i], nil
}

func (ec *execContext) evalArrayCreate(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) != 1 {
		return nil, Errf(ErrRuntime, "got %d args for ArrayCreate", len(op.Args))
	}
	v, err := ec.eval(op.Args[0], mem)
	if err != nil {
		return nil, err
	}
	n, err := ec.toIndex(v)
	if err != nil {
		return nil, err
	}
	return runtime.NewArray(n), nil
}

func (ec *execContext) evalArrayInit(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	elems := make([]runtime.Value, len(op.Args))
	for i, a := range op.Args {
		v, err := ec.eval(a, mem)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return &runtime.ArrayValue{Elems: elems}, nil
}

// evalArrayAssign yields a copy of the array with one element replaced; the
// original is untouched so committed snapshots stay immutable.
func (ec *execContext) evalArrayAssign(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) != 3 {
		return nil, Errf(ErrRuntime, "got %d args for ArrayAssign", len(op.Args))
	}
	v, err := ec.eval(op.Args[0], mem)
	if err != nil {
		return nil, err
	}
	arr, err := ec.asArray(v)
	if err != nil {
		return nil, err
	}
	iv, err := ec.eval(op.Args[1], mem)
	if err != nil {
		return nil, err
	}
	i, err := ec.toIndex(iv)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= arr.Len() {
		return nil, Errf(ErrIndex, "array index out of bounds: %d", i)
	}
	elem, err := ec.eval(op.Args[2], mem)
	if err != nil {
		return nil, err
	}
	out := runtime.Copy(arr).(*runtime.ArrayValue)
	out.Elems[i] = elem
	return out, nil
}

// evalIte lazily evaluates only the taken branch.
func (ec *execContext) evalIte(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) != 3 {
		return nil, Errf(ErrRuntime, "got %d args for ite", len(op.Args))
	}
	cond, err := ec.eval(op.Args[0], mem)
	if err != nil {
		return nil, err
	}
	if runtime.Truthy(cond) {
		return ec.eval(op.Args[1], mem)
	}
	return ec.eval(op.Args[2], mem)
}

func (ec *execContext) evalListHead(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) != 2 {
		return nil, Errf(ErrRuntime, "got %d args for ListHead", len(op.Args))
	}
	typ, ok := op.Args[0].(ir.Const)
	if !ok {
		return nil, Errf(ErrRuntime, "ListHead type must be a constant")
	}
	v, err := ec.eval(op.Args[1], mem)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(*runtime.ArrayValue)
	if !ok || arr.Len() == 0 {
		return nil, Errf(ErrRuntime, "ListHead on '%s'", v)
	}
	return ec.sem.Convert(arr.Elems[0], typ.Value)
}

func (ec *execContext) evalListTail(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) != 1 {
		return nil, Errf(ErrRuntime, "got %d args for ListTail", len(op.Args))
	}
	v, err := ec.eval(op.Args[0], mem)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(*runtime.ArrayValue)
	if !ok || arr.Len() == 0 {
		return nil, Errf(ErrRuntime, "ListTail on '%s'", v)
	}
	rest := make([]runtime.Value, arr.Len()-1)
	copy(rest, arr.Elems[1:])
	return &runtime.ArrayValue{Elems: rest}, nil
}

// isOutput reports whether an append targets the reserved output variable,
// directly or through a nested operator argument.
func isOutput(op ir.Op) bool {
	for _, a := range op.Args {
		switch arg := a.(type) {
		case ir.Var:
			if arg.Name == ir.VarOut {
				return true
			}
		case ir.Op:
			if isOutput(arg) {
				return true
			}
		}
	}
	return false
}

// evalStrAppend renders and escape-decodes appended values. Appends that
// target the output variable are additionally filtered through the
// configured normalization pattern and pushed onto the run's output channel;
// the operator then yields only the newly appended text.
func (ec *execContext) evalStrAppend(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) > 1 && isOutput(op) {
		var sb strings.Builder
		for _, a := range op.Args[1:] {
			v, err := ec.eval(a, mem)
			if err != nil {
				return nil, err
			}
			s := unescape(v.String())
			if ec.filter != nil {
				matches := ec.filter.FindAllString(s, -1)
				if len(matches) == 0 {
					continue
				}
				s = strings.Join(matches, "")
			}
			sb.WriteString(s)
		}
		val := sb.String()
		ec.output.WriteString(val)
		return runtime.StringValue{Val: val}, nil
	}

	var sb strings.Builder
	for _, a := range op.Args {
		v, err := ec.eval(a, mem)
		if err != nil {
			return nil, err
		}
		sb.WriteString(unescape(v.String()))
	}
	return runtime.StringValue{Val: sb.String()}, nil
}

func (ec *execContext) evalStrFormat(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) == 0 {
		return nil, Errf(ErrRuntime, "StrFormat needs a format argument")
	}
	fv, err := ec.eval(op.Args[0], mem)
	if err != nil {
		return nil, err
	}
	format, ok := fv.(runtime.StringValue)
	if !ok {
		return nil, Errf(ErrRuntime, "expected string for format, got '%s'", fv)
	}
	args := make([]runtime.Value, len(op.Args)-1)
	for i, a := range op.Args[1:] {
		v, err := ec.eval(a, mem)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	out, err := formatValues(format.Val, args)
	if err != nil {
		return nil, err
	}
	return runtime.StringValue{Val: out}, nil
}

// evalFuncCall runs a nested activation to completion and yields its return
// value. The input/output channel crosses the call boundary un-copied; all
// other callee variables are activation-local.
func (ec *execContext) evalFuncCall(op ir.Op, mem *runtime.Memory) (runtime.Value, error) {
	if len(op.Args) == 0 {
		return nil, Errf(ErrRuntime, "FuncCall without a callee")
	}
	callee, ok := op.Args[0].(ir.Var)
	if !ok {
		return nil, Errf(ErrRuntime, "FuncCall callee must be a name")
	}
	fnc, ok := ec.prog.Fn(callee.Name)
	if !ok {
		return nil, Errf(ErrUnknownFunction, "unknown function %q", callee.Name)
	}

	args := make([]runtime.Value, len(op.Args)-1)
	for i, a := range op.Args[1:] {
		v, err := ec.eval(a, mem)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	callMem, err := ec.newActivation(fnc, mem.Get(ir.VarIn), mem.Get(ir.VarOut), args)
	if err != nil {
		return nil, err
	}

	savedFn, savedLoc := ec.fn, ec.loc
	err = ec.execFunction(fnc, callMem)
	ec.fn, ec.loc = savedFn, savedLoc
	if err != nil {
		return nil, err
	}
	return ec.trace.Final().Get(ir.VarRet), nil
}
