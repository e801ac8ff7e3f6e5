package interp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bruggerl/clara/pkg/interp"
	"github.com/bruggerl/clara/pkg/ir"
	"github.com/bruggerl/clara/pkg/java"
	"github.com/bruggerl/clara/pkg/runtime"
)

func newEngine(t *testing.T, opts ...interp.Option) *interp.Interp {
	t.Helper()
	reg := interp.NewRegistry()
	java.Register(reg)
	eng, err := interp.New(reg, java.Lang, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func mustAddFn(t *testing.T, p *ir.Program, f *ir.Function) {
	t.Helper()
	if err := p.AddFn(f); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, eng *interp.Interp, p *ir.Program, entry string, ins, args []runtime.Value) *interp.Result {
	t.Helper()
	res, err := eng.Run(context.Background(), p, entry, ins, args)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

// progAppend42 prints "42" and returns 0 through a single branch-free
// location.
func progAppend42(t *testing.T) *ir.Program {
	p := ir.NewProgram("append42")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("print and return")
	f.AddExpr(l1, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"42"`}))
	f.AddExpr(l1, ir.VarRet, ir.Const{Value: "0"})
	mustAddFn(t, p, f)
	return p
}

// progSumArray sums [1,2,3] with a loop whose body location carries the
// two-way index-bound transition.
func progSumArray(t *testing.T) *ir.Program {
	p := ir.NewProgram("sum-array")
	f := ir.NewFunction("main", nil, "int")
	f.DeclareType("a", "int[]")
	f.DeclareType("s", "int")
	f.DeclareType("i", "int")

	l1 := f.AddLoc("init")
	l2 := f.AddLoc("loop body")
	l3 := f.AddLoc("done")

	f.AddExpr(l1, "a", ir.NewOp("ArrayInit", ir.Const{Value: "1"}, ir.Const{Value: "2"}, ir.Const{Value: "3"}))
	f.AddExpr(l1, "s", ir.Const{Value: "0"})
	f.AddExpr(l1, "i", ir.Const{Value: "0"})
	f.AddExpr(l1, ir.VarCond, ir.NewOp("<", ir.Const{Value: "0"}, ir.Const{Value: "3"}))
	f.AddTrans(l1, true, l2)
	f.AddTrans(l1, false, l3)

	f.AddExpr(l2, "s", ir.NewOp("+", ir.Var{Name: "s"}, ir.NewOp("[]", ir.Var{Name: "a"}, ir.Var{Name: "i"})))
	f.AddExpr(l2, "i", ir.NewOp("+", ir.Var{Name: "i"}, ir.Const{Value: "1"}))
	f.AddExpr(l2, ir.VarCond, ir.NewOp("<", ir.NewOp("+", ir.Var{Name: "i"}, ir.Const{Value: "1"}), ir.Const{Value: "3"}))
	f.AddTrans(l2, true, l2)
	f.AddTrans(l2, false, l3)

	f.AddExpr(l3, ir.VarRet, ir.Var{Name: "s"})
	mustAddFn(t, p, f)
	return p
}

// progFactorial recurses down to zero.
func progFactorial(t *testing.T) *ir.Program {
	p := ir.NewProgram("factorial")
	f := ir.NewFunction("fact", []ir.Param{{Name: "n", Type: "int"}}, "int")
	l1 := f.AddLoc("check")
	l2 := f.AddLoc("recurse")
	l3 := f.AddLoc("base")

	f.AddExpr(l1, ir.VarCond, ir.NewOp(">", ir.Var{Name: "n"}, ir.Const{Value: "0"}))
	f.AddTrans(l1, true, l2)
	f.AddTrans(l1, false, l3)

	f.AddExpr(l2, ir.VarRet, ir.NewOp("*",
		ir.Var{Name: "n"},
		ir.NewOp("FuncCall", ir.Var{Name: "fact"}, ir.NewOp("-", ir.Var{Name: "n"}, ir.Const{Value: "1"}))))

	f.AddExpr(l3, ir.VarRet, ir.Const{Value: "1"})
	mustAddFn(t, p, f)
	return p
}

func TestRunAppendsOutputAndReturns(t *testing.T) {
	res := run(t, newEngine(t), progAppend42(t), "main", nil, nil)
	if res.Output != "42" {
		t.Errorf("output = %q, want %q", res.Output, "42")
	}
	if !runtime.Equal(res.Ret, runtime.IntValue{Val: 0}) {
		t.Errorf("return = %s, want 0", res.Ret)
	}
	if len(res.Trace) != 1 {
		t.Errorf("trace has %d steps, want 1", len(res.Trace))
	}
}

func TestRunSumsArray(t *testing.T) {
	res := run(t, newEngine(t), progSumArray(t), "main", nil, nil)
	if !runtime.Equal(res.Ret, runtime.IntValue{Val: 6}) {
		t.Errorf("return = %s, want 6", res.Ret)
	}
	// init + one step per element + final return location.
	if len(res.Trace) != 5 {
		t.Errorf("trace has %d steps, want 5", len(res.Trace))
	}
}

func TestRunIsDeterministic(t *testing.T) {
	eng := newEngine(t)
	first := run(t, eng, progSumArray(t), "main", nil, nil)
	second := run(t, eng, progSumArray(t), "main", nil, nil)
	if diff := cmp.Diff(first.Trace, second.Trace); diff != "" {
		t.Errorf("traces differ across runs (-first +second):\n%s", diff)
	}
	if first.Output != second.Output {
		t.Errorf("outputs differ: %q vs %q", first.Output, second.Output)
	}
}

func TestCommitInvariant(t *testing.T) {
	prog := progSumArray(t)
	res := run(t, newEngine(t), prog, "main", nil, nil)
	f, _ := prog.Fn("main")
	for i, step := range res.Trace {
		for _, name := range f.Vars() {
			if _, ok := step.Mem[name]; !ok {
				t.Errorf("step %d: variable %q missing from snapshot", i, name)
			}
		}
		if _, ok := step.Mem[ir.VarRet]; !ok {
			t.Errorf("step %d: return variable missing from snapshot", i)
		}
	}
}

func TestRecursiveFactorial(t *testing.T) {
	res := run(t, newEngine(t), progFactorial(t), "fact", nil, []runtime.Value{runtime.IntValue{Val: 5}})
	if !runtime.Equal(res.Ret, runtime.IntValue{Val: 120}) {
		t.Errorf("fact(5) = %s, want 120", res.Ret)
	}
	// Each activation starts at location 1: the initial call plus five
	// nested ones.
	activations := 0
	for _, step := range res.Trace {
		if step.Loc == 1 {
			activations++
		}
	}
	if activations != 6 {
		t.Errorf("activations = %d, want 6", activations)
	}
}

func TestArityMismatch(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Run(context.Background(), progFactorial(t), "fact", nil, nil)
	if interp.KindOf(err) != interp.ErrArity {
		t.Fatalf("err = %v, want ArityMismatch", err)
	}
}

func TestUnknownEntryFunction(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Run(context.Background(), progAppend42(t), "nope", nil, nil)
	if interp.KindOf(err) != interp.ErrUnknownFunction {
		t.Fatalf("err = %v, want UnknownFunction", err)
	}
}

func TestNegativeIndexAbortsRun(t *testing.T) {
	p := ir.NewProgram("bad-index")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, "x", ir.NewOp("[]", ir.NewOp("ArrayInit", ir.Const{Value: "1"}), ir.Const{Value: "-1"}))
	mustAddFn(t, p, f)

	_, err := newEngine(t).Run(context.Background(), p, "main", nil, nil)
	if interp.KindOf(err) != interp.ErrIndex {
		t.Fatalf("err = %v, want IndexOutOfBounds", err)
	}
}

func TestEarlyReturnSkipsRemainingExprs(t *testing.T) {
	p := ir.NewProgram("early-return")
	f := ir.NewFunction("main", nil, "int")
	f.DeclareType("x", "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, ir.VarRet, ir.Const{Value: "7"})
	f.AddExpr(l1, "x", ir.Const{Value: "99"})
	f.AddExpr(l1, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"no"`}))
	mustAddFn(t, p, f)

	res := run(t, newEngine(t), p, "main", nil, nil)
	if !runtime.Equal(res.Ret, runtime.IntValue{Val: 7}) {
		t.Errorf("return = %s, want 7", res.Ret)
	}
	if res.Output != "" {
		t.Errorf("append after return executed: output %q", res.Output)
	}
	if !runtime.IsUndef(res.Trace.Final().Get("x")) {
		t.Errorf("assignment after return executed: x = %s", res.Trace.Final().Get("x"))
	}
	if len(res.Trace) != 1 {
		t.Errorf("trace has %d steps, want 1", len(res.Trace))
	}
}

func TestTimeout(t *testing.T) {
	p := ir.NewProgram("spin")
	f := ir.NewFunction("main", nil, "int")
	f.DeclareType("i", "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, "i", ir.NewOp("+", ir.Const{Value: "0"}, ir.Const{Value: "0"}))
	f.AddTrans(l1, true, l1)
	mustAddFn(t, p, f)

	budget := 50 * time.Millisecond
	eng := newEngine(t, interp.WithTimeout(budget))
	start := time.Now()
	_, err := eng.Run(context.Background(), p, "main", nil, nil)
	elapsed := time.Since(start)

	if interp.KindOf(err) != interp.ErrTimeout {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if elapsed < budget {
		t.Errorf("run aborted after %v, before the %v budget", elapsed, budget)
	}
}

func TestContextCancellation(t *testing.T) {
	p := ir.NewProgram("spin")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("")
	f.AddTrans(l1, true, l1)
	mustAddFn(t, p, f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newEngine(t).Run(ctx, p, "main", nil, nil)
	if interp.KindOf(err) != interp.ErrTimeout {
		t.Fatalf("err = %v, want Timeout", err)
	}
}

func TestOutputFilter(t *testing.T) {
	p := ir.NewProgram("noisy")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"a42b7c"`}))
	f.AddExpr(l1, ir.VarRet, ir.Const{Value: "0"})
	mustAddFn(t, p, f)

	eng := newEngine(t, interp.WithOutputFilter(`\d+`))
	res := run(t, eng, p, "main", nil, nil)
	if res.Output != "427" {
		t.Fatalf("filtered output = %q, want %q", res.Output, "427")
	}

	// Idempotence: normalizing already-normalized output changes nothing.
	again := ir.NewProgram("clean")
	g := ir.NewFunction("main", nil, "int")
	m1 := g.AddLoc("")
	g.AddExpr(m1, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"427"`}))
	g.AddExpr(m1, ir.VarRet, ir.Const{Value: "0"})
	mustAddFn(t, again, g)
	res2 := run(t, eng, again, "main", nil, nil)
	if res2.Output != res.Output {
		t.Errorf("re-normalized output = %q, want %q", res2.Output, res.Output)
	}
}

func TestOutputFilterDropsNonMatching(t *testing.T) {
	p := ir.NewProgram("letters")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"abc"`}))
	f.AddExpr(l1, ir.VarRet, ir.Const{Value: "0"})
	mustAddFn(t, p, f)

	res := run(t, newEngine(t, interp.WithOutputFilter(`\d+`)), p, "main", nil, nil)
	if res.Output != "" {
		t.Errorf("output = %q, want empty", res.Output)
	}
}

func TestNestedCallsShareOutputChannel(t *testing.T) {
	p := ir.NewProgram("nested-output")

	sub := ir.NewFunction("sub", nil, "int")
	s1 := sub.AddLoc("")
	sub.AddExpr(s1, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"B"`}))
	sub.AddExpr(s1, ir.VarRet, ir.Const{Value: "0"})
	mustAddFn(t, p, sub)

	main := ir.NewFunction("main", nil, "int")
	m1 := main.AddLoc("")
	m2 := main.AddLoc("")
	main.AddExpr(m1, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"A"`}))
	main.AddExpr(m1, "x", ir.NewOp("FuncCall", ir.Var{Name: "sub"}))
	main.AddTrans(m1, true, m2)
	main.AddExpr(m2, ir.VarOut, ir.NewOp("StrAppend", ir.Var{Name: ir.VarOut}, ir.Const{Value: `"C"`}))
	main.AddExpr(m2, ir.VarRet, ir.Const{Value: "0"})
	mustAddFn(t, p, main)

	res := run(t, newEngine(t), p, "main", nil, nil)
	if res.Output != "ABC" {
		t.Errorf("output = %q, want ABC", res.Output)
	}
}

func TestNestedCallsConsumeSharedInput(t *testing.T) {
	// main reads one input, sub reads the next: $in crosses the call
	// boundary un-copied.
	p := ir.NewProgram("nested-input")

	sub := ir.NewFunction("sub", nil, "int")
	s1 := sub.AddLoc("")
	sub.AddExpr(s1, ir.VarRet, ir.NewOp("ListHead", ir.Const{Value: "int"}, ir.Var{Name: ir.VarIn}))
	mustAddFn(t, p, sub)

	main := ir.NewFunction("main", nil, "int")
	main.DeclareType("a", "int")
	m1 := main.AddLoc("")
	m2 := main.AddLoc("")
	main.AddExpr(m1, "a", ir.NewOp("ListHead", ir.Const{Value: "int"}, ir.Var{Name: ir.VarIn}))
	main.AddExpr(m1, ir.VarIn, ir.NewOp("ListTail", ir.Var{Name: ir.VarIn}))
	main.AddTrans(m1, true, m2)
	main.AddExpr(m2, ir.VarRet, ir.NewOp("+", ir.Var{Name: "a"}, ir.NewOp("FuncCall", ir.Var{Name: "sub"})))
	mustAddFn(t, p, main)

	ins := []runtime.Value{runtime.IntValue{Val: 10}, runtime.IntValue{Val: 32}}
	res := run(t, newEngine(t), p, "main", ins, nil)
	if !runtime.Equal(res.Ret, runtime.IntValue{Val: 42}) {
		t.Errorf("return = %s, want 42", res.Ret)
	}
}

func TestShortCircuit(t *testing.T) {
	divByZero := ir.NewOp("/", ir.Const{Value: "1"}, ir.Const{Value: "0"})

	p := ir.NewProgram("short-circuit")
	f := ir.NewFunction("main", nil, "int")
	f.DeclareType("x", "int")
	f.DeclareType("y", "int")
	l1 := f.AddLoc("")
	l2 := f.AddLoc("")
	f.AddExpr(l1, "x", ir.NewOp("&&", ir.Const{Value: "0"}, divByZero))
	f.AddExpr(l1, "y", ir.NewOp("||", ir.Const{Value: "5"}, divByZero))
	f.AddTrans(l1, true, l2)
	f.AddExpr(l2, ir.VarRet, ir.NewOp("+", ir.Var{Name: "x"}, ir.Var{Name: "y"}))
	mustAddFn(t, p, f)

	res := run(t, newEngine(t), p, "main", nil, nil)
	// x = 0 (left falsy, right never evaluated), y = 5 (left returned).
	if !runtime.Equal(res.Ret, runtime.IntValue{Val: 5}) {
		t.Errorf("return = %s, want 5", res.Ret)
	}
	final := res.Trace.Final()
	if !runtime.Equal(final.Get("x"), runtime.IntValue{Val: 0}) {
		t.Errorf("x = %s, want 0", final.Get("x"))
	}
	if !runtime.Equal(final.Get("y"), runtime.IntValue{Val: 5}) {
		t.Errorf("y = %s, want 5", final.Get("y"))
	}
}

func TestConditionalEvaluatesOnlyTakenBranch(t *testing.T) {
	p := ir.NewProgram("lazy-ite")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, ir.VarRet, ir.NewOp("ite",
		ir.Const{Value: "1"},
		ir.Const{Value: "5"},
		ir.NewOp("/", ir.Const{Value: "1"}, ir.Const{Value: "0"})))
	mustAddFn(t, p, f)

	res := run(t, newEngine(t), p, "main", nil, nil)
	if !runtime.Equal(res.Ret, runtime.IntValue{Val: 5}) {
		t.Errorf("return = %s, want 5", res.Ret)
	}
}

func TestUnknownOperatorFails(t *testing.T) {
	p := ir.NewProgram("bad-op")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, "x", ir.NewOp("Frobnicate", ir.Const{Value: "1"}))
	mustAddFn(t, p, f)

	_, err := newEngine(t).Run(context.Background(), p, "main", nil, nil)
	if interp.KindOf(err) != interp.ErrRuntime {
		t.Fatalf("err = %v, want RuntimeError", err)
	}
}

func TestRuntimeErrorNamesFailingExpression(t *testing.T) {
	p := ir.NewProgram("div-zero")
	f := ir.NewFunction("main", nil, "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, "x", ir.NewOp("/", ir.Var{Name: "a"}, ir.Var{Name: "b"}))
	mustAddFn(t, p, f)

	_, err := newEngine(t).Run(context.Background(), p, "main", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var ee *interp.Error
	if !errors.As(err, &ee) {
		t.Fatalf("error type %T", err)
	}
	if ee.Expr == nil {
		t.Error("error lacks the failing expression")
	}
}

func TestUnknownPluginKey(t *testing.T) {
	reg := interp.NewRegistry()
	java.Register(reg)
	if _, err := interp.New(reg, "cobol"); interp.KindOf(err) != interp.ErrUnknownPlugin {
		t.Fatalf("err = %v, want UnknownPlugin", err)
	}
	if langs := reg.Langs(); len(langs) != 1 || langs[0] != "java" {
		t.Errorf("Langs() = %v", langs)
	}
}

func TestBadFilterPattern(t *testing.T) {
	reg := interp.NewRegistry()
	java.Register(reg)
	if _, err := interp.New(reg, java.Lang, interp.WithOutputFilter("(unclosed")); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestMissingReturnStaysUndef(t *testing.T) {
	p := ir.NewProgram("void-like")
	f := ir.NewFunction("main", nil, "void")
	f.DeclareType("x", "int")
	l1 := f.AddLoc("")
	f.AddExpr(l1, "x", ir.Const{Value: "1"})
	mustAddFn(t, p, f)

	res := run(t, newEngine(t), p, "main", nil, nil)
	if !runtime.IsUndef(res.Ret) {
		t.Errorf("return = %s, want Undef", res.Ret)
	}
}
