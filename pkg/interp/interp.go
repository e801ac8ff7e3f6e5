package interp

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bruggerl/clara/pkg/ir"
	"github.com/bruggerl/clara/pkg/runtime"
)

// Interp executes CFG programs under one language's semantics. It holds only
// configuration; all per-run state lives in an execution context owned by
// the Run call, so a single Interp may drive independent runs concurrently.
type Interp struct {
	sem     Semantics
	timeout time.Duration
	filter  *regexp.Regexp
	log     Logger
}

// Option configures an Interp.
type Option func(*Interp) error

// WithTimeout sets the wall-clock budget for one run. Zero means unbounded.
func WithTimeout(d time.Duration) Option {
	return func(in *Interp) error {
		in.timeout = d
		return nil
	}
}

// WithOutputFilter sets the output-normalization pattern: every value
// appended to the reserved output variable is reduced to the concatenation
// of its substrings matching the pattern.
func WithOutputFilter(pattern string) Option {
	return func(in *Interp) error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Errf(ErrRuntime, "bad output filter %q: %v", pattern, err)
		}
		in.filter = re
		return nil
	}
}

// WithLogger routes engine logging to l.
func WithLogger(l Logger) Option {
	return func(in *Interp) error {
		in.log = l
		return nil
	}
}

// New builds an engine for the given language key, resolved in reg.
func New(reg *Registry, lang string, opts ...Option) (*Interp, error) {
	sem, err := reg.Lookup(lang)
	if err != nil {
		return nil, err
	}
	in := &Interp{sem: sem, log: nopLogger{}}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// Result is a successful run: the full trace plus the two projections the
// harness consumes.
type Result struct {
	Trace  runtime.Trace
	Output string
	Ret    runtime.Value
}

// Run executes prog from the named entry function. ins pre-supplies the
// run's input stream; args bind positionally to the entry function's
// parameters after conversion to their declared types. Any error aborts the
// whole run with no partial trace.
func (in *Interp) Run(ctx context.Context, prog *ir.Program, entry string, ins []runtime.Value, args []runtime.Value) (*Result, error) {
	fnc, ok := prog.Fn(entry)
	if !ok {
		return nil, Errf(ErrUnknownFunction, "unknown function %q", entry)
	}

	ec := &execContext{
		ctx:    ctx,
		prog:   prog,
		sem:    in.sem,
		filter: in.filter,
		log:    in.log,
		start:  time.Now(),
	}
	if in.timeout > 0 {
		ec.deadline = ec.start.Add(in.timeout)
	}

	var inVal runtime.Value
	if ins != nil {
		stream := make([]runtime.Value, len(ins))
		copy(stream, ins)
		inVal = &runtime.ArrayValue{Elems: stream}
	}
	mem, err := ec.newActivation(fnc, inVal, runtime.StringValue{}, args)
	if err != nil {
		return nil, err
	}

	if err := ec.execFunction(fnc, mem); err != nil {
		return nil, err
	}

	return &Result{
		Trace:  ec.trace,
		Output: ec.output.String(),
		Ret:    ec.trace.Final().Get(ir.VarRet),
	}, nil
}

// execContext is the per-run state threaded through every activation: the
// shared trace and output channel, the timeout budget, and the current
// function/location bookkeeping saved and restored around nested calls.
type execContext struct {
	ctx      context.Context
	prog     *ir.Program
	sem      Semantics
	filter   *regexp.Regexp
	log      Logger
	start    time.Time
	deadline time.Time

	trace  runtime.Trace
	output strings.Builder

	fn  string
	loc ir.Loc
}

// newActivation builds the memory for one function activation: declared
// variables Undef, the shared input/output channel bound un-copied, and
// parameters bound to their converted arguments. Argument values are
// deep-copied so activations never alias each other's data.
func (ec *execContext) newActivation(fnc *ir.Function, inVal, outVal runtime.Value, args []runtime.Value) (*runtime.Memory, error) {
	params := fnc.Params()
	if len(args) != len(params) {
		return nil, Errf(ErrArity, "wrong number of args for %q: expected %d, got %d",
			fnc.Name(), len(params), len(args))
	}

	mem := runtime.NewMemory()
	if inVal != nil {
		mem.Set(ir.VarIn, inVal)
	}
	mem.Set(ir.VarOut, outVal)
	mem.Set(ir.VarRet, runtime.Undef)
	for _, name := range fnc.Vars() {
		if !mem.Has(name) {
			mem.Set(name, runtime.Undef)
		}
	}
	for i, p := range params {
		conv, err := ec.sem.Convert(args[i], p.Type)
		if err != nil {
			return nil, err
		}
		mem.Set(p.Name, runtime.Copy(conv))
	}
	return mem, nil
}

// execFunction runs one activation to completion, appending its steps to the
// shared trace.
func (ec *execContext) execFunction(fnc *ir.Function, mem *runtime.Memory) error {
	ec.fn = fnc.Name()
	ec.loc = fnc.InitLoc()

	for {
		if err := ec.checkBudget(); err != nil {
			return err
		}

		for _, as := range fnc.Exprs(ec.loc) {
			val, err := ec.eval(as.Expr, mem)
			if err != nil {
				return wrapExpr(err, as.Expr)
			}
			if as.Var == ir.VarCond {
				val = runtime.BoolValue{Val: runtime.Truthy(val)}
			}
			typ := fnc.Type(as.Var)
			if as.Var == ir.VarRet {
				typ = fnc.RetType()
			}
			conv, err := ec.sem.Convert(val, typ)
			if err != nil {
				return wrapExpr(err, as.Expr)
			}
			mem.SetPrimed(as.Var, conv)
			// A defined return value ends the location's expression
			// list immediately.
			if as.Var == ir.VarRet && !runtime.IsUndef(val) {
				break
			}
		}

		snap := mem.Commit()
		ec.trace = append(ec.trace, runtime.Step{Fn: ec.fn, Loc: ec.loc, Mem: snap})
		ec.log.Debugf("step %s:%d committed %d vars", ec.fn, ec.loc, len(snap))

		if !runtime.IsUndef(mem.Get(ir.VarRet)) {
			return nil
		}

		switch fnc.NumTrans(ec.loc) {
		case 0:
			return nil
		case 1:
			next, _ := fnc.Trans(ec.loc, true)
			ec.loc = next
		default:
			next, ok := fnc.Trans(ec.loc, runtime.Truthy(mem.Get(ir.VarCond)))
			if !ok {
				return Errf(ErrRuntime, "missing transition at %s:%d", ec.fn, ec.loc)
			}
			ec.loc = next
		}
	}
}

// checkBudget polls the wall-clock budget and the caller's context once per
// step.
func (ec *execContext) checkBudget() error {
	if ec.ctx != nil {
		select {
		case <-ec.ctx.Done():
			return Errf(ErrTimeout, "run cancelled: %v", ec.ctx.Err())
		default:
		}
	}
	if !ec.deadline.IsZero() && time.Now().After(ec.deadline) {
		return Errf(ErrTimeout, "timeout (%.3fs)", time.Since(ec.start).Seconds())
	}
	return nil
}
