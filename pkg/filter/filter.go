// Package filter drives the engine over test suites and keeps the candidate
// programs whose behavior matches the expected output and return values.
package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/bruggerl/clara/pkg/interp"
	"github.com/bruggerl/clara/pkg/ir"
	"github.com/bruggerl/clara/pkg/runtime"
)

// Test is one test case: a pre-supplied input stream, positional arguments,
// and the optional expectations. A nil Out skips the output check; a nil Ret
// skips the return check.
type Test struct {
	Ins  []runtime.Value
	Args []runtime.Value
	Out  *string
	Ret  runtime.Value
}

// Filter runs candidate programs against a fixed test suite.
type Filter struct {
	Interp *interp.Interp
	Entry  string
	Log    interp.Logger
}

// New creates a filter with the given engine and entry function name.
func New(in *interp.Interp, entry string) *Filter {
	return &Filter{Interp: in, Entry: entry}
}

func (f *Filter) logger() interp.Logger {
	if f.Log != nil {
		return f.Log
	}
	return interp.NopLogger()
}

// Check runs one test against a program. It returns nil on a pass and an
// error describing the mismatch (or the run failure) otherwise.
func (f *Filter) Check(ctx context.Context, prog *ir.Program, test Test) error {
	res, err := f.Interp.Run(ctx, prog, f.Entry, test.Ins, test.Args)
	if err != nil {
		return err
	}
	if test.Out != nil && !strings.Contains(res.Output, *test.Out) {
		return fmt.Errorf("output %q lacks %q", res.Output, *test.Out)
	}
	if test.Ret != nil && !runtime.Equal(res.Ret, test.Ret) {
		return fmt.Errorf("returned %s, want %s", res.Ret, test.Ret)
	}
	return nil
}

// Accept reports whether one program passes every test, in order, stopping
// at the first failure. Any run error counts as a failed test.
func (f *Filter) Accept(ctx context.Context, prog *ir.Program, tests []Test) bool {
	for i, test := range tests {
		if err := f.Check(ctx, prog, test); err != nil {
			f.logger().Debugf("program %q test %d: %v", prog.Name(), i, err)
			return false
		}
	}
	return true
}

// Run returns the programs that pass the whole suite.
func (f *Filter) Run(ctx context.Context, progs []*ir.Program, tests []Test) []*ir.Program {
	var correct []*ir.Program
	for _, prog := range progs {
		if f.Accept(ctx, prog, tests) {
			correct = append(correct, prog)
		}
	}
	return correct
}
