package runtime

import "github.com/bruggerl/clara/pkg/ir"

// Step is one committed execution step: which function and location ran, and
// the post-commit snapshot of that activation's variables.
type Step struct {
	Fn  string
	Loc ir.Loc
	Mem Snapshot
}

// Trace is the ordered record of all committed steps of one run, across
// every activation. Steps of nested calls appear in execution order, tagged
// with their own function name and carrying their own snapshots.
type Trace []Step

// Final returns the last recorded snapshot, or nil for an empty trace.
func (t Trace) Final() Snapshot {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1].Mem
}
