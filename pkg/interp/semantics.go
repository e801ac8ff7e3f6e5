package interp

import (
	"sort"

	"github.com/bruggerl/clara/pkg/ir"
	"github.com/bruggerl/clara/pkg/runtime"
)

// Evaluator evaluates expressions against the current activation's pre-step
// memory. The engine hands one to plugin builtins so they control when (and
// whether) their arguments are evaluated.
type Evaluator interface {
	Eval(e ir.Expr) (runtime.Value, error)
}

// Builtin implements one named operator for a language plugin.
type Builtin func(ev Evaluator, args []ir.Expr) (runtime.Value, error)

// Semantics is the capability set one source language must provide. The
// engine owns stepping, structural operators, short-circuit and recursion;
// everything value-level is delegated here.
type Semantics interface {
	// ParseConst turns a literal token into a runtime value, judging by
	// its lexical shape.
	ParseConst(text string) (runtime.Value, error)

	// IsUnaryOp / IsBinaryOp report whether the language evaluates the
	// named operator in unary or binary position.
	IsUnaryOp(name string) bool
	IsBinaryOp(name string) bool

	// EvalUnary and EvalBinary apply an operator to already-evaluated
	// operands, applying the language's coercion and promotion rules.
	// Short-circuit operators never reach EvalBinary; the engine handles
	// them with ToNumeric.
	EvalUnary(name string, x runtime.Value) (runtime.Value, error)
	EvalBinary(name string, x, y runtime.Value) (runtime.Value, error)

	// ToNumeric coerces a value to the language's numeric domain
	// (e.g. booleans to 0/1), failing on non-numeric values.
	ToNumeric(v runtime.Value) (runtime.Value, error)

	// Convert coerces a value to a named declared type. Used for
	// parameter binding, per-step assignment, explicit casts and
	// return-value coercion.
	Convert(v runtime.Value, typ string) (runtime.Value, error)

	// Builtin resolves a named operator beyond the structural set.
	Builtin(name string) (Builtin, bool)
}

// Registry maps language keys to semantics plugins. It is a plain value
// passed at engine construction, not process-wide state, so multiple
// configurations can coexist.
type Registry struct {
	sems map[string]Semantics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sems: make(map[string]Semantics)}
}

// Register binds a language key to a plugin, replacing any previous binding.
func (r *Registry) Register(lang string, sem Semantics) {
	r.sems[lang] = sem
}

// Lookup resolves a language key.
func (r *Registry) Lookup(lang string) (Semantics, error) {
	sem, ok := r.sems[lang]
	if !ok {
		return nil, Errf(ErrUnknownPlugin, "no semantics for language %q", lang)
	}
	return sem, nil
}

// Langs lists the registered language keys, sorted.
func (r *Registry) Langs() []string {
	langs := make([]string, 0, len(r.sems))
	for lang := range r.sems {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
