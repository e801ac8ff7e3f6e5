package runtime

// Snapshot is one immutable picture of an activation's variables as recorded
// in the trace. Compound values are deep-copied at commit time, so later
// execution can never alter a recorded snapshot.
type Snapshot map[string]Value

// Get reads a variable from the snapshot, yielding Undef when absent.
func (s Snapshot) Get(name string) Value {
	if v, ok := s[name]; ok {
		return v
	}
	return Undef
}

// Memory is one activation's variable store with the priming discipline:
// reads see the current generation, step results accumulate in a pending
// generation, and Commit applies the pending generation all at once. This
// realizes simultaneous assignment for all expressions of one location.
type Memory struct {
	cur    map[string]Value
	primed map[string]Value
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		cur:    make(map[string]Value),
		primed: make(map[string]Value),
	}
}

// Get reads a variable's current (pre-step) value, Undef when never set.
func (m *Memory) Get(name string) Value {
	if v, ok := m.cur[name]; ok {
		return v
	}
	return Undef
}

// Has reports whether a variable has a current value.
func (m *Memory) Has(name string) bool {
	_, ok := m.cur[name]
	return ok
}

// Set writes a variable's current value directly. Only activation setup may
// use this; inside a step all writes go through SetPrimed.
func (m *Memory) Set(name string, v Value) {
	m.cur[name] = v
}

// SetPrimed records a pending value for the variable, visible only after the
// next Commit.
func (m *Memory) SetPrimed(name string, v Value) {
	m.primed[name] = v
}

// Commit applies all pending values simultaneously and clears them.
// Variables without a pending write carry their value forward unchanged, so
// the returned snapshot covers every variable the activation has touched.
func (m *Memory) Commit() Snapshot {
	next := make(map[string]Value, len(m.cur)+len(m.primed))
	snap := make(Snapshot, len(m.cur)+len(m.primed))
	for name, v := range m.primed {
		next[name] = v
		snap[name] = Copy(v)
	}
	for name, v := range m.cur {
		if _, ok := m.primed[name]; !ok {
			next[name] = v
			snap[name] = Copy(v)
		}
	}
	m.cur = next
	m.primed = make(map[string]Value)
	return snap
}
