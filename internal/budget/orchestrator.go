package budget

// Orchestrator runs the scope checks for one test invocation in a fixed
// order: method, then class, then suite. The first exhausted scope
// determines the termination reason and behavior.
type Orchestrator struct {
	monitors []*Monitor
}

// NewOrchestrator composes the monitors for one invocation, innermost scope
// first. Nil monitors are skipped.
func NewOrchestrator(monitors ...*Monitor) *Orchestrator {
	ms := make([]*Monitor, 0, len(monitors))
	for _, m := range monitors {
		if m != nil {
			ms = append(ms, m)
		}
	}
	return &Orchestrator{monitors: ms}
}

// Charge records token spend against every scope.
func (o *Orchestrator) Charge(tokens int64) {
	for _, m := range o.monitors {
		m.ChargeTokens(tokens)
	}
}

// Check returns the first exhausted scope, if any.
func (o *Orchestrator) Check() (Exhaustion, bool) {
	for _, m := range o.monitors {
		if x, ok := m.Check(); ok {
			return x, true
		}
	}
	return Exhaustion{}, false
}
