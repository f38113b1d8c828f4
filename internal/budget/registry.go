package budget

import (
	"sync"
	"time"
)

// Registry hands out shared class-scoped monitors keyed by group name. The
// first experiment to name a group fixes its limits and start time; later
// limits are ignored so that concurrent invocations in the same group see
// one accumulator.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*Monitor
	now      func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	return &Registry{monitors: make(map[string]*Monitor), now: now}
}

func (r *Registry) GetOrCreate(group string, limits Limits) *Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.monitors[group]; ok {
		return m
	}
	m := NewMonitor(ScopeClass, limits, r.now)
	r.monitors[group] = m
	return m
}

// Reset drops every class monitor.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitors = make(map[string]*Monitor)
}
