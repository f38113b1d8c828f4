package covariate

import (
	"strings"
	"sync"
)

// Matcher decides how close a baseline's recorded value is to the current
// one for a single covariate.
type Matcher interface {
	Match(current, baseline string) Conformance
}

// Canonicalizer is implemented by matchers whose values have a canonical
// string form (lowercased regions, minute-truncated time windows). Resolved
// values are canonicalized before hashing and persistence so equal
// environments hash equally.
type Canonicalizer interface {
	Canonicalize(value string) string
}

// ExactMatcher conforms only on exact string equality.
type ExactMatcher struct {
	CaseInsensitive bool
}

func (m ExactMatcher) Match(current, baseline string) Conformance {
	if current == Undefined || baseline == Undefined || current == "" || baseline == "" {
		return DoesNotConform
	}
	a, b := current, baseline
	if m.CaseInsensitive {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	if a == b {
		return Conforms
	}
	return DoesNotConform
}

func (m ExactMatcher) Canonicalize(value string) string {
	if m.CaseInsensitive {
		return strings.ToLower(value)
	}
	return value
}

// Matchers is the per-key matcher registry. Keys without a registration
// fall back to exact matching.
type Matchers struct {
	mu    sync.RWMutex
	byKey map[string]Matcher
}

// NewMatchers builds a registry with the built-in registrations: region is
// matched case-insensitively and timeOfDay by window containment.
func NewMatchers() *Matchers {
	m := &Matchers{byKey: make(map[string]Matcher)}
	m.Register("region", ExactMatcher{CaseInsensitive: true})
	m.Register("timeOfDay", TimeOfDayMatcher{})
	return m
}

func (m *Matchers) Register(key string, matcher Matcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[key] = matcher
}

func (m *Matchers) Lookup(key string) Matcher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if matcher, ok := m.byKey[key]; ok {
		return matcher
	}
	return ExactMatcher{}
}

// Canonicalize applies the key's canonical form, if its matcher has one.
// Undefined passes through untouched.
func (m *Matchers) Canonicalize(key, value string) string {
	if value == "" || value == Undefined {
		return Undefined
	}
	if c, ok := m.Lookup(key).(Canonicalizer); ok {
		return c.Canonicalize(value)
	}
	return value
}
