package punit

import "github.com/punit-dev/punit/internal/covariate"

// SetProperty stores a process-local configuration value. Properties are
// consulted before the environment: covariate keys under "covariate.<key>"
// (see CovariatePropertyKey), suite budget settings under the same names as
// their environment variables, applied on the next Reset.
func (e *Engine) SetProperty(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if value == "" {
		delete(e.props, name)
		return
	}
	e.props[name] = value
}

// Property reads a process-local configuration value.
func (e *Engine) Property(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.props[name]
	return v, ok
}

// CovariatePropertyKey names the property that overrides a covariate, e.g.
// "covariate.model" for the model key.
func CovariatePropertyKey(key string) string {
	return covariate.PropertyKey(key)
}

// RegisterFactor attaches a factor provider to a use case. The provider is
// invoked on every run of that use case and its value enters the footprint
// under the given name; an experiment's literal Factors entry with the same
// name wins. Registering a name again replaces the provider.
func (e *Engine) RegisterFactor(useCase, name string, fn func() string) {
	if useCase == "" || name == "" || fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	byName := e.factors[useCase]
	if byName == nil {
		byName = make(map[string]func() string)
		e.factors[useCase] = byName
	}
	byName[name] = fn
}

// RegisterCovariateSource attaches the highest-precedence resolver for one
// covariate key of one use case. An empty return falls through to the rest
// of the resolution chain.
func (e *Engine) RegisterCovariateSource(useCase, key string, fn func() string) {
	if useCase == "" || key == "" || fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	byKey := e.sources[useCase]
	if byKey == nil {
		byKey = make(map[string]covariate.Resolver)
		e.sources[useCase] = byKey
	}
	byKey[key] = fn
}

// RegisterCovariateDefault attaches a fallback resolver for one covariate
// key across every use case. It is consulted after sources, properties and
// the environment, before the built-in resolvers.
func (e *Engine) RegisterCovariateDefault(key string, fn func() string) {
	if key == "" || fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaults[key] = fn
}

// RegisterMatcher overrides how one covariate key is compared against
// recorded baseline values, replacing exact comparison. Built-in
// registrations: region (case-insensitive) and timeOfDay (window
// containment).
func (e *Engine) RegisterMatcher(key string, m Matcher) {
	if key == "" || m == nil {
		return
	}
	e.matchers.Register(key, m)
}
