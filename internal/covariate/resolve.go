package covariate

import (
	"strings"
	"time"
	"unicode"
)

// Resolver produces the current value of one covariate. An empty return
// means the resolver could not determine a value.
type Resolver func() string

// Chain resolves declared covariates into a profile. Precedence per key:
// the use case's source hook, then a process property, then an environment
// variable, then a registered default resolver, then the built-in resolver
// for the key. Anything still unresolved becomes Undefined.
type Chain struct {
	Sources   map[string]Resolver         // per-use-case hooks
	Property  func(string) (string, bool) // process-local property store
	Getenv    func(string) string
	EnvPrefix string // "PUNIT" when empty
	Defaults  map[string]Resolver
	Now       func() time.Time
	Matchers  *Matchers // canonicalization; optional
}

func (c *Chain) Resolve(decl *Declaration) *Profile {
	p := NewProfile()
	for _, key := range decl.Keys() {
		p.Set(key, c.resolveKey(key))
	}
	return p
}

func (c *Chain) resolveKey(key string) string {
	raw := c.lookup(key)
	if raw == "" {
		return Undefined
	}
	if c.Matchers != nil {
		return c.Matchers.Canonicalize(key, raw)
	}
	return raw
}

func (c *Chain) lookup(key string) string {
	if r, ok := c.Sources[key]; ok {
		if v := r(); v != "" {
			return v
		}
	}
	if c.Property != nil {
		if v, ok := c.Property(PropertyKey(key)); ok && v != "" {
			return v
		}
	}
	if c.Getenv != nil {
		if v := c.Getenv(EnvKey(c.EnvPrefix, key)); v != "" {
			return v
		}
	}
	if r, ok := c.Defaults[key]; ok {
		if v := r(); v != "" {
			return v
		}
	}
	if r, ok := builtinResolvers[key]; ok {
		return r(c.now())
	}
	return ""
}

func (c *Chain) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// PropertyKey names a covariate in the process property store.
func PropertyKey(key string) string {
	return "covariate." + key
}

// EnvKey names a covariate's environment override, e.g. modelVersion →
// PUNIT_COVARIATE_MODEL_VERSION.
func EnvKey(prefix, key string) string {
	if prefix == "" {
		prefix = "PUNIT"
	}
	return prefix + "_COVARIATE_" + upperSnake(key)
}

func upperSnake(key string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range key {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
			prevLower = true
		default:
			b.WriteByte('_')
			prevLower = false
		}
	}
	return b.String()
}

var builtinResolvers = map[string]func(time.Time) string{
	"timeOfDay": func(t time.Time) string { return t.Format("15:04") },
	"dayType":   DayType,
}

// DayType labels a timestamp "weekday" or "weekend".
func DayType(t time.Time) string {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return "weekend"
	default:
		return "weekday"
	}
}
