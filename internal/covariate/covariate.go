// Package covariate models the environmental factors recorded alongside a
// baseline: their categories, resolved values in canonical string form, and
// the matchers that decide whether a baseline's recorded environment
// conforms to the current one.
package covariate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type Category string

const (
	CategoryConfiguration  Category = "CONFIGURATION"
	CategoryTemporal       Category = "TEMPORAL"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategoryOperational    Category = "OPERATIONAL"
	CategoryInformational  Category = "INFORMATIONAL"
)

var validCategories = map[Category]bool{
	CategoryConfiguration:  true,
	CategoryTemporal:       true,
	CategoryInfrastructure: true,
	CategoryOperational:    true,
	CategoryInformational:  true,
}

func (c Category) Valid() bool { return validCategories[c] }

// Undefined is the value of a covariate nothing could resolve. It never
// conforms to anything, itself included.
const Undefined = "undefined"

type Conformance string

const (
	Conforms          Conformance = "CONFORMS"
	PartiallyConforms Conformance = "PARTIALLY_CONFORMS"
	DoesNotConform    Conformance = "DOES_NOT_CONFORM"
)

// Rank orders conformance for tie-breaking; higher is better.
func (c Conformance) Rank() int {
	switch c {
	case Conforms:
		return 2
	case PartiallyConforms:
		return 1
	default:
		return 0
	}
}

// KeyCategory is one entry of a covariate declaration.
type KeyCategory struct {
	Key      string
	Category Category
}

// Declaration is the ordered set of covariate keys a use case cares about,
// with the category each key was declared under. Order is comparison
// priority: earlier keys weigh more when ranking baselines.
type Declaration struct {
	keys       []string
	categories map[string]Category
}

func NewDeclaration(entries ...KeyCategory) (*Declaration, error) {
	d := &Declaration{categories: make(map[string]Category, len(entries))}
	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("covariate key must not be empty")
		}
		if !e.Category.Valid() {
			return nil, fmt.Errorf("covariate %q: unknown category %q", e.Key, e.Category)
		}
		if _, dup := d.categories[e.Key]; dup {
			return nil, fmt.Errorf("covariate %q declared twice", e.Key)
		}
		d.keys = append(d.keys, e.Key)
		d.categories[e.Key] = e.Category
	}
	return d, nil
}

func (d *Declaration) Len() int { return len(d.keys) }

// Keys returns the declared keys in declaration order.
func (d *Declaration) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Category returns the declared category for key, falling back to the
// legacy mapping for keys recorded by older baselines.
func (d *Declaration) Category(key string) Category {
	if c, ok := d.categories[key]; ok {
		return c
	}
	return LegacyCategory(key)
}

// LegacyCategory maps well-known covariate keys to categories for baselines
// recorded before the key was declared. Unknown keys are informational.
func LegacyCategory(key string) Category {
	switch key {
	case "model", "modelVersion", "provider":
		return CategoryConfiguration
	case "timeOfDay", "dayType":
		return CategoryTemporal
	case "region":
		return CategoryInfrastructure
	case "load":
		return CategoryOperational
	default:
		return CategoryInformational
	}
}

// Profile holds the resolved covariate values for one run, in declaration
// order, each in canonical string form.
type Profile struct {
	keys   []string
	values map[string]string
}

func NewProfile() *Profile {
	return &Profile{values: make(map[string]string)}
}

// Set records a value, appending the key on first sight.
func (p *Profile) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Value returns the resolved value, or Undefined for unknown keys.
func (p *Profile) Value(key string) string {
	if v, ok := p.values[key]; ok && v != "" {
		return v
	}
	return Undefined
}

// Keys returns the profile's keys in insertion order.
func (p *Profile) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Map copies the profile for persistence.
func (p *Profile) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// ValueHash is the 8-hex-char digest of a canonical covariate value, used
// as a filename segment.
func ValueHash(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:8]
}

// ValueHashes digests every profile value in key order.
func (p *Profile) ValueHashes() []string {
	out := make([]string, 0, len(p.keys))
	for _, key := range p.keys {
		out = append(out, ValueHash(p.Value(key)))
	}
	return out
}
