package covariate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactMatcher(t *testing.T) {
	m := ExactMatcher{}

	assert.Equal(t, Conforms, m.Match("gpt-4", "gpt-4"))
	assert.Equal(t, DoesNotConform, m.Match("gpt-4", "gpt-3.5"))
	assert.Equal(t, DoesNotConform, m.Match("GPT-4", "gpt-4"))
}

// An undefined value never matches anything, not even another undefined.
func TestUndefinedNeverConforms(t *testing.T) {
	m := ExactMatcher{}

	assert.Equal(t, DoesNotConform, m.Match(Undefined, Undefined))
	assert.Equal(t, DoesNotConform, m.Match(Undefined, "gpt-4"))
	assert.Equal(t, DoesNotConform, m.Match("gpt-4", Undefined))
	assert.Equal(t, DoesNotConform, m.Match("", ""))
}

func TestExactMatcherCaseInsensitive(t *testing.T) {
	m := ExactMatcher{CaseInsensitive: true}

	assert.Equal(t, Conforms, m.Match("US-EAST-1", "us-east-1"))
	assert.Equal(t, DoesNotConform, m.Match("us-west-2", "us-east-1"))
	assert.Equal(t, DoesNotConform, m.Match(Undefined, Undefined))

	assert.Equal(t, "us-east-1", m.Canonicalize("US-East-1"))
}

func TestMatchersDefaults(t *testing.T) {
	ms := NewMatchers()

	// region is registered case-insensitive out of the box.
	assert.Equal(t, Conforms, ms.Lookup("region").Match("EU-WEST-1", "eu-west-1"))

	// timeOfDay gets the window matcher.
	assert.Equal(t, Conforms, ms.Lookup("timeOfDay").Match("10:00", "09:00-17:00"))

	// Unknown keys fall back to exact, case-sensitive matching.
	assert.Equal(t, DoesNotConform, ms.Lookup("model").Match("GPT-4", "gpt-4"))
	assert.Equal(t, Conforms, ms.Lookup("model").Match("gpt-4", "gpt-4"))
}

type suffixMatcher struct{}

func (suffixMatcher) Match(current, baseline string) Conformance {
	if current == Undefined || baseline == Undefined {
		return DoesNotConform
	}
	if current == baseline {
		return Conforms
	}
	if len(current) >= 2 && len(baseline) >= 2 && current[len(current)-2:] == baseline[len(baseline)-2:] {
		return PartiallyConforms
	}
	return DoesNotConform
}

func TestMatchersRegister(t *testing.T) {
	ms := NewMatchers()
	ms.Register("build", suffixMatcher{})

	assert.Equal(t, PartiallyConforms, ms.Lookup("build").Match("v1.04", "v2.04"))
	assert.Equal(t, Conforms, ms.Lookup("build").Match("v1.04", "v1.04"))
}

func TestMatchersCanonicalize(t *testing.T) {
	ms := NewMatchers()

	assert.Equal(t, "us-east-1", ms.Canonicalize("region", "US-EAST-1"))
	assert.Equal(t, "gpt-4", ms.Canonicalize("model", "gpt-4"))
	assert.Equal(t, "09:05-17:30", ms.Canonicalize("timeOfDay", "9:05-17:30"))

	// Empty and undefined stay undefined.
	assert.Equal(t, Undefined, ms.Canonicalize("model", ""))
	assert.Equal(t, Undefined, ms.Canonicalize("model", Undefined))
}
