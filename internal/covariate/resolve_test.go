package covariate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func declOf(t *testing.T, kcs ...KeyCategory) *Declaration {
	t.Helper()
	decl, err := NewDeclaration(kcs...)
	require.NoError(t, err)
	return decl
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"model", "PUNIT_COVARIATE_MODEL"},
		{"modelVersion", "PUNIT_COVARIATE_MODEL_VERSION"},
		{"timeOfDay", "PUNIT_COVARIATE_TIME_OF_DAY"},
		{"region", "PUNIT_COVARIATE_REGION"},
		{"gpu.count", "PUNIT_COVARIATE_GPU_COUNT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnvKey("", tt.key), tt.key)
	}
	assert.Equal(t, "ACME_COVARIATE_MODEL", EnvKey("ACME", "model"))
}

func TestChainPrecedence(t *testing.T) {
	decl := declOf(t, KeyCategory{Key: "model", Category: CategoryConfiguration})

	env := envOf(map[string]string{"PUNIT_COVARIATE_MODEL": "from-env"})
	props := map[string]string{"covariate.model": "from-property"}
	prop := func(k string) (string, bool) { v, ok := props[k]; return v, ok }

	c := &Chain{
		Sources:  map[string]Resolver{"model": func() string { return "from-source" }},
		Property: prop,
		Getenv:   env,
		Defaults: map[string]Resolver{"model": func() string { return "from-default" }},
		Matchers: NewMatchers(),
	}

	// Source hook wins over everything.
	assert.Equal(t, "from-source", c.Resolve(decl).Value("model"))

	// Without a source hook the property is next.
	c.Sources = nil
	assert.Equal(t, "from-property", c.Resolve(decl).Value("model"))

	// Then the environment.
	delete(props, "covariate.model")
	assert.Equal(t, "from-env", c.Resolve(decl).Value("model"))

	// Then the registered default.
	c.Getenv = envOf(nil)
	assert.Equal(t, "from-default", c.Resolve(decl).Value("model"))

	// Nothing left: undefined.
	c.Defaults = nil
	assert.Equal(t, Undefined, c.Resolve(decl).Value("model"))
}

func TestChainEmptyValuesFallThrough(t *testing.T) {
	decl := declOf(t, KeyCategory{Key: "region", Category: CategoryInfrastructure})

	c := &Chain{
		Sources: map[string]Resolver{"region": func() string { return "" }},
		Getenv:  envOf(map[string]string{"PUNIT_COVARIATE_REGION": "us-east-1"}),
	}
	assert.Equal(t, "us-east-1", c.Resolve(decl).Value("region"))
}

func TestChainCanonicalizes(t *testing.T) {
	decl := declOf(t,
		KeyCategory{Key: "region", Category: CategoryInfrastructure},
		KeyCategory{Key: "timeOfDay", Category: CategoryTemporal},
	)

	c := &Chain{
		Getenv: envOf(map[string]string{
			"PUNIT_COVARIATE_REGION":      "US-EAST-1",
			"PUNIT_COVARIATE_TIME_OF_DAY": "9:05",
		}),
		Matchers: NewMatchers(),
	}
	p := c.Resolve(decl)
	assert.Equal(t, "us-east-1", p.Value("region"))
	assert.Equal(t, "09:05", p.Value("timeOfDay"))
}

func TestChainBuiltins(t *testing.T) {
	decl := declOf(t,
		KeyCategory{Key: "timeOfDay", Category: CategoryTemporal},
		KeyCategory{Key: "dayType", Category: CategoryTemporal},
	)

	// Saturday afternoon.
	sat := time.Date(2026, 3, 14, 14, 37, 0, 0, time.UTC)
	c := &Chain{Now: func() time.Time { return sat }}
	p := c.Resolve(decl)
	assert.Equal(t, "14:37", p.Value("timeOfDay"))
	assert.Equal(t, "weekend", p.Value("dayType"))

	// Monday morning.
	mon := time.Date(2026, 3, 16, 9, 5, 0, 0, time.UTC)
	c.Now = func() time.Time { return mon }
	p = c.Resolve(decl)
	assert.Equal(t, "09:05", p.Value("timeOfDay"))
	assert.Equal(t, "weekday", p.Value("dayType"))
}

func TestChainExplicitValueBeatsBuiltin(t *testing.T) {
	decl := declOf(t, KeyCategory{Key: "timeOfDay", Category: CategoryTemporal})

	c := &Chain{
		Getenv: envOf(map[string]string{"PUNIT_COVARIATE_TIME_OF_DAY": "22:00-02:00"}),
		Now:    func() time.Time { return time.Date(2026, 3, 16, 9, 5, 0, 0, time.UTC) },
	}
	assert.Equal(t, "22:00-02:00", c.Resolve(decl).Value("timeOfDay"))
}

func TestDayType(t *testing.T) {
	assert.Equal(t, "weekend", DayType(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))) // Saturday
	assert.Equal(t, "weekend", DayType(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))) // Sunday
	assert.Equal(t, "weekday", DayType(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC))) // Monday
	assert.Equal(t, "weekday", DayType(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))) // Friday
}
