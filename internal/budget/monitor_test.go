package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMonitorUnlimitedByDefault(t *testing.T) {
	clk := newFakeClock()
	m := NewMonitor(ScopeMethod, Limits{}, clk.Now)

	clk.Advance(time.Hour)
	m.ChargeTokens(1 << 40)

	_, exhausted := m.Check()
	assert.False(t, exhausted)
}

func TestMonitorTimeExhaustion(t *testing.T) {
	clk := newFakeClock()
	m := NewMonitor(ScopeMethod, Limits{Time: time.Second, Behavior: BehaviorFail}, clk.Now)

	_, exhausted := m.Check()
	require.False(t, exhausted)

	clk.Advance(999 * time.Millisecond)
	_, exhausted = m.Check()
	require.False(t, exhausted)

	// Reaching the limit exactly counts.
	clk.Advance(time.Millisecond)
	x, exhausted := m.Check()
	require.True(t, exhausted)
	assert.Equal(t, ScopeMethod, x.Scope)
	assert.Equal(t, ResourceTime, x.Resource)
	assert.Equal(t, BehaviorFail, x.Behavior)
	assert.Equal(t, ReasonMethodTime, x.Reason())
	assert.Contains(t, x.Details, "time budget")
}

func TestMonitorTokenExhaustion(t *testing.T) {
	clk := newFakeClock()
	m := NewMonitor(ScopeSuite, Limits{Tokens: 500}, clk.Now)

	for i := 0; i < 4; i++ {
		m.ChargeTokens(100)
		_, exhausted := m.Check()
		require.False(t, exhausted, "after %d tokens", m.TokensUsed())
	}

	m.ChargeTokens(100)
	x, exhausted := m.Check()
	require.True(t, exhausted)
	assert.Equal(t, int64(500), m.TokensUsed())
	assert.Equal(t, ResourceToken, x.Resource)
	assert.Equal(t, BehaviorEvaluatePartial, x.Behavior) // default behavior
	assert.Equal(t, ReasonSuiteTokens, x.Reason())
	assert.Equal(t, "500 tokens used of 500 budgeted", x.Details)
}

func TestMonitorTimeCheckedBeforeTokens(t *testing.T) {
	clk := newFakeClock()
	m := NewMonitor(ScopeClass, Limits{Time: time.Second, Tokens: 10}, clk.Now)

	clk.Advance(2 * time.Second)
	m.ChargeTokens(100)

	x, exhausted := m.Check()
	require.True(t, exhausted)
	assert.Equal(t, ResourceTime, x.Resource)
	assert.Equal(t, ReasonClassTime, x.Reason())
}

func TestMonitorIgnoresNonPositiveCharges(t *testing.T) {
	m := NewMonitor(ScopeMethod, Limits{Tokens: 10}, nil)
	m.ChargeTokens(0)
	m.ChargeTokens(-5)
	assert.Zero(t, m.TokensUsed())
}

func TestExhaustionReasons(t *testing.T) {
	tests := []struct {
		scope    Scope
		resource Resource
		want     string
	}{
		{ScopeMethod, ResourceTime, "METHOD_TIME_BUDGET_EXHAUSTED"},
		{ScopeMethod, ResourceToken, "METHOD_TOKEN_BUDGET_EXHAUSTED"},
		{ScopeClass, ResourceTime, "CLASS_TIME_BUDGET_EXHAUSTED"},
		{ScopeClass, ResourceToken, "CLASS_TOKEN_BUDGET_EXHAUSTED"},
		{ScopeSuite, ResourceTime, "SUITE_TIME_BUDGET_EXHAUSTED"},
		{ScopeSuite, ResourceToken, "SUITE_TOKEN_BUDGET_EXHAUSTED"},
	}
	for _, tt := range tests {
		x := Exhaustion{Scope: tt.scope, Resource: tt.resource}
		assert.Equal(t, tt.want, string(x.Reason()))
	}
}
