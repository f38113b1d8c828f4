// Package budget tracks and enforces time and token limits across the
// method, class, and suite scopes of a test run.
package budget

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/punit-dev/punit/internal/bernoulli"
)

type Scope string

const (
	ScopeMethod Scope = "METHOD"
	ScopeClass  Scope = "CLASS"
	ScopeSuite  Scope = "SUITE"
)

type Resource string

const (
	ResourceTime  Resource = "TIME"
	ResourceToken Resource = "TOKEN"
)

// Behavior decides what an exhausted budget does to the verdict.
type Behavior string

const (
	// BehaviorFail forces a failing verdict regardless of observed outcomes.
	BehaviorFail Behavior = "FAIL"
	// BehaviorEvaluatePartial renders the verdict from the samples executed
	// so far.
	BehaviorEvaluatePartial Behavior = "EVALUATE_PARTIAL"
)

func ValidBehavior(b Behavior) bool {
	return b == BehaviorFail || b == BehaviorEvaluatePartial
}

// TokenMode selects how token spend is charged per sample.
type TokenMode string

const (
	TokenModeNone    TokenMode = "NONE"
	TokenModeStatic  TokenMode = "STATIC"
	TokenModeDynamic TokenMode = "DYNAMIC"
)

// Termination reasons produced when a scope runs out of budget.
const (
	ReasonMethodTime   bernoulli.TerminationReason = "METHOD_TIME_BUDGET_EXHAUSTED"
	ReasonMethodTokens bernoulli.TerminationReason = "METHOD_TOKEN_BUDGET_EXHAUSTED"
	ReasonClassTime    bernoulli.TerminationReason = "CLASS_TIME_BUDGET_EXHAUSTED"
	ReasonClassTokens  bernoulli.TerminationReason = "CLASS_TOKEN_BUDGET_EXHAUSTED"
	ReasonSuiteTime    bernoulli.TerminationReason = "SUITE_TIME_BUDGET_EXHAUSTED"
	ReasonSuiteTokens  bernoulli.TerminationReason = "SUITE_TOKEN_BUDGET_EXHAUSTED"
)

var exhaustionReasons = map[Scope]map[Resource]bernoulli.TerminationReason{
	ScopeMethod: {ResourceTime: ReasonMethodTime, ResourceToken: ReasonMethodTokens},
	ScopeClass:  {ResourceTime: ReasonClassTime, ResourceToken: ReasonClassTokens},
	ScopeSuite:  {ResourceTime: ReasonSuiteTime, ResourceToken: ReasonSuiteTokens},
}

// Limits configures one monitor. Zero values mean unlimited.
type Limits struct {
	Time     time.Duration
	Tokens   int64
	Behavior Behavior
}

// Monitor tracks spend for one scope against its limits. Class and suite
// monitors are shared by concurrent test invocations, so token accounting
// is atomic and checks never block.
type Monitor struct {
	scope   Scope
	limits  Limits
	started time.Time
	now     func() time.Time
	tokens  atomic.Int64
}

func NewMonitor(scope Scope, limits Limits, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	if limits.Behavior == "" {
		limits.Behavior = BehaviorEvaluatePartial
	}
	return &Monitor{scope: scope, limits: limits, started: now(), now: now}
}

func (m *Monitor) Scope() Scope   { return m.scope }
func (m *Monitor) Limits() Limits { return m.limits }

// ChargeTokens adds consumed tokens. Safe for concurrent use.
func (m *Monitor) ChargeTokens(n int64) {
	if n > 0 {
		m.tokens.Add(n)
	}
}

func (m *Monitor) TokensUsed() int64 { return m.tokens.Load() }

func (m *Monitor) Elapsed() time.Duration { return m.now().Sub(m.started) }

// Exhaustion describes the first limit a monitor ran past.
type Exhaustion struct {
	Scope    Scope
	Resource Resource
	Behavior Behavior
	Details  string
}

// Reason maps the exhausted scope and resource to its termination reason.
func (x Exhaustion) Reason() bernoulli.TerminationReason {
	return exhaustionReasons[x.Scope][x.Resource]
}

// Check reports whether a limit has been reached, time before tokens.
// Reaching a limit exactly counts as exhaustion.
func (m *Monitor) Check() (Exhaustion, bool) {
	if m.limits.Time > 0 {
		if elapsed := m.Elapsed(); elapsed >= m.limits.Time {
			return Exhaustion{
				Scope:    m.scope,
				Resource: ResourceTime,
				Behavior: m.limits.Behavior,
				Details:  fmt.Sprintf("elapsed %v reached time budget %v", elapsed.Round(time.Millisecond), m.limits.Time),
			}, true
		}
	}
	if m.limits.Tokens > 0 {
		if used := m.tokens.Load(); used >= m.limits.Tokens {
			return Exhaustion{
				Scope:    m.scope,
				Resource: ResourceToken,
				Behavior: m.limits.Behavior,
				Details:  fmt.Sprintf("%d tokens used of %d budgeted", used, m.limits.Tokens),
			}, true
		}
	}
	return Exhaustion{}, false
}
