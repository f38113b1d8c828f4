// Package punit runs probabilistic tests: the test body is executed as a
// sequence of Bernoulli trials and judged against a minimum pass rate
// instead of a single all-or-nothing assertion.
//
// A sequence stops the moment its verdict is decided. When the remaining
// samples cannot reach the required successes the run fails immediately;
// when the collected successes already suffice it passes immediately. Time
// and token budgets bound the method, its class group, and the whole test
// suite, and an exhausted budget either fails the run outright or judges
// the samples executed so far, per its configured behavior.
//
// The required pass rate is set explicitly on the Experiment or derived
// from a stored baseline specification: a tamper-evident YAML record
// selected by input footprint and covariate conformance, so a run is only
// ever judged against a baseline captured under a comparable environment.
package punit

import (
	"context"
	"sync"

	"github.com/punit-dev/punit/internal/baseline"
	"github.com/punit-dev/punit/internal/bernoulli"
	"github.com/punit-dev/punit/internal/budget"
	"github.com/punit-dev/punit/internal/covariate"
	"github.com/punit-dev/punit/internal/spec"
	"github.com/punit-dev/punit/internal/trial"
)

// TestFunc is the test body executed once per sample. A nil return counts
// the sample as a success; an error counts it as a failure with the error
// retained as the cause.
type TestFunc func(*Sample) error

// Sample is the per-execution handle passed to the test body: its 1-based
// index, dynamic token recording, and result projection capture.
type Sample = trial.Sample

// Verdict is the binary outcome of a run.
type Verdict = trial.Verdict

const (
	VerdictPass = trial.VerdictPass
	VerdictFail = trial.VerdictFail
)

// TerminationReason states why a sample sequence stopped.
type TerminationReason = bernoulli.TerminationReason

const (
	ReasonCompleted         = bernoulli.ReasonCompleted
	ReasonImpossibility     = bernoulli.ReasonImpossibility
	ReasonSuccessGuaranteed = bernoulli.ReasonSuccessGuaranteed
	ReasonCancelled         = trial.ReasonCancelled
	ReasonMethodTime        = budget.ReasonMethodTime
	ReasonMethodTokens      = budget.ReasonMethodTokens
	ReasonClassTime         = budget.ReasonClassTime
	ReasonClassTokens       = budget.ReasonClassTokens
	ReasonSuiteTime         = budget.ReasonSuiteTime
	ReasonSuiteTokens       = budget.ReasonSuiteTokens
)

// FailureExample is one retained failure cause from a run.
type FailureExample = bernoulli.FailureExample

// Buckets of the failure distribution for causes that do not classify
// themselves.
const (
	CategoryAssertion = bernoulli.CategoryAssertion
	CategoryException = bernoulli.CategoryException
)

// Behavior decides what an exhausted budget does to the verdict.
type Behavior = budget.Behavior

const (
	BehaviorFail            = budget.BehaviorFail
	BehaviorEvaluatePartial = budget.BehaviorEvaluatePartial
)

// TokenMode selects how token spend is charged per sample.
type TokenMode = budget.TokenMode

const (
	TokenModeNone    = budget.TokenModeNone
	TokenModeStatic  = budget.TokenModeStatic
	TokenModeDynamic = budget.TokenModeDynamic
)

// KeyCategory declares one covariate key under a category.
type KeyCategory = covariate.KeyCategory

// Category weighs a covariate in baseline selection: CONFIGURATION keys
// gate, INFORMATIONAL keys are recorded but never compared, the rest score.
type Category = covariate.Category

const (
	CategoryConfiguration  = covariate.CategoryConfiguration
	CategoryTemporal       = covariate.CategoryTemporal
	CategoryInfrastructure = covariate.CategoryInfrastructure
	CategoryOperational    = covariate.CategoryOperational
	CategoryInformational  = covariate.CategoryInformational
)

// Matcher decides how close a baseline's recorded covariate value is to the
// current one.
type Matcher = covariate.Matcher

// Conformance grades one covariate comparison.
type Conformance = covariate.Conformance

const (
	Conforms          = covariate.Conforms
	PartiallyConforms = covariate.PartiallyConforms
	DoesNotConform    = covariate.DoesNotConform
)

// CovariateUndefined is the value of a covariate nothing could resolve. It
// never conforms to anything, itself included.
const CovariateUndefined = covariate.Undefined

// Specification is the persisted baseline record.
type Specification = spec.Specification

// SampleProjection is the optional per-sample capture persisted with a
// baseline for diffing against later runs.
type SampleProjection = spec.SampleProjection

// Expiration bounds how long a recorded baseline stays usable.
type Expiration = spec.Expiration

// ErrIntegrity marks stored specifications that fail their tamper checks:
// missing or foreign schema version, missing fingerprint, or content that
// does not hash to the recorded fingerprint.
var ErrIntegrity = spec.ErrIntegrity

// NoBaselineError reports that threshold derivation found no usable
// baseline for the run's use case and footprint.
type NoBaselineError = baseline.NoBaselineError

// ConfigurationMismatchError reports that baselines exist but none was
// recorded under the run's CONFIGURATION covariates.
type ConfigurationMismatchError = baseline.ConfigurationMismatchError

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Default returns the shared engine, creating it with zero Options on
// first use.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		defaultEngine = New(Options{})
	}
	return defaultEngine
}

// SetDefault replaces the shared engine. Passing nil makes the next
// Default call build a fresh one.
func SetDefault(e *Engine) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = e
}

// Run executes the experiment on the shared engine.
func Run(ctx context.Context, exp Experiment, body TestFunc) (*Report, error) {
	return Default().Run(ctx, exp, body)
}

// Check executes the experiment on the shared engine and reports the
// outcome on t.
func Check(t TestingT, exp Experiment, body TestFunc) *Report {
	t.Helper()
	return Default().Check(t, exp, body)
}
