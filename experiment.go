package punit

import (
	"time"

	"github.com/punit-dev/punit/internal/bernoulli"
	"github.com/punit-dev/punit/internal/budget"
)

// Defaults applied by normalize.
const (
	DefaultConfidence  = 0.95
	DefaultMaxExamples = 5
)

// Experiment configures one probabilistic test: how many samples to run,
// what threshold they must clear, and what the run may spend. The zero
// values of the threshold fields mean "derive the threshold from a stored
// baseline matched by footprint and covariates".
type Experiment struct {
	// Name identifies the use case, conventionally "UseCase.method". It
	// prefixes baseline filenames and keys registered covariate sources.
	Name string

	// Group names the class scope this experiment shares budgets with.
	// Empty means no class scope.
	Group string

	// Samples is the planned sample count. Required.
	Samples int

	// MinPassRate is the explicit threshold in [0, 1]. Zero means the
	// threshold is derived instead.
	MinPassRate float64

	// Confidence selects the confidence level for derived thresholds:
	// 0.90, 0.95 or 0.99. Zero means 0.95.
	Confidence float64

	// BaselineRate and BaselineSamples derive the threshold from
	// externally supplied baseline statistics: the threshold is the
	// Wilson lower confidence bound of BaselineRate observed over
	// BaselineSamples.
	BaselineRate    float64
	BaselineSamples int

	// SpecID derives the threshold from the newest stored specification
	// recorded under that use case id, bypassing footprint matching.
	SpecID string

	// Factors pin the input dimensions that define the use case shape.
	// They enter the footprint by name and value.
	Factors map[string]string

	// Covariates declares the environmental factors recorded with and
	// compared against baselines, in comparison-priority order.
	Covariates []KeyCategory

	// SuccessCriteria documents what a successful sample means. It is
	// carried into recorded baselines.
	SuccessCriteria string

	// Method-scoped budget. Zero values are unlimited.
	TimeBudget        time.Duration
	TokenBudget       int64
	TokenCharge       int64
	TokenMode         TokenMode
	OnBudgetExhausted Behavior

	// Class-scoped budget, shared by every experiment naming the same
	// Group. The first experiment to reach the group fixes these.
	GroupTimeBudget        time.Duration
	GroupTokenBudget       int64
	GroupOnBudgetExhausted Behavior

	// MaxExampleFailures caps how many failure causes are retained
	// verbatim; failures beyond the cap are counted but not kept. Zero
	// means DefaultMaxExamples.
	MaxExampleFailures int

	// AbortOnPanic propagates a panicking sample body instead of
	// recording it as an exception failure.
	AbortOnPanic bool
}

// normalize applies defaults and validates, returning the experiment the
// engine actually runs.
func (exp Experiment) normalize() (Experiment, error) {
	e := exp
	if e.Confidence == 0 {
		e.Confidence = DefaultConfidence
	}
	if e.MaxExampleFailures == 0 {
		e.MaxExampleFailures = DefaultMaxExamples
	}
	if e.TokenMode == "" {
		if e.TokenCharge > 0 {
			e.TokenMode = budget.TokenModeStatic
		} else {
			e.TokenMode = budget.TokenModeNone
		}
	}
	if e.OnBudgetExhausted == "" {
		e.OnBudgetExhausted = budget.BehaviorEvaluatePartial
	}
	if e.GroupOnBudgetExhausted == "" {
		e.GroupOnBudgetExhausted = budget.BehaviorEvaluatePartial
	}
	if err := e.validate(); err != nil {
		return Experiment{}, err
	}
	return e, nil
}

func (e Experiment) validate() error {
	if e.Name == "" {
		return configErr(e.Name, "name is required")
	}
	if e.Samples < 1 {
		return configErr(e.Name, "samples must be at least 1, got %d", e.Samples)
	}
	if e.MinPassRate < 0 || e.MinPassRate > 1 {
		return configErr(e.Name, "minPassRate %v out of [0, 1]", e.MinPassRate)
	}
	if _, err := bernoulli.ZScore(e.Confidence); err != nil {
		return configErr(e.Name, "%v", err)
	}

	thresholds := 0
	if e.MinPassRate > 0 {
		thresholds++
	}
	if e.BaselineRate != 0 || e.BaselineSamples != 0 {
		thresholds++
		if e.BaselineSamples < 1 {
			return configErr(e.Name, "baselineRate needs baselineSamples >= 1")
		}
		if e.BaselineRate < 0 || e.BaselineRate > 1 {
			return configErr(e.Name, "baselineRate %v out of [0, 1]", e.BaselineRate)
		}
	}
	if e.SpecID != "" {
		thresholds++
	}
	if thresholds > 1 {
		return configErr(e.Name, "at most one of minPassRate, baselineRate/baselineSamples, specId may be set")
	}

	if e.TimeBudget < 0 {
		return configErr(e.Name, "timeBudget must not be negative")
	}
	if e.TokenBudget < 0 || e.TokenCharge < 0 {
		return configErr(e.Name, "token budget and charge must not be negative")
	}
	switch e.TokenMode {
	case budget.TokenModeNone:
		if e.TokenBudget > 0 {
			return configErr(e.Name, "tokenBudget needs a charging mode (static tokenCharge or dynamic recording)")
		}
	case budget.TokenModeStatic:
		if e.TokenCharge < 1 {
			return configErr(e.Name, "static token accounting needs tokenCharge >= 1")
		}
	case budget.TokenModeDynamic:
		if e.TokenCharge != 0 {
			return configErr(e.Name, "tokenCharge is ignored by dynamic accounting; unset it")
		}
	default:
		return configErr(e.Name, "unknown tokenMode %q", e.TokenMode)
	}
	if !budget.ValidBehavior(e.OnBudgetExhausted) {
		return configErr(e.Name, "unknown onBudgetExhausted %q", e.OnBudgetExhausted)
	}
	if !budget.ValidBehavior(e.GroupOnBudgetExhausted) {
		return configErr(e.Name, "unknown group onBudgetExhausted %q", e.GroupOnBudgetExhausted)
	}
	if e.Group == "" && (e.GroupTimeBudget != 0 || e.GroupTokenBudget != 0) {
		return configErr(e.Name, "group budget set but no group named")
	}
	if e.GroupTimeBudget < 0 || e.GroupTokenBudget < 0 {
		return configErr(e.Name, "group budgets must not be negative")
	}
	if e.MaxExampleFailures < 0 {
		return configErr(e.Name, "maxExampleFailures must not be negative")
	}
	for name := range e.Factors {
		if name == "" {
			return configErr(e.Name, "factors contain an empty name")
		}
	}
	return nil
}

// methodLimits is the method-scope budget of the normalized experiment.
func (e Experiment) methodLimits() budget.Limits {
	return budget.Limits{
		Time:     e.TimeBudget,
		Tokens:   e.TokenBudget,
		Behavior: e.OnBudgetExhausted,
	}
}

// groupLimits is the class-scope budget offered to the group registry.
func (e Experiment) groupLimits() budget.Limits {
	return budget.Limits{
		Time:     e.GroupTimeBudget,
		Tokens:   e.GroupTokenBudget,
		Behavior: e.GroupOnBudgetExhausted,
	}
}
