// Package trial drives the sample loop of one probabilistic test
// invocation: budget gates before and after every sample, panic
// containment around the test body, token charging, and the deterministic
// early-stopping evaluation after every recorded outcome.
package trial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/punit-dev/punit/internal/bernoulli"
	"github.com/punit-dev/punit/internal/budget"
	"github.com/punit-dev/punit/internal/spec"
)

// ReasonCancelled marks a sequence whose context was cancelled between
// samples. The verdict is rendered from the samples already executed, the
// same way an EVALUATE_PARTIAL budget exhaustion is.
const ReasonCancelled bernoulli.TerminationReason = "CANCELLED"

// Func is the caller's test body, executed once per sample. A nil return
// counts the sample as a success; an error counts it as a failure with the
// error retained as the cause.
type Func func(*Sample) error

// Sample is the per-execution handle passed to the test body. It is only
// valid for the duration of that execution.
type Sample struct {
	index      int
	tokens     int64
	projection *spec.SampleProjection
}

// Index is the 1-based position of this sample in the sequence.
func (s *Sample) Index() int { return s.index }

// RecordTokens reports token spend for this sample. Only dynamic token
// accounting reads it; repeated calls accumulate.
func (s *Sample) RecordTokens(n int64) {
	if n > 0 {
		s.tokens += n
	}
}

// Project retains a compact projection of this sample's outcome for the
// stored specification. The last call wins. A zero ExecutionTimeMs is
// filled with the measured wall time.
func (s *Sample) Project(p spec.SampleProjection) {
	s.projection = &p
}

// Config parameterizes one run. Callers validate it up front; the runner
// takes it at face value.
type Config struct {
	Planned     int
	RatePPM     int64
	MaxExamples int

	TokenMode   budget.TokenMode
	TokenCharge int64

	// AbortOnPanic lets a panicking test body propagate instead of being
	// contained as a failed sample.
	AbortOnPanic bool

	Budgets *budget.Orchestrator
	Logger  *slog.Logger
	Now     func() time.Time
}

// Result is everything the verdict and the report need from a terminated
// sequence.
type Result struct {
	Verdict           Verdict
	Reason            bernoulli.TerminationReason
	Details           string
	Planned           int
	Executed          int
	Successes         int
	Failures          int
	RequiredSuccesses int
	ForcedFailure     bool
	Examples          []bernoulli.FailureExample
	Distribution      map[string]int
	Projections       map[string]spec.SampleProjection
	Elapsed           time.Duration
	TokensSpent       int64
}

// PassRate is the observed success fraction over executed samples.
func (r *Result) PassRate() float64 {
	if r.Executed == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Executed)
}

// Run executes the sample loop until the sequence terminates: all planned
// samples done, an early-stopping bound hit, a budget exhausted, or the
// context cancelled. Run is synchronous; concurrency across tests is the
// caller's concern.
func Run(ctx context.Context, cfg Config, fn Func) *Result {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	budgets := cfg.Budgets
	if budgets == nil {
		budgets = budget.NewOrchestrator()
	}

	agg := bernoulli.NewAggregator(cfg.Planned, cfg.MaxExamples)
	required := bernoulli.RequiredSuccesses(cfg.RatePPM, cfg.Planned)
	projections := make(map[string]spec.SampleProjection)
	started := now()
	var tokensSpent int64

	exhaust := func(x budget.Exhaustion) {
		agg.SetTerminated(x.Reason(), x.Details)
		if x.Behavior == budget.BehaviorFail {
			agg.SetForcedFailure(true)
		}
		logger.Debug("budget exhausted",
			"scope", string(x.Scope), "reason", string(x.Reason()), "details", x.Details)
	}

	for i := 1; i <= cfg.Planned; i++ {
		if x, ok := budgets.Check(); ok {
			exhaust(x)
			break
		}
		if err := ctx.Err(); err != nil {
			agg.SetTerminated(ReasonCancelled,
				fmt.Sprintf("context cancelled after %d of %d samples: %v", agg.Executed(), cfg.Planned, err))
			break
		}

		s := &Sample{index: i}
		sampleStart := now()
		err, pan := execute(fn, s, cfg.AbortOnPanic)
		sampleElapsed := now().Sub(sampleStart)

		switch {
		case pan != nil:
			logger.Error("sample panicked", "sample", i, "panic", pan.value, "stack", string(pan.stack))
			agg.RecordException(pan)
		case err != nil:
			logger.Debug("sample failed", "sample", i, "err", err)
			agg.RecordFailure(err)
		default:
			agg.RecordSuccess()
		}

		var charge int64
		switch cfg.TokenMode {
		case budget.TokenModeStatic:
			charge = cfg.TokenCharge
		case budget.TokenModeDynamic:
			charge = s.tokens
		}
		if charge > 0 {
			budgets.Charge(charge)
			tokensSpent += charge
		}

		if s.projection != nil {
			p := *s.projection
			if p.ExecutionTimeMs == 0 {
				p.ExecutionTimeMs = sampleElapsed.Milliseconds()
			}
			projections[spec.ProjectionKey(i)] = p
		}

		// Post-sample check: the sample just charged may have tipped a
		// scope over, and that outranks the stopping bounds.
		if x, ok := budgets.Check(); ok {
			exhaust(x)
			break
		}

		// Running out of samples is completion, not early termination.
		if agg.Executed() < cfg.Planned {
			if reason, details, stop := bernoulli.EvaluateEarly(agg.Successes(), agg.Executed(), cfg.Planned, required); stop {
				agg.SetTerminated(reason, details)
				logger.Debug("sequence stopped early", "reason", string(reason), "details", details)
				break
			}
		}
	}
	agg.SetCompleted()

	if len(projections) == 0 {
		projections = nil
	}
	return &Result{
		Verdict:           Decide(agg.Successes(), agg.Executed(), cfg.RatePPM, agg.ForcedFailure()),
		Reason:            agg.Reason(),
		Details:           agg.Details(),
		Planned:           cfg.Planned,
		Executed:          agg.Executed(),
		Successes:         agg.Successes(),
		Failures:          agg.Failures(),
		RequiredSuccesses: required,
		ForcedFailure:     agg.ForcedFailure(),
		Examples:          agg.Examples(),
		Distribution:      agg.FailureDistribution(),
		Projections:       projections,
		Elapsed:           now().Sub(started),
		TokensSpent:       tokensSpent,
	}
}

// execute runs one sample body. Unless aborting on panic, a panic is
// contained and returned as an exception cause.
func execute(fn Func, s *Sample, abortOnPanic bool) (err error, pan *panicError) {
	if !abortOnPanic {
		defer func() {
			if r := recover(); r != nil {
				pan = &panicError{value: r, stack: debug.Stack()}
			}
		}()
	}
	return fn(s), nil
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
