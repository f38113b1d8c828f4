// Package bernoulli implements the sequential bookkeeping for one
// probabilistic test invocation: the per-sample success/failure tally, the
// capped failure-example list, and the deterministic early-stopping bounds.
package bernoulli

import (
	"errors"
	"fmt"
)

type TerminationReason string

const (
	ReasonCompleted         TerminationReason = "COMPLETED"
	ReasonImpossibility     TerminationReason = "IMPOSSIBILITY"
	ReasonSuccessGuaranteed TerminationReason = "SUCCESS_GUARANTEED"
)

// Categorizer lets a failure cause report which bucket it belongs to in the
// failure distribution. Causes that do not implement it are counted under
// CategoryAssertion (recorded failures) or CategoryException (panics and
// other blow-ups).
type Categorizer interface {
	FailureCategory() string
}

const (
	CategoryAssertion = "assertion"
	CategoryException = "exception"
)

// FailureExample is one retained failure cause.
type FailureExample struct {
	Sample   int // 1-based index of the failing sample
	Category string
	Message  string
}

// Aggregator is the running tally for one test invocation. It is owned by
// the goroutine driving the sample loop and is not safe for concurrent use.
type Aggregator struct {
	planned     int
	maxExamples int

	successes    int
	failures     int
	examples     []FailureExample
	distribution map[string]int

	terminated    bool
	reason        TerminationReason
	details       string
	forcedFailure bool
}

func NewAggregator(planned, maxExamples int) *Aggregator {
	return &Aggregator{
		planned:      planned,
		maxExamples:  maxExamples,
		distribution: make(map[string]int),
	}
}

func (a *Aggregator) RecordSuccess() {
	a.successes++
}

// RecordFailure counts a failed sample. The cause is retained as an example
// only while fewer than maxExamples causes have been kept; the count always
// increases.
func (a *Aggregator) RecordFailure(cause error) {
	a.record(cause, CategoryAssertion)
}

// RecordException counts a sample that blew up instead of failing an
// assertion.
func (a *Aggregator) RecordException(cause error) {
	a.record(cause, CategoryException)
}

func (a *Aggregator) record(cause error, fallback string) {
	a.failures++
	category := fallback
	var c Categorizer
	if errors.As(cause, &c) && c.FailureCategory() != "" {
		category = c.FailureCategory()
	}
	a.distribution[category]++
	if len(a.examples) < a.maxExamples {
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		a.examples = append(a.examples, FailureExample{
			Sample:   a.successes + a.failures,
			Category: category,
			Message:  msg,
		})
	}
}

// SetTerminated records why the sequence stopped. Only the first call takes
// effect.
func (a *Aggregator) SetTerminated(reason TerminationReason, details string) {
	if a.terminated {
		return
	}
	a.terminated = true
	a.reason = reason
	a.details = details
}

// SetCompleted marks a sequence that ran every planned sample.
func (a *Aggregator) SetCompleted() {
	a.SetTerminated(ReasonCompleted, fmt.Sprintf("all %d planned samples executed", a.planned))
}

// SetForcedFailure marks the verdict as failing regardless of the observed
// pass rate. Budget exhaustion with FAIL behavior sets it.
func (a *Aggregator) SetForcedFailure(v bool) {
	a.forcedFailure = v
}

func (a *Aggregator) Planned() int   { return a.planned }
func (a *Aggregator) Successes() int { return a.successes }
func (a *Aggregator) Failures() int  { return a.failures }

// Executed is the number of samples with a recorded outcome.
func (a *Aggregator) Executed() int { return a.successes + a.failures }

func (a *Aggregator) Terminated() bool          { return a.terminated }
func (a *Aggregator) Reason() TerminationReason { return a.reason }
func (a *Aggregator) Details() string           { return a.details }
func (a *Aggregator) ForcedFailure() bool       { return a.forcedFailure }

// TerminatedEarly reports whether the sequence stopped for any reason other
// than normal completion.
func (a *Aggregator) TerminatedEarly() bool {
	return a.terminated && a.reason != ReasonCompleted
}

// Examples returns the retained failure causes, oldest first.
func (a *Aggregator) Examples() []FailureExample {
	out := make([]FailureExample, len(a.examples))
	copy(out, a.examples)
	return out
}

// FailureDistribution returns failure counts bucketed by category.
func (a *Aggregator) FailureDistribution() map[string]int {
	out := make(map[string]int, len(a.distribution))
	for k, v := range a.distribution {
		out[k] = v
	}
	return out
}

// PassRate is the observed success fraction over executed samples. It is
// for reporting; verdicts use the integer comparison in MeetsRate.
func (a *Aggregator) PassRate() float64 {
	if a.Executed() == 0 {
		return 0
	}
	return float64(a.successes) / float64(a.Executed())
}
