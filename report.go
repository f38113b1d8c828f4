package punit

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/punit-dev/punit/internal/bernoulli"
	"github.com/punit-dev/punit/internal/spec"
)

// ThresholdSource names where a run's minimum pass rate came from.
type ThresholdSource string

const (
	// ThresholdExplicit is an experiment's literal MinPassRate.
	ThresholdExplicit ThresholdSource = "explicit"
	// ThresholdBaselineStats derives the threshold from the experiment's
	// BaselineRate over BaselineSamples.
	ThresholdBaselineStats ThresholdSource = "baseline-statistics"
	// ThresholdStoredSpec reads the newest specification stored under the
	// experiment's SpecID.
	ThresholdStoredSpec ThresholdSource = "stored-specification"
	// ThresholdSelectedBaseline selects a stored specification by
	// footprint and covariate conformance.
	ThresholdSelectedBaseline ThresholdSource = "selected-baseline"
)

// BaselineRef identifies the stored specification a run was judged against
// and how well the run's covariates conformed to it.
type BaselineRef struct {
	Filename    string
	UseCaseID   string
	GeneratedAt time.Time
	Score       int
	Conformance map[string]Conformance
	Ambiguous   bool
}

// Report is the full outcome of one experiment run.
type Report struct {
	RunID string
	Name  string

	Verdict Verdict
	Reason  TerminationReason
	Details string

	Planned           int
	Executed          int
	Successes         int
	Failures          int
	RequiredSuccesses int

	// PassRate is the observed success fraction over executed samples;
	// Threshold is the minimum it had to reach, quantized to ppm.
	PassRate        float64
	Threshold       float64
	ThresholdSource ThresholdSource
	Confidence      float64

	// ForcedFailure marks a verdict forced by a FAIL budget scope
	// regardless of the observed rate.
	ForcedFailure bool

	Examples            []FailureExample
	FailureDistribution map[string]int
	Projections         map[string]SampleProjection

	Elapsed     time.Duration
	TokensSpent int64

	Footprint       string
	Covariates      map[string]string
	SuccessCriteria string

	// Baseline is set when the threshold came from repository selection.
	Baseline *BaselineRef

	StartedAt  time.Time
	FinishedAt time.Time
}

// Message renders the single-line verdict summary: counts, observed versus
// required rate, how the sequence terminated, and the elapsed time.
func (r *Report) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %d of %d planned samples executed, %d successes, %d failures, observed rate %s vs required %s",
		r.Name, r.Verdict, r.Executed, r.Planned, r.Successes, r.Failures,
		percent(r.PassRate), percent(r.Threshold))
	if r.ForcedFailure {
		b.WriteString(", budget exhaustion forced the verdict")
	}
	fmt.Fprintf(&b, ", terminated %s, elapsed %s", r.Reason, r.Elapsed.Round(time.Millisecond))
	return b.String()
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

// Specification renders the run as a persistable baseline record. The
// derived Requirements.MinPassRate is the Wilson lower confidence bound of
// the observed rate, so future runs are held to what this run statistically
// supports rather than to its raw rate. Callers review the record and
// typically set Expiration, then pass it to Engine.RecordBaseline.
func (r *Report) Specification() *Specification {
	z, err := bernoulli.ZScore(r.Confidence)
	if err != nil {
		z, _ = bernoulli.ZScore(DefaultConfidence)
	}
	se, lo, hi := bernoulli.WaldInterval(r.Successes, r.Executed)

	var avgTimeMs, avgTokens float64
	if r.Executed > 0 {
		avgTimeMs = float64(r.Elapsed.Milliseconds()) / float64(r.Executed)
		avgTokens = float64(r.TokensSpent) / float64(r.Executed)
	}

	s := &spec.Specification{
		UseCaseID:   r.Name,
		Version:     1,
		GeneratedAt: r.FinishedAt,
		Footprint:   r.Footprint,
		Covariates:  maps.Clone(r.Covariates),
		Execution: spec.Execution{
			SamplesPlanned:     r.Planned,
			SamplesExecuted:    r.Executed,
			TerminationReason:  string(r.Reason),
			TerminationDetails: r.Details,
		},
		Requirements: spec.Requirements{
			MinPassRate:     roundPPM(bernoulli.WilsonLowerBound(r.PassRate, r.Executed, z)),
			SuccessCriteria: r.SuccessCriteria,
		},
		Statistics: spec.Statistics{
			SuccessRate: spec.SuccessRate{
				Observed:             r.PassRate,
				StandardError:        se,
				ConfidenceInterval95: [2]float64{lo, hi},
			},
			Successes:           r.Successes,
			Failures:            r.Failures,
			FailureDistribution: maps.Clone(r.FailureDistribution),
		},
		Cost: spec.Cost{
			TotalTimeMs:        r.Elapsed.Milliseconds(),
			AvgTimePerSampleMs: avgTimeMs,
			TotalTokens:        r.TokensSpent,
			AvgTokensPerSample: avgTokens,
		},
		ResultProjection: maps.Clone(r.Projections),
	}
	if r.SuccessCriteria != "" {
		s.SuccessCriteria = &spec.SuccessCriteria{Definition: r.SuccessCriteria}
	}
	return s
}

// roundPPM keeps a derived rate exactly representable at ppm precision, so
// the recorded threshold and the one enforced later never disagree.
func roundPPM(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
