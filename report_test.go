package punit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportMessage(t *testing.T) {
	r := &Report{
		Name:      "Checkout.applyDiscount",
		Verdict:   VerdictFail,
		Reason:    ReasonImpossibility,
		Planned:   10,
		Executed:  4,
		Successes: 1,
		Failures:  3,
		PassRate:  0.25,
		Threshold: 0.8,
		Elapsed:   120 * time.Millisecond,
	}
	assert.Equal(t,
		"Checkout.applyDiscount: FAIL: 4 of 10 planned samples executed, "+
			"1 successes, 3 failures, observed rate 25.00% vs required 80.00%, "+
			"terminated IMPOSSIBILITY, elapsed 120ms",
		r.Message())

	forced := &Report{
		Name:          "Agent.plan",
		Verdict:       VerdictFail,
		Reason:        ReasonMethodTokens,
		Planned:       20,
		Executed:      5,
		Successes:     5,
		Failures:      0,
		PassRate:      1.0,
		Threshold:     0.9,
		ForcedFailure: true,
		Elapsed:       2 * time.Second,
	}
	assert.Equal(t,
		"Agent.plan: FAIL: 5 of 20 planned samples executed, "+
			"5 successes, 0 failures, observed rate 100.00% vs required 90.00%, "+
			"budget exhaustion forced the verdict, "+
			"terminated METHOD_TOKEN_BUDGET_EXHAUSTED, elapsed 2s",
		forced.Message())
}

func TestSpecificationFromReport(t *testing.T) {
	started := time.Date(2025, 3, 11, 14, 30, 0, 0, time.UTC)
	r := &Report{
		Name:            "Checkout.applyDiscount",
		Verdict:         VerdictPass,
		Reason:          ReasonCompleted,
		Details:         "all planned samples executed",
		Planned:         10,
		Executed:        10,
		Successes:       10,
		Failures:        0,
		PassRate:        1.0,
		Threshold:       0.8,
		Confidence:      0.95,
		Elapsed:         5 * time.Second,
		TokensSpent:     1000,
		Footprint:       "a1b2c3d4",
		Covariates:      map[string]string{"model": "gpt-4"},
		SuccessCriteria: "discounted total matches the price table",
		StartedAt:       started,
		FinishedAt:      started.Add(5 * time.Second),
	}

	s := r.Specification()
	require.NoError(t, s.Validate())

	assert.Equal(t, "Checkout.applyDiscount", s.UseCaseID)
	assert.Equal(t, 1, s.Version)
	assert.True(t, s.GeneratedAt.Equal(r.FinishedAt))
	assert.Equal(t, "a1b2c3d4", s.Footprint)
	assert.Equal(t, map[string]string{"model": "gpt-4"}, s.Covariates)

	assert.Equal(t, 10, s.Execution.SamplesPlanned)
	assert.Equal(t, 10, s.Execution.SamplesExecuted)
	assert.Equal(t, "COMPLETED", s.Execution.TerminationReason)
	assert.Equal(t, "all planned samples executed", s.Execution.TerminationDetails)

	// Ten of ten is recorded as its Wilson lower bound, not as 100%.
	assert.InDelta(t, 0.72246, s.Requirements.MinPassRate, 1e-9)
	assert.Equal(t, "discounted total matches the price table", s.Requirements.SuccessCriteria)
	require.NotNil(t, s.SuccessCriteria)
	assert.Equal(t, "discounted total matches the price table", s.SuccessCriteria.Definition)

	assert.Equal(t, 1.0, s.Statistics.SuccessRate.Observed)
	assert.Equal(t, 0.0, s.Statistics.SuccessRate.StandardError)
	assert.Equal(t, [2]float64{1, 1}, s.Statistics.SuccessRate.ConfidenceInterval95)
	assert.Equal(t, 10, s.Statistics.Successes)
	assert.Equal(t, 0, s.Statistics.Failures)

	assert.Equal(t, int64(5000), s.Cost.TotalTimeMs)
	assert.Equal(t, 500.0, s.Cost.AvgTimePerSampleMs)
	assert.Equal(t, int64(1000), s.Cost.TotalTokens)
	assert.Equal(t, 100.0, s.Cost.AvgTokensPerSample)
}

func TestSpecificationWilsonAtPartialRate(t *testing.T) {
	r := &Report{
		Name:       "Agent.plan",
		Planned:    20,
		Executed:   20,
		Successes:  18,
		Failures:   2,
		PassRate:   0.9,
		Confidence: 0.95,
	}

	got := r.Specification().Requirements.MinPassRate
	assert.InDelta(t, 0.698962, got, 1e-4)
	// Quantized to ppm: rounding again must be a no-op.
	assert.Equal(t, roundPPM(got), got)

	// An unsupported confidence falls back to the default level.
	r.Confidence = 0.42
	assert.Equal(t, got, r.Specification().Requirements.MinPassRate)
}

func TestSpecificationZeroExecuted(t *testing.T) {
	r := &Report{
		Name:       "Agent.plan",
		Verdict:    VerdictFail,
		Reason:     ReasonCancelled,
		Planned:    5,
		Confidence: 0.95,
	}

	s := r.Specification()
	require.NoError(t, s.Validate())

	assert.Equal(t, 0.0, s.Requirements.MinPassRate)
	assert.Equal(t, 0.0, s.Cost.AvgTimePerSampleMs)
	assert.Equal(t, 0.0, s.Cost.AvgTokensPerSample)
	assert.Equal(t, 0.0, s.Statistics.SuccessRate.Observed)
	assert.Equal(t, 0.0, s.Statistics.SuccessRate.StandardError)
	assert.Equal(t, [2]float64{0, 0}, s.Statistics.SuccessRate.ConfidenceInterval95)
}
