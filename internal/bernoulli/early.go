package bernoulli

import (
	"fmt"
	"math"
)

const ppmScale = 1_000_000

// QuantizeRate converts a pass rate in [0, 1] to parts-per-million so that
// every threshold comparison stays in integer arithmetic. Rates with more
// than six decimal digits are rounded.
func QuantizeRate(rate float64) (int64, error) {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return 0, fmt.Errorf("pass rate %v out of [0, 1]", rate)
	}
	return int64(math.Round(rate * ppmScale)), nil
}

// RequiredSuccesses is ceil(rate × total) computed without floating point.
func RequiredSuccesses(ratePPM int64, total int) int {
	if total <= 0 {
		return 0
	}
	return int((ratePPM*int64(total) + ppmScale - 1) / ppmScale)
}

// MeetsRate reports successes/executed ≥ rate by cross-multiplication. A
// sequence with no executed samples never meets any rate.
func MeetsRate(successes, executed int, ratePPM int64) bool {
	if executed <= 0 {
		return false
	}
	return int64(successes)*ppmScale >= ratePPM*int64(executed)
}

// EvaluateEarly applies the two deterministic stopping bounds after a
// sample has been recorded. Both are exact: SUCCESS_GUARANTEED means no
// remaining outcome can drop the tally below the requirement, IMPOSSIBILITY
// means no remaining outcome can reach it. Callers consult it only while
// executed < total; running out of samples is completion, not early
// termination.
func EvaluateEarly(successes, executed, total, required int) (TerminationReason, string, bool) {
	if successes >= required {
		return ReasonSuccessGuaranteed,
			fmt.Sprintf("required %d successes reached after %d of %d samples", required, executed, total),
			true
	}
	if maxPossible := successes + (total - executed); maxPossible < required {
		return ReasonImpossibility,
			fmt.Sprintf("at most %d successes still achievable after %d of %d samples, %d required", maxPossible, executed, total, required),
			true
	}
	return "", "", false
}
