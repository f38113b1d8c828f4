package trial

import "github.com/punit-dev/punit/internal/bernoulli"

// Verdict is the binary outcome of one probabilistic test invocation.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Decide renders the verdict for a terminated sequence. A forced failure
// (budget exhaustion with FAIL behavior) is final regardless of the
// observed outcomes; otherwise the observed successes over executed
// samples must meet the required rate. The comparison is exact integer
// arithmetic, so a sequence at exactly the threshold passes.
func Decide(successes, executed int, ratePPM int64, forcedFailure bool) Verdict {
	if forcedFailure {
		return VerdictFail
	}
	if bernoulli.MeetsRate(successes, executed, ratePPM) {
		return VerdictPass
	}
	return VerdictFail
}
