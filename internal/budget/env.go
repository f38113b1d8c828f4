package budget

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Environment variables configuring the suite-wide budget.
const (
	EnvSuiteTimeBudgetMs = "PUNIT_SUITE_TIME_BUDGET_MS"
	EnvSuiteTokenBudget  = "PUNIT_SUITE_TOKEN_BUDGET"
	EnvSuiteOnExhausted  = "PUNIT_SUITE_ON_BUDGET_EXHAUSTED"
)

// SuiteLimitsFromEnv reads the suite budget from the environment. Unset
// variables leave the corresponding limit unlimited; malformed values are
// reported and otherwise ignored.
func SuiteLimitsFromEnv(getenv func(string) string) (Limits, error) {
	var limits Limits
	var errs []error

	if raw := getenv(EnvSuiteTimeBudgetMs); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid milliseconds %q", EnvSuiteTimeBudgetMs, raw))
		} else {
			limits.Time = time.Duration(ms) * time.Millisecond
		}
	}
	if raw := getenv(EnvSuiteTokenBudget); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid token count %q", EnvSuiteTokenBudget, raw))
		} else {
			limits.Tokens = n
		}
	}
	if raw := getenv(EnvSuiteOnExhausted); raw != "" {
		if ValidBehavior(Behavior(raw)) {
			limits.Behavior = Behavior(raw)
		} else {
			errs = append(errs, fmt.Errorf("%s: unknown behavior %q", EnvSuiteOnExhausted, raw))
		}
	}
	return limits, errors.Join(errs...)
}
