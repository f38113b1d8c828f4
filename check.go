package punit

import "context"

// TestingT is the slice of *testing.T the Check adapter needs.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// Check runs the experiment and reports the outcome on t: a configuration
// or baseline error stops the test immediately, a FAIL verdict fails it
// with the summary line and the retained failure examples, and a PASS
// returns quietly. The run's context is taken from t when it provides one.
func (e *Engine) Check(t TestingT, exp Experiment, body TestFunc) *Report {
	t.Helper()

	ctx := context.Background()
	if c, ok := t.(interface{ Context() context.Context }); ok {
		ctx = c.Context()
	}

	r, err := e.Run(ctx, exp, body)
	if err != nil {
		t.Errorf("%s: %v", exp.Name, err)
		t.FailNow()
		return nil
	}
	if r.Verdict == VerdictFail {
		t.Errorf("%s", r.Message())
		for _, ex := range r.Examples {
			t.Errorf("%s: sample %d (%s): %s", r.Name, ex.Sample, ex.Category, ex.Message)
		}
	}
	return r
}
