package punit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeT struct {
	helperCalls int
	errors      []string
	failedNow   bool
}

func (f *fakeT) Helper() { f.helperCalls++ }

func (f *fakeT) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func (f *fakeT) FailNow() { f.failedNow = true }

// fakeTCtx additionally exposes a context, like *testing.T does.
type fakeTCtx struct {
	fakeT
	ctx context.Context
}

func (f *fakeTCtx) Context() context.Context { return f.ctx }

func TestCheckPassQuiet(t *testing.T) {
	e := testEngine(t, Options{})
	ft := &fakeT{}

	rep := e.Check(ft, Experiment{
		Name:        "Checkout.applyDiscount",
		Samples:     10,
		MinPassRate: 0.8,
	}, succeed)

	require.NotNil(t, rep)
	assert.Equal(t, VerdictPass, rep.Verdict)
	assert.Empty(t, ft.errors)
	assert.False(t, ft.failedNow)
	assert.Positive(t, ft.helperCalls)
}

func TestCheckFailReportsMessageAndExamples(t *testing.T) {
	e := testEngine(t, Options{})
	ft := &fakeT{}

	rep := e.Check(ft, Experiment{
		Name:               "Checkout.applyDiscount",
		Samples:            10,
		MinPassRate:        0.8,
		MaxExampleFailures: 2,
	}, func(s *Sample) error {
		return fmt.Errorf("boom %d", s.Index())
	})

	require.NotNil(t, rep)
	assert.Equal(t, VerdictFail, rep.Verdict)
	assert.Equal(t, ReasonImpossibility, rep.Reason)
	assert.False(t, ft.failedNow)

	// One summary line plus one line per retained example.
	require.Len(t, ft.errors, 3)
	assert.Equal(t, rep.Message(), ft.errors[0])
	assert.Equal(t, "Checkout.applyDiscount: sample 1 (assertion): boom 1", ft.errors[1])
	assert.Equal(t, "Checkout.applyDiscount: sample 2 (assertion): boom 2", ft.errors[2])
}

func TestCheckConfigErrorFailsNow(t *testing.T) {
	e := testEngine(t, Options{})
	ft := &fakeT{}

	rep := e.Check(ft, Experiment{Name: "Checkout.applyDiscount"}, succeed)

	assert.Nil(t, rep)
	assert.True(t, ft.failedNow)
	require.Len(t, ft.errors, 1)
	assert.Contains(t, ft.errors[0], "samples must be at least 1")
}

func TestCheckUsesTContext(t *testing.T) {
	e := testEngine(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ft := &fakeTCtx{ctx: ctx}

	rep := e.Check(ft, Experiment{
		Name:        "Checkout.applyDiscount",
		Samples:     5,
		MinPassRate: 0.8,
	}, succeed)

	require.NotNil(t, rep)
	assert.Equal(t, VerdictFail, rep.Verdict)
	assert.Equal(t, ReasonCancelled, rep.Reason)
	assert.Equal(t, 0, rep.Executed)
	require.Len(t, ft.errors, 1)
	assert.Equal(t, rep.Message(), ft.errors[0])
}
