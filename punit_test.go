package punit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEngineSingleton(t *testing.T) {
	SetDefault(nil)
	t.Cleanup(func() { SetDefault(nil) })

	first := Default()
	require.NotNil(t, first)
	assert.Same(t, first, Default())

	custom := testEngine(t, Options{})
	SetDefault(custom)
	assert.Same(t, custom, Default())
}

func TestPackageLevelRunAndCheck(t *testing.T) {
	SetDefault(testEngine(t, Options{}))
	t.Cleanup(func() { SetDefault(nil) })

	rep, err := Run(context.Background(), Experiment{
		Name:        "Checkout.applyDiscount",
		Samples:     5,
		MinPassRate: 0.8,
	}, succeed)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, rep.Verdict)

	ft := &fakeT{}
	rep = Check(ft, Experiment{
		Name:        "Checkout.applyDiscount",
		Samples:     5,
		MinPassRate: 0.8,
	}, succeed)
	require.NotNil(t, rep)
	assert.Equal(t, VerdictPass, rep.Verdict)
	assert.Empty(t, ft.errors)
	assert.Positive(t, ft.helperCalls)
}
