package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePerfectMatch(t *testing.T) {
	preds := []float64{100, 101, 102, 103}
	m := Compute(preds, preds)
	require.NotNil(t, m)

	assert.Zero(t, m.MAE)
	assert.Zero(t, m.RMSE)
	assert.Zero(t, m.Bias)
	assert.Equal(t, 1.0, m.RSquared)
	require.NotNil(t, m.MAPE)
	assert.Zero(t, *m.MAPE)
	assert.Equal(t, 1.0, m.DirectionAccuracy)
}

func TestComputeKnownErrors(t *testing.T) {
	preds := []float64{10, 20, 30}
	acts := []float64{12, 18, 33}
	m := Compute(preds, acts)
	require.NotNil(t, m)

	// errors: +2, -2, +3
	assert.InDelta(t, 7.0/3.0, m.MAE, 1e-9)
	assert.InDelta(t, math.Sqrt(17.0/3.0), m.RMSE, 1e-9)
	assert.InDelta(t, 1.0, m.Bias, 1e-9)
	assert.Equal(t, 3.0, m.MaxError)
	assert.Equal(t, 2.0, m.MinError)
	assert.Equal(t, 2.0, m.MedianAbsError)
}

func TestComputeRMSEAtLeastMAE(t *testing.T) {
	preds := []float64{1, 2, 3, 4, 5, 6}
	acts := []float64{1.5, 1.8, 3.9, 3.2, 5.5, 7.1}
	m := Compute(preds, acts)
	require.NotNil(t, m)
	assert.GreaterOrEqual(t, m.RMSE, m.MAE)
}

func TestComputeMAPEUndefinedOnZeroActual(t *testing.T) {
	m := Compute([]float64{1, 2, 3}, []float64{1, 0, 3})
	require.NotNil(t, m)
	assert.Nil(t, m.MAPE)
}

func TestComputeLengthMismatch(t *testing.T) {
	assert.Nil(t, Compute([]float64{1, 2}, []float64{1}))
	assert.Nil(t, Compute(nil, nil))
}

func TestComputeDropsNonFinitePairs(t *testing.T) {
	preds := []float64{1, math.NaN(), 3}
	acts := []float64{1, 2, 3}
	m := Compute(preds, acts)
	require.NotNil(t, m)
	assert.Zero(t, m.MAE)

	assert.Nil(t, Compute([]float64{math.Inf(1)}, []float64{1}))
}

func TestDirectionAccuracy(t *testing.T) {
	// actual goes up, up; prediction goes up, down
	acts := []float64{1, 2, 3}
	preds := []float64{1, 2, 1}
	assert.InDelta(t, 0.5, DirectionAccuracy(acts, preds), 1e-9)

	// a mirrored prediction moves against the actual at every step
	assert.Zero(t, DirectionAccuracy([]float64{1, 2, 3, 4}, []float64{4, 3, 2, 1}))

	// flat steps excluded from the denominator
	assert.Zero(t, DirectionAccuracy([]float64{1, 1, 1}, []float64{1, 2, 3}))
	assert.Zero(t, DirectionAccuracy([]float64{1}, []float64{1}))
}

func TestTheilsU(t *testing.T) {
	acts := []float64{1, 2, 3, 4}

	// perfect forecast beats the naive baseline
	assert.Zero(t, TheilsU(acts, acts))

	// flat forecast against a moving series equals the baseline
	assert.Equal(t, 1.0, TheilsU(acts, []float64{1, 1, 1, 1}))

	// too short or flat actuals: worst case by definition
	assert.Equal(t, 1.0, TheilsU([]float64{5}, []float64{5}))
	assert.Equal(t, 1.0, TheilsU([]float64{5, 5, 5}, []float64{1, 2, 3}))
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 2.0, Slope([]float64{1, 3, 5, 7}), 1e-9)
	assert.InDelta(t, -1.0, Slope([]float64{10, 9, 8, 7}), 1e-9)
	assert.Zero(t, Slope([]float64{4, 4, 4}))
	assert.Zero(t, Slope([]float64{4}))
	assert.Zero(t, Slope(nil))
}
