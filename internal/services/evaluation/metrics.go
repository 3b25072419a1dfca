package evaluation

import (
	"math"
	"sort"

	"FinCast/internal/domain/models"
)

// Compute derives the full MetricSet from paired prediction/actual values.
// Pairs containing a NaN or Inf on either side are dropped jointly to keep
// alignment. Returns nil when lengths mismatch or no valid pair remains.
func Compute(predictions, actuals []float64) *models.MetricSet {
	if len(predictions) != len(actuals) || len(predictions) == 0 {
		return nil
	}

	preds := make([]float64, 0, len(predictions))
	acts := make([]float64, 0, len(actuals))
	for i := range predictions {
		if !isFinite(predictions[i]) || !isFinite(actuals[i]) {
			continue
		}
		preds = append(preds, predictions[i])
		acts = append(acts, actuals[i])
	}
	if len(preds) == 0 {
		return nil
	}

	n := float64(len(preds))
	errs := make([]float64, len(preds))
	absErrs := make([]float64, len(preds))
	var sumErr, sumAbs, sumSq float64
	maxAbs := math.Inf(-1)
	minAbs := math.Inf(1)
	for i := range preds {
		e := acts[i] - preds[i]
		errs[i] = e
		a := math.Abs(e)
		absErrs[i] = a
		sumErr += e
		sumAbs += a
		sumSq += e * e
		if a > maxAbs {
			maxAbs = a
		}
		if a < minAbs {
			minAbs = a
		}
	}

	m := &models.MetricSet{
		MAE:      sumAbs / n,
		RMSE:     math.Sqrt(sumSq / n),
		Bias:     sumErr / n,
		MaxError: maxAbs,
		MinError: minAbs,
	}

	// Std deviation of signed errors around their mean.
	var sumDev float64
	for _, e := range errs {
		d := e - m.Bias
		sumDev += d * d
	}
	m.StdError = math.Sqrt(sumDev / n)

	// MAPE is undefined whenever any actual is exactly zero.
	zeroActual := false
	var sumPct float64
	for i := range acts {
		if acts[i] == 0 {
			zeroActual = true
			break
		}
		sumPct += math.Abs(errs[i]/acts[i]) * 100
	}
	if !zeroActual {
		mape := sumPct / n
		m.MAPE = &mape
	}

	m.MedianAbsError = median(absErrs)
	m.RSquared = rSquared(acts, preds)
	m.DirectionAccuracy = DirectionAccuracy(acts, preds)
	m.TheilsU = TheilsU(acts, preds)
	if len(errs) > 5 {
		m.ErrorTrend = Slope(errs)
	}

	return m
}

// rSquared is the coefficient of determination, 0 when total variance is zero.
func rSquared(actuals, predictions []float64) float64 {
	var mean float64
	for _, a := range actuals {
		mean += a
	}
	mean /= float64(len(actuals))

	var ssRes, ssTot float64
	for i := range actuals {
		d := actuals[i] - predictions[i]
		ssRes += d * d
		t := actuals[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// DirectionAccuracy is the fraction of adjacent steps where actual and
// predicted changes agree in sign. Zero-change steps on either side are
// excluded from the denominator. Returns 0 with fewer than 2 points or when
// no directional pair remains.
func DirectionAccuracy(actuals, predictions []float64) float64 {
	if len(actuals) < 2 {
		return 0
	}
	var considered, correct int
	for i := 1; i < len(actuals); i++ {
		da := sign(actuals[i] - actuals[i-1])
		dp := sign(predictions[i] - predictions[i-1])
		if da == 0 || dp == 0 {
			continue
		}
		considered++
		if da == dp {
			correct++
		}
	}
	if considered == 0 {
		return 0
	}
	return float64(correct) / float64(considered)
}

// TheilsU compares the forecast's step-to-step squared error against a naive
// no-change baseline. 1.0 is the worst-case value, returned when fewer than
// 2 points exist or the naive baseline is zero.
func TheilsU(actuals, predictions []float64) float64 {
	if len(actuals) < 2 {
		return 1.0
	}
	var mseForecast, mseNaive float64
	for i := 1; i < len(actuals); i++ {
		ac := actuals[i] - actuals[i-1]
		pc := predictions[i] - predictions[i-1]
		d := ac - pc
		mseForecast += d * d
		mseNaive += ac * ac
	}
	if mseNaive == 0 {
		return 1.0
	}
	return math.Sqrt(mseForecast / mseNaive)
}

func median(values []float64) float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
