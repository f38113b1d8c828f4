package bernoulli

import (
	"fmt"
	"math"
	"sort"
)

// z-scores for the supported confidence levels.
var zScores = map[float64]float64{
	0.90: 1.6449,
	0.95: 1.9600,
	0.99: 2.5758,
}

func ZScore(confidence float64) (float64, error) {
	z, ok := zScores[confidence]
	if !ok {
		levels := make([]float64, 0, len(zScores))
		for c := range zScores {
			levels = append(levels, c)
		}
		sort.Float64s(levels)
		return 0, fmt.Errorf("unsupported confidence level %v (supported: %v)", confidence, levels)
	}
	return z, nil
}

// WaldInterval returns the normal-approximation standard error and 95%
// confidence interval for an observed success count, clamped to [0, 1].
// These are the values persisted in a baseline's statistics block.
func WaldInterval(successes, executed int) (se, lo, hi float64) {
	if executed <= 0 {
		return 0, 0, 0
	}
	p := float64(successes) / float64(executed)
	se = math.Sqrt(p * (1 - p) / float64(executed))
	z := zScores[0.95]
	lo = math.Max(0, p-z*se)
	hi = math.Min(1, p+z*se)
	return se, lo, hi
}

// WilsonLowerBound is the lower bound of the Wilson score interval for an
// observed rate over executed samples. Thresholds derived from baselines
// use it; unlike the Wald bound it behaves at small counts and extreme
// rates.
func WilsonLowerBound(observed float64, executed int, z float64) float64 {
	if executed <= 0 {
		return 0
	}
	n := float64(executed)
	z2 := z * z
	denom := 1 + z2/n
	center := observed + z2/(2*n)
	margin := z * math.Sqrt(observed*(1-observed)/n+z2/(4*n*n))
	lower := (center - margin) / denom
	switch {
	case lower < 0:
		return 0
	case lower > 1:
		return 1
	default:
		return lower
	}
}
