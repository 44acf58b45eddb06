package diffexp

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
)

// squeezeVar estimates the empirical-Bayes prior for the marker-level
// residual variances by moment matching on the log variances (Smyth 2004).
// Under the scaled-F model, log s² has expectation digamma(df/2) - log(df/2)
// + log σ² and variance trigamma(df/2) + trigamma(d0/2); the excess spread of
// the observed log variances over what the residual df alone explains
// identifies the prior df d0, and the centering identifies the prior
// variance s0².
//
// A zero return for priorDF means too few usable variances to fit a prior
// (callers then fall back to the unshrunk variances). An infinite priorDF
// means the observed variances are no more spread than chance, so every
// variance collapses onto the prior.
func squeezeVar(fits []markerFit) (priorDF, priorVar float64) {
	var e []float64
	var triSum float64

	for _, f := range fits {
		if !f.ok || f.df <= 0 || f.s2 <= 0 {
			continue
		}
		e = append(e, math.Log(f.s2)-mathext.Digamma(f.df/2)+math.Log(f.df/2))
		triSum += trigamma(f.df / 2)
	}

	if len(e) < 2 {
		return 0, 0
	}

	eMean, eVar := stat.MeanVariance(e, nil)
	excess := eVar - triSum/float64(len(e))

	if excess <= 0 {
		return math.Inf(1), math.Exp(eMean)
	}

	priorDF = 2 * trigammaInverse(excess)
	priorVar = math.Exp(eMean + mathext.Digamma(priorDF/2) - math.Log(priorDF/2))

	return priorDF, priorVar
}

// trigamma computes the second derivative of the log gamma function via the
// usual recurrence into the asymptotic series' region of validity.
func trigamma(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return math.NaN()
	}

	var acc float64
	for x < 6 {
		acc += 1 / (x * x)
		x++
	}

	// Asymptotic expansion with Bernoulli-number coefficients.
	inv := 1 / x
	inv2 := inv * inv

	return acc + inv*(1+
		inv*(0.5+
			inv*(1.0/6-
				inv2*(1.0/30-
					inv2*(1.0/42-
						inv2/30)))))
}

// trigammaInverse solves trigamma(y) = x for y. trigamma is strictly
// decreasing on (0, inf), so bisection converges unconditionally.
func trigammaInverse(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return math.NaN()
	}

	// trigamma(y) ~ 1/y for large y and ~ 1/y² near zero.
	if x > 1e7 {
		return 1 / math.Sqrt(x)
	}
	if x < 1e-7 {
		return 1 / x
	}

	lo, hi := 1e-8, 1e8
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if trigamma(mid) > x {
			lo = mid
		} else {
			hi = mid
		}

		if hi-lo < 1e-10*math.Max(1, lo) {
			break
		}
	}

	return (lo + hi) / 2
}
