// Package diffexp fits per-marker two-group linear models with
// empirical-Bayes variance shrinkage, in the style of moderated t-statistics.
// Marker-level residual variances are pooled toward a common prior so that
// datasets with 6-12 samples per group do not hinge on unstable per-marker
// variance estimates.
package diffexp

import (
	"fmt"
	"math"
	"sort"

	"github.com/astroglial/panelharm/expr"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// confidenceLevel is the nominal coverage of the reported effect-size
// interval.
const confidenceLevel = 0.95

// Result holds the moderated statistics for one marker. Effect is the mean of
// the non-reference group minus the mean of the reference group. Markers with
// too few observed values in either group carry NaN statistics and are
// excluded from the FDR correction.
type Result struct {
	Marker string
	Effect float64
	CILow  float64
	CIHigh float64
	T      float64
	P      float64
	FDR    float64
	N1     int // observed reference-group values
	N2     int // observed non-reference values
}

// CompareTwoGroups fits a two-group model per marker and returns one Result
// per matrix row, in row order. groups assigns each sample a label; samples
// with an empty label are ignored, and the remaining labels must number
// exactly two, one of which is reference. Each group must contribute at least
// 2 samples or the whole call fails without partial results.
func CompareTwoGroups(m *expr.Matrix, groups map[string]string, reference string) ([]Result, error) {
	refIdx, otherIdx, other, err := splitSamples(m.Samples, groups, reference)
	if err != nil {
		return nil, err
	}

	if len(refIdx) < 2 {
		return nil, InsufficientSamplesError{Group: reference, N: len(refIdx)}
	}
	if len(otherIdx) < 2 {
		return nil, InsufficientSamplesError{Group: other, N: len(otherIdx)}
	}

	fits := make([]markerFit, 0, m.NRows())
	for _, marker := range m.Markers {
		fits = append(fits, fitMarker(marker, m.Row(marker), refIdx, otherIdx))
	}

	priorDF, priorVar := squeezeVar(fits)

	results := make([]Result, 0, len(fits))
	for _, fit := range fits {
		results = append(results, fit.moderated(priorDF, priorVar))
	}

	applyFDR(results)

	return results, nil
}

// splitSamples partitions sample indices into the reference group and the
// single other group.
func splitSamples(samples []string, groups map[string]string, reference string) (refIdx, otherIdx []int, other string, err error) {
	labels := make(map[string][]int)
	for i, id := range samples {
		label := groups[id]
		if label == "" {
			continue
		}
		labels[label] = append(labels[label], i)
	}

	if len(labels) != 2 {
		return nil, nil, "", ConfigurationError(fmt.Sprintf("diffexp: need exactly 2 group labels, got %d", len(labels)))
	}
	if _, ok := labels[reference]; !ok {
		return nil, nil, "", ConfigurationError(fmt.Sprintf("diffexp: reference group %q is not among the assigned labels", reference))
	}

	for label, idx := range labels {
		if label == reference {
			refIdx = idx
			continue
		}
		other = label
		otherIdx = idx
	}

	return refIdx, otherIdx, other, nil
}

// markerFit holds the per-marker sufficient statistics before shrinkage.
type markerFit struct {
	marker string
	effect float64
	s2     float64 // pooled residual variance
	df     float64 // residual degrees of freedom
	n1, n2 int
	ok     bool
}

func fitMarker(marker string, row []float64, refIdx, otherIdx []int) markerFit {
	ref := gather(row, refIdx)
	other := gather(row, otherIdx)

	fit := markerFit{marker: marker, n1: len(ref), n2: len(other)}

	if len(ref) < 2 || len(other) < 2 {
		return fit
	}

	mRef, vRef := stat.MeanVariance(ref, nil)
	mOther, vOther := stat.MeanVariance(other, nil)

	n1, n2 := float64(len(ref)), float64(len(other))

	fit.effect = mOther - mRef
	fit.df = n1 + n2 - 2
	fit.s2 = ((n1-1)*vRef + (n2-1)*vOther) / fit.df
	fit.ok = true

	return fit
}

// gather returns the observed values of row at the given sample indices.
func gather(row []float64, idx []int) []float64 {
	out := make([]float64, 0, len(idx))
	for _, i := range idx {
		if v := row[i]; !expr.IsMissing(v) {
			out = append(out, v)
		}
	}

	return out
}

// moderated converts a raw fit into a Result using the squeezed variance. A
// non-positive prior df means no usable prior was estimable, so the ordinary
// pooled variance is used unshrunk. An infinite prior df collapses every
// variance onto the prior and the reference distribution becomes Normal.
func (f markerFit) moderated(priorDF, priorVar float64) Result {
	out := Result{
		Marker: f.marker,
		Effect: math.NaN(),
		CILow:  math.NaN(),
		CIHigh: math.NaN(),
		T:      math.NaN(),
		P:      math.NaN(),
		FDR:    math.NaN(),
		N1:     f.n1,
		N2:     f.n2,
	}

	if !f.ok {
		return out
	}

	var s2Post, dfTotal float64
	switch {
	case math.IsInf(priorDF, 1):
		s2Post = priorVar
		dfTotal = math.Inf(1)
	case priorDF > 0:
		s2Post = (priorDF*priorVar + f.df*f.s2) / (priorDF + f.df)
		dfTotal = priorDF + f.df
	default:
		s2Post = f.s2
		dfTotal = f.df
	}

	se := math.Sqrt(s2Post * (1/float64(f.n1) + 1/float64(f.n2)))

	out.Effect = f.effect

	if se == 0 {
		// Every value in both groups is identical under the prior; a zero
		// effect is certain, a nonzero one is infinitely surprising.
		if f.effect == 0 {
			out.T, out.P = 0, 1
			out.CILow, out.CIHigh = 0, 0
		} else {
			out.T = math.Copysign(math.Inf(1), f.effect)
			out.P = 0
			out.CILow, out.CIHigh = f.effect, f.effect
		}

		return out
	}

	out.T = f.effect / se
	out.P = 2 * tailCDF(-math.Abs(out.T), dfTotal)

	crit := tailQuantile(1-(1-confidenceLevel)/2, dfTotal)
	out.CILow = f.effect - crit*se
	out.CIHigh = f.effect + crit*se

	return out
}

func tailCDF(x, df float64) float64 {
	if math.IsInf(df, 1) {
		return distuv.Normal{Mu: 0, Sigma: 1}.CDF(x)
	}

	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.CDF(x)
}

func tailQuantile(p, df float64) float64 {
	if math.IsInf(df, 1) {
		return distuv.Normal{Mu: 0, Sigma: 1}.Quantile(p)
	}

	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(p)
}

// applyFDR fills the FDR field with Benjamini-Hochberg adjusted p-values
// computed across the non-NaN p-values of this call.
func applyFDR(results []Result) {
	idx := make([]int, 0, len(results))
	pvals := make([]float64, 0, len(results))
	for i, r := range results {
		if !math.IsNaN(r.P) {
			idx = append(idx, i)
			pvals = append(pvals, r.P)
		}
	}

	adjusted := BenjaminiHochberg(pvals)
	for j, i := range idx {
		results[i].FDR = adjusted[j]
	}
}

// BenjaminiHochberg returns FDR-adjusted p-values in the input order.
func BenjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return pvals[order[i]] < pvals[order[j]]
	})

	adjusted := make([]float64, n)

	// Walk from the largest p-value down, enforcing monotonicity.
	minSoFar := 1.0
	for rank := n; rank >= 1; rank-- {
		i := order[rank-1]
		adj := pvals[i] * float64(n) / float64(rank)
		if adj < minSoFar {
			minSoFar = adj
		}
		adjusted[i] = minSoFar
	}

	return adjusted
}
