// Package ranking buckets standardized expression values into sample groups
// and produces explicit row and column permutations for presentation. The
// ranking key for a marker is the difference between its extreme-group and
// reference-group mean z-scores; intermediate groups contribute columns but
// never the key, so ordinal designs with more than two bins rank exactly like
// a two-group contrast between the ends.
package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/astroglial/panelharm/diffexp"
	"github.com/astroglial/panelharm/expr"
)

// Config selects the ranking contrast and the presentation axis.
type Config struct {
	// Reference and Extreme name the two groups whose mean difference is the
	// marker sort key.
	Reference string
	Extreme   string

	// GroupOrder is the left-to-right presentation order of the groups. It
	// must cover every group label observed among the matrix's samples.
	GroupOrder []string

	// ByCovariate orders samples within each group by their annotated
	// covariate (e.g. disease stage). When false, samples order by their mean
	// z-score across the retained markers.
	ByCovariate bool
}

// Order is an explicit permutation of markers and samples plus the sort keys
// that produced it. Callers apply it; nothing reorders the matrix in place.
type Order struct {
	Markers    []string
	MarkerKeys []float64
	Samples    []string
	SampleKeys []float64

	// Groups[i] is the group label of Samples[i], for rendering grouped gaps
	// and a legend.
	Groups []string
}

// Rank computes the marker and sample permutations for a standardized matrix.
// Markers sort descending by extreme-minus-reference mean z-score, stable in
// the matrix's row order. A group whose values are entirely missing for a
// marker yields a -Inf key for that marker, sinking it to the bottom rather
// than aborting.
func Rank(z *expr.Matrix, samples expr.Samples, cfg Config) (Order, error) {
	groupIdx, err := splitGroups(z.Samples, samples, cfg)
	if err != nil {
		return Order{}, err
	}

	keys := markerKeys(z, groupIdx[cfg.Reference], groupIdx[cfg.Extreme])

	markers := append([]string(nil), z.Markers...)
	sort.SliceStable(markers, func(i, j int) bool {
		return keys[markers[i]] > keys[markers[j]]
	})

	out := Order{
		Markers:    markers,
		MarkerKeys: make([]float64, len(markers)),
	}
	for i, marker := range markers {
		out.MarkerKeys[i] = keys[marker]
	}

	out.Samples, out.SampleKeys, out.Groups = orderColumns(z, samples, cfg, groupIdx)

	return out, nil
}

// GroupMeans returns, per marker, the mean of the non-missing standardized
// values within each group. Groups with no observed values for a marker are
// absent from that marker's map.
func GroupMeans(z *expr.Matrix, groups map[string]string) map[string]map[string]float64 {
	groupIdx := make(map[string][]int)
	for i, id := range z.Samples {
		label := groups[id]
		if label == "" {
			continue
		}
		groupIdx[label] = append(groupIdx[label], i)
	}

	out := make(map[string]map[string]float64, z.NRows())
	for _, marker := range z.Markers {
		row := z.Row(marker)
		means := make(map[string]float64, len(groupIdx))
		for label, idx := range groupIdx {
			if mean, ok := observedMean(row, idx); ok {
				means[label] = mean
			}
		}
		out[marker] = means
	}

	return out
}

func splitGroups(sampleIDs []string, samples expr.Samples, cfg Config) (map[string][]int, error) {
	if cfg.Reference == "" || cfg.Extreme == "" {
		return nil, diffexp.ConfigurationError("ranking: both a reference and an extreme group are required")
	}

	groupIdx := make(map[string][]int)
	for i, id := range sampleIDs {
		label := samples[id].Group
		if label == "" {
			continue
		}
		groupIdx[label] = append(groupIdx[label], i)
	}

	if len(groupIdx) < 2 {
		return nil, diffexp.ConfigurationError(fmt.Sprintf("ranking: need at least 2 group labels, got %d", len(groupIdx)))
	}
	if _, ok := groupIdx[cfg.Reference]; !ok {
		return nil, diffexp.ConfigurationError(fmt.Sprintf("ranking: reference group %q has no samples", cfg.Reference))
	}
	if _, ok := groupIdx[cfg.Extreme]; !ok {
		return nil, diffexp.ConfigurationError(fmt.Sprintf("ranking: extreme group %q has no samples", cfg.Extreme))
	}

	ordered := make(map[string]struct{}, len(cfg.GroupOrder))
	for _, label := range cfg.GroupOrder {
		ordered[label] = struct{}{}
	}
	for label := range groupIdx {
		if _, ok := ordered[label]; !ok {
			return nil, diffexp.ConfigurationError(fmt.Sprintf("ranking: group %q is missing from the group order", label))
		}
	}

	return groupIdx, nil
}

// markerKeys computes the extreme-minus-reference mean z-score per marker.
// Entirely-missing group means produce the -Inf sentinel.
func markerKeys(z *expr.Matrix, refIdx, extremeIdx []int) map[string]float64 {
	keys := make(map[string]float64, z.NRows())

	for _, marker := range z.Markers {
		row := z.Row(marker)

		refMean, refOK := observedMean(row, refIdx)
		extMean, extOK := observedMean(row, extremeIdx)

		if !refOK || !extOK {
			keys[marker] = math.Inf(-1)
			continue
		}

		keys[marker] = extMean - refMean
	}

	return keys
}

// orderColumns arranges samples group by group in the configured group order,
// sorting within each group by covariate or by mean z-score, stable in the
// matrix's column order.
func orderColumns(z *expr.Matrix, samples expr.Samples, cfg Config, groupIdx map[string][]int) (ids []string, keys []float64, groups []string) {
	for _, label := range cfg.GroupOrder {
		idx := groupIdx[label]

		within := append([]int(nil), idx...)
		sampleKey := make(map[int]float64, len(within))
		for _, i := range within {
			if cfg.ByCovariate {
				sampleKey[i] = samples.Covariate(z.Samples[i])
			} else {
				sampleKey[i] = sampleMean(z, i)
			}
		}

		sort.SliceStable(within, func(a, b int) bool {
			ka, kb := sampleKey[within[a]], sampleKey[within[b]]
			// NaN keys (unannotated covariate, fully missing column) keep
			// their original position relative to each other at the end.
			if math.IsNaN(ka) || math.IsNaN(kb) {
				return !math.IsNaN(ka) && math.IsNaN(kb)
			}
			return ka < kb
		})

		for _, i := range within {
			ids = append(ids, z.Samples[i])
			keys = append(keys, sampleKey[i])
			groups = append(groups, label)
		}
	}

	return ids, keys, groups
}

// sampleMean is the mean of the observed z-scores in one matrix column.
func sampleMean(z *expr.Matrix, col int) float64 {
	var sum float64
	var n int
	for _, marker := range z.Markers {
		if v := z.Row(marker)[col]; !expr.IsMissing(v) {
			sum += v
			n++
		}
	}

	if n == 0 {
		return math.NaN()
	}

	return sum / float64(n)
}

func observedMean(row []float64, idx []int) (float64, bool) {
	var sum float64
	var n int
	for _, i := range idx {
		if v := row[i]; !expr.IsMissing(v) {
			sum += v
			n++
		}
	}

	if n == 0 {
		return 0, false
	}

	return sum / float64(n), true
}
