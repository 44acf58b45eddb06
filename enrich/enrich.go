// Package enrich tests whether a marker panel overlaps independently derived
// gene or protein lists more than chance allows, using the one-sided
// upper-tail hypergeometric probability against a fixed population size. A
// Fisher exact two-sided p-value over the same contingency table is reported
// alongside as a companion statistic.
package enrich

import (
	"fmt"
	"math"

	fet "github.com/glycerine/golang-fisher-exact"
	"gonum.org/v1/gonum/stat/combin"
)

// Result records one enrichment test. P is the probability of drawing at
// least Overlap members of the target in QuerySize draws without replacement
// from a population of Population items containing TargetSize members.
type Result struct {
	Label        string
	QuerySize    int
	TargetSize   int
	Population   int
	Overlap      int
	OverlapRatio float64
	P            float64

	// FisherTwoSidedP is the two-sided Fisher exact p for the same table,
	// NaN when the table is degenerate.
	FisherTwoSidedP float64
}

// Target is a named gene/protein list.
type Target struct {
	Label   string
	Symbols []string
}

// Test computes the hypergeometric enrichment of query against target.
// Repeated symbols within either list count once. Degenerate inputs (empty
// query, empty target, no overlap) are valid and yield P == 1.
func Test(query, target []string, population int) (Result, error) {
	querySet := toSet(query)
	targetSet := toSet(target)

	overlap := 0
	for symbol := range querySet {
		if _, ok := targetSet[symbol]; ok {
			overlap++
		}
	}

	s, m := len(querySet), len(targetSet)

	union := s + m - overlap
	if population < union {
		return Result{}, fmt.Errorf("enrich: population size %d is smaller than the %d distinct symbols observed", population, union)
	}

	out := Result{
		QuerySize:  s,
		TargetSize: m,
		Population: population,
		Overlap:    overlap,
		P:          upperTail(overlap, s, m, population),
	}
	if s > 0 {
		out.OverlapRatio = float64(overlap) / float64(s)
	}

	out.FisherTwoSidedP = fisherTwoSided(overlap, s, m, population)

	return out, nil
}

// TestAll runs Test once per named target list, preserving input order and
// labels.
func TestAll(query []string, targets []Target, population int) ([]Result, error) {
	out := make([]Result, 0, len(targets))
	for _, target := range targets {
		res, err := Test(query, target.Symbols, population)
		if err != nil {
			return nil, fmt.Errorf("enrich: target %q: %w", target.Label, err)
		}
		res.Label = target.Label
		out = append(out, res)
	}

	return out, nil
}

// upperTail sums the hypergeometric point probabilities for k = overlap
// through min(s, m), in log space to survive large populations. By
// construction the k = 0 tail is exactly 1.
func upperTail(overlap, s, m, population int) float64 {
	if overlap <= 0 || s == 0 || m == 0 {
		return 1
	}

	max := s
	if m < max {
		max = m
	}

	logDenom := combin.LogGeneralizedBinomial(float64(population), float64(s))

	var p float64
	for k := overlap; k <= max; k++ {
		if s-k > population-m {
			// Impossible configuration: not enough non-target items to fill
			// the remaining draws.
			continue
		}

		logP := combin.LogGeneralizedBinomial(float64(m), float64(k)) +
			combin.LogGeneralizedBinomial(float64(population-m), float64(s-k)) -
			logDenom

		p += math.Exp(logP)
	}

	if p > 1 {
		p = 1
	}

	return p
}

// fisherTwoSided lays out the 2x2 table the same way the hypergeometric tail
// does: in-query/in-target, in-query/not-target, not-query/in-target,
// neither.
func fisherTwoSided(overlap, s, m, population int) float64 {
	n11 := overlap
	n12 := s - overlap
	n21 := m - overlap
	n22 := population - s - m + overlap

	if n11+n12 == 0 || n21+n22 == 0 || n11+n21 == 0 || n12+n22 == 0 {
		return math.NaN()
	}

	_, _, _, twop := fet.FisherExactTest(n11, n12, n21, n22)

	return twop
}

func toSet(symbols []string) map[string]struct{} {
	out := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		out[s] = struct{}{}
	}

	return out
}
