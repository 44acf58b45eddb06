// Package normalize subsets an expression matrix to a marker panel,
// deduplicates multiply-mapped rows, filters rows with excessive missingness,
// and standardizes rows to mean 0 and unit variance. Filtering and
// standardization are separate stages: differential statistics run on the
// filtered intensities, while ranking and visualization consume the
// standardized form. No stage modifies its input.
package normalize

import (
	"fmt"
	"math"

	"github.com/astroglial/panelharm/expr"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Options are the dataset-specific knobs.
type Options struct {
	// Key maps matrix row identifiers (e.g. array probe IDs) to canonical
	// marker symbols. Rows without an entry keep their own identifier. A nil
	// Key is the identity mapping.
	Key map[string]string

	// MissingnessThreshold drops any row whose missing fraction is strictly
	// greater than this value. A row missing exactly the threshold fraction
	// is retained. Zero drops every row with any missing value.
	MissingnessThreshold float64
}

// WarningKind labels the non-fatal data-quality findings.
type WarningKind int

const (
	// WarnMissingness marks a row dropped for exceeding the missingness
	// threshold.
	WarnMissingness WarningKind = iota

	// WarnConstantRow marks a row whose observed values are constant, so its
	// z-scores are all missing.
	WarnConstantRow
)

// Warning reports one non-fatal data-quality finding. Warnings are returned
// to the caller for logging; they never abort the transform.
type Warning struct {
	Kind   WarningKind
	Marker string
	Detail string
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnMissingness:
		return fmt.Sprintf("marker %s dropped: %s", w.Marker, w.Detail)
	case WarnConstantRow:
		return fmt.Sprintf("marker %s has constant values: %s", w.Marker, w.Detail)
	}

	return fmt.Sprintf("marker %s: %s", w.Marker, w.Detail)
}

// Filter subsets m to the panel, deduplicates multiply-mapped rows by
// greatest interquartile range, and drops rows exceeding the missingness
// threshold. Panel markers absent from the matrix are silently excluded; the
// effective panel is observable from the output's row set. Row order follows
// panel order so every dataset presents the panel the same way.
func Filter(m *expr.Matrix, panel expr.Panel, opts Options) (*expr.Matrix, []Warning, error) {
	if opts.MissingnessThreshold < 0 || opts.MissingnessThreshold > 1 {
		return nil, nil, fmt.Errorf("normalize: missingness threshold %v is outside [0, 1]", opts.MissingnessThreshold)
	}

	chosen := dedupe(m, panel, opts.Key)

	out := expr.NewMatrix(m.Samples)
	var warnings []Warning

	for _, symbol := range panel.Symbols() {
		rowID, ok := chosen[symbol]
		if !ok {
			continue
		}

		row := m.Row(rowID)

		if frac := expr.MissingFraction(row); frac > opts.MissingnessThreshold {
			warnings = append(warnings, Warning{
				Kind:   WarnMissingness,
				Marker: symbol,
				Detail: fmt.Sprintf("%.2f of values missing exceeds threshold %.2f", frac, opts.MissingnessThreshold),
			})
			continue
		}

		if err := out.AddRow(symbol, row); err != nil {
			return nil, nil, err
		}
	}

	return out, warnings, nil
}

// ZScore standardizes each row of m over its non-missing entries, returning a
// fresh matrix. A constant row (sd == 0) z-scores to all-missing and stays in
// the output with a warning rather than failing.
func ZScore(m *expr.Matrix) (*expr.Matrix, []Warning) {
	out := expr.NewMatrix(m.Samples)
	var warnings []Warning

	for _, marker := range m.Markers {
		z, constant := zscoreRow(m.Row(marker))
		if constant {
			warnings = append(warnings, Warning{
				Kind:   WarnConstantRow,
				Marker: marker,
				Detail: "zero variance, z-scores set to missing",
			})
		}

		// AddRow copies z and cannot collide on a filtered matrix.
		_ = out.AddRow(marker, z)
	}

	return out, warnings
}

// Normalize is Filter followed by ZScore, with the warnings of both stages.
func Normalize(m *expr.Matrix, panel expr.Panel, opts Options) (*expr.Matrix, []Warning, error) {
	filtered, warnings, err := Filter(m, panel, opts)
	if err != nil {
		return nil, nil, err
	}

	z, zWarnings := ZScore(filtered)

	return z, append(warnings, zWarnings...), nil
}

// dedupe maps each canonical panel symbol to the single matrix row that
// represents it: the row with the greatest interquartile range over its
// observed values, earliest row winning ties.
func dedupe(m *expr.Matrix, panel expr.Panel, key map[string]string) map[string]string {
	chosen := make(map[string]string)
	bestIQR := make(map[string]float64)

	for _, rowID := range m.Markers {
		symbol := rowID
		if mapped, ok := key[rowID]; ok {
			symbol = mapped
		}

		if !panel.Contains(symbol) {
			continue
		}

		iqr := rowIQR(m.Row(rowID))

		if _, taken := chosen[symbol]; taken && iqr <= bestIQR[symbol] {
			continue
		}

		chosen[symbol] = rowID
		bestIQR[symbol] = iqr
	}

	return chosen
}

// rowIQR computes the interquartile range over the observed values of a row.
// Rows too sparse to define quartiles score zero, so any scoreable duplicate
// beats them.
func rowIQR(row []float64) float64 {
	observed := expr.Observed(row)

	iqr, err := stats.InterQuartileRange(observed)
	if err != nil {
		return 0
	}

	return iqr
}

// zscoreRow standardizes a row over its non-missing entries. Missing entries
// stay missing. When the observed values are constant (sd == 0) every entry
// of the result is missing and constant is true.
func zscoreRow(row []float64) (z []float64, constant bool) {
	observed := expr.Observed(row)

	mean, sd := stat.MeanStdDev(observed, nil)
	if len(observed) < 2 || sd == 0 || math.IsNaN(sd) {
		z = make([]float64, len(row))
		for i := range z {
			z[i] = expr.Missing()
		}

		return z, true
	}

	z = make([]float64, len(row))
	for i, v := range row {
		if expr.IsMissing(v) {
			z[i] = expr.Missing()
			continue
		}
		z[i] = (v - mean) / sd
	}

	return z, false
}
