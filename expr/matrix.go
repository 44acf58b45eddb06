// Package expr holds the in-memory data model shared by the marker-panel
// pipelines: an ordered marker-by-sample expression matrix, the marker panel
// itself, and per-sample annotations. Missing measurements are represented as
// NaN, never as zero.
package expr

import (
	"fmt"
	"math"
)

// Matrix is a marker-by-sample expression matrix. Marker order is insertion
// order and every row has exactly one value per sample. Cells with no
// measurement hold NaN.
type Matrix struct {
	Samples []string
	Markers []string

	rows map[string][]float64
}

// NewMatrix creates an empty matrix over the given ordered sample IDs.
func NewMatrix(samples []string) *Matrix {
	s := make([]string, len(samples))
	copy(s, samples)

	return &Matrix{
		Samples: s,
		rows:    make(map[string][]float64),
	}
}

// AddRow appends a marker row. The number of values must match the number of
// samples, and the marker must not already be present.
func (m *Matrix) AddRow(marker string, values []float64) error {
	if len(values) != len(m.Samples) {
		return fmt.Errorf("expr: row %s has %d values but the matrix has %d samples", marker, len(values), len(m.Samples))
	}
	if _, exists := m.rows[marker]; exists {
		return fmt.Errorf("expr: duplicate marker row %s", marker)
	}

	row := make([]float64, len(values))
	copy(row, values)

	m.Markers = append(m.Markers, marker)
	m.rows[marker] = row

	return nil
}

// Row returns the values for a marker, or nil if the marker is absent. The
// returned slice is the matrix's own storage and must not be modified; use
// Clone when a mutable copy is needed.
func (m *Matrix) Row(marker string) []float64 {
	return m.rows[marker]
}

// Has reports whether the matrix contains a row for the marker.
func (m *Matrix) Has(marker string) bool {
	_, ok := m.rows[marker]
	return ok
}

// NRows returns the number of marker rows.
func (m *Matrix) NRows() int {
	return len(m.Markers)
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.Samples)
	for _, marker := range m.Markers {
		// AddRow copies the values and cannot fail on a well-formed matrix
		_ = out.AddRow(marker, m.rows[marker])
	}

	return out
}

// Missing is the cell value that denotes "no measurement".
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether a cell value denotes "no measurement".
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Observed returns the non-missing values of a row, in sample order.
func Observed(row []float64) []float64 {
	out := make([]float64, 0, len(row))
	for _, v := range row {
		if !IsMissing(v) {
			out = append(out, v)
		}
	}

	return out
}

// MissingFraction returns the fraction of entries in a row that are missing.
// An empty row counts as fully missing.
func MissingFraction(row []float64) float64 {
	if len(row) == 0 {
		return 1
	}

	missing := 0
	for _, v := range row {
		if IsMissing(v) {
			missing++
		}
	}

	return float64(missing) / float64(len(row))
}
