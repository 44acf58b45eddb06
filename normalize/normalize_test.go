package normalize

import (
	"math"
	"testing"

	"github.com/astroglial/panelharm/expr"
	"gonum.org/v1/gonum/stat"
)

func mustMatrix(t *testing.T, samples []string, rows map[string][]float64, order []string) *expr.Matrix {
	t.Helper()

	m := expr.NewMatrix(samples)
	for _, marker := range order {
		if err := m.AddRow(marker, rows[marker]); err != nil {
			t.Fatal(err)
		}
	}

	return m
}

func TestZScoreRowMeanAndSD(t *testing.T) {
	m := mustMatrix(t,
		[]string{"s1", "s2", "s3", "s4", "s5"},
		map[string][]float64{"GFAP": {3.1, 8.4, 1.2, 9.9, 5.5}},
		[]string{"GFAP"},
	)

	z, warnings := ZScore(m)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	row := z.Row("GFAP")
	mean, sd := stat.MeanStdDev(row, nil)
	if math.Abs(mean) > 1e-12 {
		t.Errorf("z mean: got %v, expected ~0", mean)
	}
	if math.Abs(sd-1) > 1e-12 {
		t.Errorf("z sd: got %v, expected ~1", sd)
	}
}

func TestZScoreConstantRowIsAllMissing(t *testing.T) {
	m := mustMatrix(t,
		[]string{"s1", "s2", "s3"},
		map[string][]float64{"S100B": {2, 2, 2}},
		[]string{"S100B"},
	)

	z, warnings := ZScore(m)

	for i, v := range z.Row("S100B") {
		if !expr.IsMissing(v) {
			t.Errorf("entry %d of a constant row: got %v, expected missing", i, v)
		}
	}

	if len(warnings) != 1 || warnings[0].Kind != WarnConstantRow {
		t.Errorf("warnings: got %v, expected one constant-row warning", warnings)
	}
}

func TestZScorePreservesMissingPositions(t *testing.T) {
	m := mustMatrix(t,
		[]string{"s1", "s2", "s3", "s4"},
		map[string][]float64{"VIM": {1, expr.Missing(), 3, 5}},
		[]string{"VIM"},
	)

	z, _ := ZScore(m)
	row := z.Row("VIM")

	if !expr.IsMissing(row[1]) {
		t.Error("a missing input cell must stay missing, never become zero")
	}
	if expr.IsMissing(row[0]) || expr.IsMissing(row[2]) || expr.IsMissing(row[3]) {
		t.Error("observed cells must standardize to finite values")
	}
}

func TestDedupKeepsGreatestIQR(t *testing.T) {
	wide := []float64{0, 2, 4, 6, 8, 10, 12, 14}
	narrow := []float64{5, 5.2, 5.4, 5.6, 5.8, 6, 6.2, 6.4}
	samples := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"}
	panel := expr.NewPanel([]string{"GFAP"})
	key := map[string]string{"probeA": "GFAP", "probeB": "GFAP"}

	// The wide row must win regardless of which probe comes first.
	for _, order := range [][]string{{"probeA", "probeB"}, {"probeB", "probeA"}} {
		rows := map[string][]float64{"probeA": wide, "probeB": narrow}
		if order[0] == "probeB" {
			rows = map[string][]float64{"probeA": narrow, "probeB": wide}
		}

		m := mustMatrix(t, samples, rows, order)

		filtered, _, err := Filter(m, panel, Options{Key: key, MissingnessThreshold: 0})
		if err != nil {
			t.Fatal(err)
		}

		got := filtered.Row("GFAP")
		if got[1] != 2 {
			t.Errorf("order %v: retained the narrow row: %v", order, got)
		}
	}
}

func TestDedupTieKeepsEarliestRow(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4"}
	panel := expr.NewPanel([]string{"GFAP"})
	key := map[string]string{"probeA": "GFAP", "probeB": "GFAP"}

	// Same spread (same IQR), different centers, so the winner is
	// identifiable by its values.
	first := []float64{0, 1, 2, 3}
	second := []float64{10, 11, 12, 13}

	m := mustMatrix(t, samples, map[string][]float64{"probeA": first, "probeB": second}, []string{"probeA", "probeB"})

	filtered, _, err := Filter(m, panel, Options{Key: key})
	if err != nil {
		t.Fatal(err)
	}

	if got := filtered.Row("GFAP"); got[0] != 0 {
		t.Errorf("tie must keep the earliest row, got %v", got)
	}
}

func TestMissingnessBoundary(t *testing.T) {
	samples := make([]string, 12)
	for i := range samples {
		samples[i] = string(rune('a' + i))
	}

	// Rows with 6, 5, and 7 of 12 values missing: exactly at, just under,
	// and just over the 0.5 threshold.
	rowWithMissing := func(nMissing int) []float64 {
		row := make([]float64, 12)
		for i := range row {
			if i < nMissing {
				row[i] = expr.Missing()
				continue
			}
			row[i] = float64(i)
		}
		return row
	}

	m := mustMatrix(t, samples, map[string][]float64{
		"GFAP":  rowWithMissing(6),
		"S100B": rowWithMissing(5),
		"VIM":   rowWithMissing(7),
	}, []string{"GFAP", "S100B", "VIM"})

	panel := expr.NewPanel([]string{"GFAP", "S100B", "VIM"})

	filtered, warnings, err := Filter(m, panel, Options{MissingnessThreshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	if !filtered.Has("GFAP") {
		t.Error("a row missing exactly the threshold fraction must be retained")
	}
	if !filtered.Has("S100B") {
		t.Error("a row just under the threshold must be retained")
	}
	if filtered.Has("VIM") {
		t.Error("a row over the threshold must be dropped")
	}

	if len(warnings) != 1 || warnings[0].Kind != WarnMissingness || warnings[0].Marker != "VIM" {
		t.Errorf("warnings: got %v, expected one missingness warning for VIM", warnings)
	}
}

func TestFilterLeavesInputUntouched(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4"}
	original := []float64{4, 3, 2, 1}

	m := mustMatrix(t, samples, map[string][]float64{"GFAP": original}, []string{"GFAP"})

	if _, _, err := Filter(m, expr.NewPanel([]string{"GFAP"}), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, warnings := ZScore(m); len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	for i, v := range m.Row("GFAP") {
		if v != original[i] {
			t.Fatalf("input matrix was mutated at %d: %v", i, m.Row("GFAP"))
		}
	}
}

func TestAbsentPanelMarkersAreSilentlyExcluded(t *testing.T) {
	m := mustMatrix(t,
		[]string{"s1", "s2", "s3", "s4"},
		map[string][]float64{"GFAP": {1, 2, 3, 4}},
		[]string{"GFAP"},
	)

	panel := expr.NewPanel([]string{"GFAP", "AQP4", "ALDH1L1"})

	filtered, warnings, err := Filter(m, panel, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if filtered.NRows() != 1 {
		t.Errorf("effective panel: got %d rows, expected 1", filtered.NRows())
	}
	if len(warnings) != 0 {
		t.Errorf("a lookup miss is not a warning: %v", warnings)
	}
}
