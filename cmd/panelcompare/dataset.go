package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"

	"github.com/astroglial/panelharm/diffexp"
	"github.com/astroglial/panelharm/expr"
	"github.com/astroglial/panelharm/normalize"
	"github.com/astroglial/panelharm/ranking"
	"github.com/astroglial/panelharm/report"
)

// datasetOutcome carries one dataset's results back to the coordinator.
type datasetOutcome struct {
	Name  string
	PVals []float64
	Err   error
}

// runDataset executes the full pipeline for one dataset: load, normalize,
// rank, and (two-group mode) moderated differential statistics, writing TSV
// tables under outDir/<name>/.
func runDataset(ds DatasetConfig, panel expr.Panel, outDir string) datasetOutcome {
	out := datasetOutcome{Name: ds.Name}

	matrix, err := expr.LoadMatrixCSV(ds.Matrix)
	if err != nil {
		out.Err = err
		return out
	}

	samples, err := expr.LoadSamplesCSV(ds.Samples)
	if err != nil {
		out.Err = err
		return out
	}

	opts := normalize.Options{MissingnessThreshold: ds.MissingnessThreshold}
	if ds.Key != "" {
		if opts.Key, err = expr.LoadKeyMap(ds.Key); err != nil {
			out.Err = err
			return out
		}
	}

	filtered, warnings, err := normalize.Filter(matrix, panel, opts)
	if err != nil {
		out.Err = err
		return out
	}

	z, zWarnings := normalize.ZScore(filtered)
	for _, w := range append(warnings, zWarnings...) {
		log.Printf("%s: %s", ds.Name, w)
	}
	log.Printf("%s: %d of %d panel markers present after filtering", ds.Name, z.NRows(), panel.Len())

	dir := filepath.Join(outDir, ds.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		out.Err = pfx.Err(err)
		return out
	}

	order, err := ranking.Rank(z, samples, ranking.Config{
		Reference:   ds.Reference,
		Extreme:     ds.Extreme,
		GroupOrder:  ds.GroupOrder,
		ByCovariate: ds.ByCovariate,
	})
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", ds.Name, err)
		return out
	}

	if err := writeTable(filepath.Join(dir, "ranked.tsv"), func(f *os.File) error {
		return report.WriteRanked(f, z, order)
	}); err != nil {
		out.Err = err
		return out
	}

	if ds.Mode != ModeTwoGroup {
		return out
	}

	// The moderated statistics run on the filtered intensities, not the
	// z-scores: effect sizes stay on the dataset's own (log) scale.
	results, err := diffexp.CompareTwoGroups(filtered, samples.Groups(filtered.Samples), ds.Reference)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", ds.Name, err)
		return out
	}

	for _, r := range results {
		out.PVals = append(out.PVals, r.P)
	}

	if err := writeTable(filepath.Join(dir, "differential.tsv"), func(f *os.File) error {
		return report.WriteDifferential(f, results)
	}); err != nil {
		out.Err = err
		return out
	}

	return out
}

func writeTable(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	return write(f)
}
