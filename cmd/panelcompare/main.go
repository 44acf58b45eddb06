// panelcompare harmonizes heterogeneous omics datasets against a fixed
// marker panel: it standardizes each dataset, ranks markers by their
// extreme-vs-reference contrast, runs moderated two-group statistics where
// the design allows, and tests the panel for enrichment in externally
// derived gene/protein lists.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aybabtme/uniplot/histogram"

	"github.com/astroglial/panelharm/enrich"
	"github.com/astroglial/panelharm/expr"
	"github.com/astroglial/panelharm/report"
)

func main() {
	start := time.Now()
	log.Println("panelcompare start")
	defer func() {
		log.Printf("panelcompare end. Took %.2f seconds\n", time.Since(start).Seconds())
	}()

	var configPath string
	var showHist bool

	flag.StringVar(&configPath, "config", "", "JSON run configuration (panel, datasets, enrichment targets).")
	flag.BoolVar(&showHist, "hist", false, "(Optional) Print a terminal histogram of the raw two-group p-values.")
	flag.Parse()

	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	config, err := ParseJSONConfigFromPath(configPath)
	if err != nil {
		log.Fatalln(err)
	}

	panel, err := expr.LoadPanelFile(config.PanelPath)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("Loaded a panel of", panel.Len(), "markers")

	outDir := config.OutputDir
	if outDir == "" {
		outDir = "."
	}

	// The dataset pipelines share no state, so they run concurrently; a
	// failure in one must not stop the others.
	concurrency := runtime.NumCPU()
	if concurrency > len(config.Datasets) {
		concurrency = len(config.Datasets)
	}
	sem := make(chan bool, concurrency)
	outcomes := make(chan datasetOutcome, len(config.Datasets))

	for _, ds := range config.Datasets {
		sem <- true
		go func(ds DatasetConfig) {
			defer func() { <-sem }()
			outcomes <- runDataset(ds, panel, outDir)
		}(ds)
	}

	failures := 0
	var pvals []float64
	for range config.Datasets {
		outcome := <-outcomes
		if outcome.Err != nil {
			failures++
			log.Printf("dataset %s failed: %v", outcome.Name, outcome.Err)
			continue
		}
		log.Printf("dataset %s complete", outcome.Name)
		pvals = append(pvals, outcome.PVals...)
	}

	if len(config.Targets) > 0 {
		if err := runEnrichment(config, panel, outDir); err != nil {
			failures++
			log.Printf("enrichment failed: %v", err)
		}
	}

	if showHist && len(pvals) > 0 {
		finite := make([]float64, 0, len(pvals))
		for _, p := range pvals {
			if !math.IsNaN(p) {
				finite = append(finite, p)
			}
		}

		fmt.Println("Raw two-group p-values:")
		hist := histogram.Hist(10, finite)
		if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(40)); err != nil {
			log.Println(err)
		}
	}

	if failures > 0 {
		log.Fatalln(failures, "pipeline step(s) failed")
	}
}

// runEnrichment tests the panel against every configured target list and
// writes one shared table.
func runEnrichment(config JSONConfig, panel expr.Panel, outDir string) error {
	targets := make([]enrich.Target, 0, len(config.Targets))
	for _, t := range config.Targets {
		symbols, err := expr.LoadTargetList(t.File)
		if err != nil {
			return err
		}
		targets = append(targets, enrich.Target{Label: t.Label, Symbols: symbols})
	}

	results, err := enrich.TestAll(panel.Symbols(), targets, config.Population)
	if err != nil {
		return err
	}

	for _, r := range results {
		log.Printf("enrichment %s: overlap %d of %d, p = %.3g", r.Label, r.Overlap, r.QuerySize, r.P)
	}

	return writeTable(filepath.Join(outDir, "enrichment.tsv"), func(f *os.File) error {
		return report.WriteEnrichment(f, results)
	})
}
