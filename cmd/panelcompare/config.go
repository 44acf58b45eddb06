package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/carbocation/pfx"
)

// Modes for a dataset's statistical path. Two-group designs get the moderated
// differential engine; ordinal designs with more than two bins get ranking
// only, with no significance claim.
const (
	ModeTwoGroup   = "twogroup"
	ModeMultiGroup = "multigroup"
)

// JSONConfig describes one comparison run: the shared marker panel, the
// datasets to harmonize against it, and the enrichment targets.
type JSONConfig struct {
	ConfigPath string `json:"-"`

	// PanelPath is the marker-definition file, one symbol per line.
	PanelPath string `json:"panel"`

	// Population is the size of the reference universe for enrichment.
	Population int `json:"population"`

	// OutputDir receives one subdirectory of TSV tables per dataset.
	OutputDir string `json:"output_dir"`

	Datasets []DatasetConfig `json:"datasets"`
	Targets  []TargetConfig  `json:"targets"`
}

// DatasetConfig holds the per-dataset knobs.
type DatasetConfig struct {
	Name    string `json:"name"`
	Matrix  string `json:"matrix"`
	Samples string `json:"samples"`

	// Key optionally maps matrix row IDs (e.g. probe IDs) to marker symbols.
	Key string `json:"key,omitempty"`

	// MissingnessThreshold drops markers missing strictly more than this
	// fraction of samples (0.5 bulk proteomics, 0.33 fluid proteomics, 0 for
	// datasets with no missing data).
	MissingnessThreshold float64 `json:"missingness_threshold"`

	Mode        string   `json:"mode"`
	Reference   string   `json:"reference"`
	Extreme     string   `json:"extreme"`
	GroupOrder  []string `json:"group_order"`
	ByCovariate bool     `json:"by_covariate"`
}

// TargetConfig names one enrichment target list.
type TargetConfig struct {
	Label string `json:"label"`
	File  string `json:"file"`
}

// ParseJSONConfigFromPath reads and validates a run configuration.
func ParseJSONConfigFromPath(path string) (JSONConfig, error) {
	out := JSONConfig{ConfigPath: path}

	f, err := os.Open(path)
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return out, pfx.Err(err)
	}

	if err := out.validate(); err != nil {
		return out, err
	}

	return out, nil
}

func (c JSONConfig) validate() error {
	if c.PanelPath == "" {
		return fmt.Errorf("config: panel is required")
	}
	if len(c.Datasets) == 0 {
		return fmt.Errorf("config: at least one dataset is required")
	}
	if len(c.Targets) > 0 && c.Population <= 0 {
		return fmt.Errorf("config: a positive population is required when targets are set")
	}

	for _, ds := range c.Datasets {
		if ds.Name == "" || ds.Matrix == "" || ds.Samples == "" {
			return fmt.Errorf("config: dataset %q needs name, matrix, and samples", ds.Name)
		}
		if ds.Mode != ModeTwoGroup && ds.Mode != ModeMultiGroup {
			return fmt.Errorf("config: dataset %q has unknown mode %q", ds.Name, ds.Mode)
		}
		if ds.Reference == "" || ds.Extreme == "" {
			return fmt.Errorf("config: dataset %q needs reference and extreme groups", ds.Name)
		}
		if ds.MissingnessThreshold < 0 || ds.MissingnessThreshold > 1 {
			return fmt.Errorf("config: dataset %q missingness_threshold %v is outside [0, 1]", ds.Name, ds.MissingnessThreshold)
		}
	}

	return nil
}
