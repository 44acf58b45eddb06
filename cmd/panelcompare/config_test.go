package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestParseJSONConfigFromPath(t *testing.T) {
	path := writeConfig(t, `{
		"panel": "panel.txt",
		"population": 20000,
		"output_dir": "out",
		"datasets": [
			{
				"name": "bulk_proteomics",
				"matrix": "prot.csv",
				"samples": "prot_samples.csv",
				"missingness_threshold": 0.5,
				"mode": "twogroup",
				"reference": "ctrl",
				"extreme": "ad",
				"group_order": ["ctrl", "ad"]
			},
			{
				"name": "snrna",
				"matrix": "sn.csv",
				"samples": "sn_samples.csv",
				"mode": "multigroup",
				"reference": "ctrl",
				"extreme": "braak6",
				"group_order": ["ctrl", "braak34", "braak6"],
				"by_covariate": true
			}
		],
		"targets": [{"label": "mass_spec_de", "file": "ms.txt"}]
	}`)

	config, err := ParseJSONConfigFromPath(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(config.Datasets) != 2 {
		t.Fatalf("datasets: got %d", len(config.Datasets))
	}
	if config.Datasets[0].MissingnessThreshold != 0.5 {
		t.Errorf("threshold: got %v", config.Datasets[0].MissingnessThreshold)
	}
	if config.Datasets[1].Mode != ModeMultiGroup || !config.Datasets[1].ByCovariate {
		t.Errorf("snrna dataset: got %+v", config.Datasets[1])
	}
	if config.Population != 20000 || config.Targets[0].Label != "mass_spec_de" {
		t.Errorf("enrichment config: got %+v", config)
	}
}

func TestConfigValidation(t *testing.T) {
	for name, content := range map[string]string{
		"missing panel":   `{"datasets":[{"name":"a","matrix":"m","samples":"s","mode":"twogroup","reference":"r","extreme":"e"}]}`,
		"no datasets":     `{"panel":"p"}`,
		"bad mode":        `{"panel":"p","datasets":[{"name":"a","matrix":"m","samples":"s","mode":"anova","reference":"r","extreme":"e"}]}`,
		"bad threshold":   `{"panel":"p","datasets":[{"name":"a","matrix":"m","samples":"s","mode":"twogroup","reference":"r","extreme":"e","missingness_threshold":1.5}]}`,
		"targets, no pop": `{"panel":"p","datasets":[{"name":"a","matrix":"m","samples":"s","mode":"twogroup","reference":"r","extreme":"e"}],"targets":[{"label":"t","file":"f"}]}`,
	} {
		path := writeConfig(t, content)
		if _, err := ParseJSONConfigFromPath(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
