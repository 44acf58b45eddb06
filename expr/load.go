package expr

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// LoadMatrixCSV reads a marker-by-sample matrix. The header row holds sample
// IDs (first cell ignored), each subsequent row holds a marker symbol followed
// by one value per sample. Empty cells and "NA" become missing values.
func LoadMatrixCSV(fileName string) (*Matrix, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	return ReadMatrix(f)
}

// ReadMatrix consumes CSV matrix data from r. See LoadMatrixCSV for the
// expected layout.
func ReadMatrix(r io.Reader) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(header) < 2 {
		return nil, pfx.Err(errMatrixHeader(len(header)))
	}

	m := NewMatrix(header[1:])

	for {
		cols, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		values := make([]float64, 0, len(cols)-1)
		for _, cell := range cols[1:] {
			values = append(values, parseCell(cell))
		}

		if err := m.AddRow(strings.TrimSpace(cols[0]), values); err != nil {
			return nil, pfx.Err(err)
		}
	}

	return m, nil
}

type errMatrixHeader int

func (e errMatrixHeader) Error() string {
	return "expr: matrix header needs a marker column plus at least one sample column, got " + strconv.Itoa(int(e)) + " columns"
}

func parseCell(cell string) float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "NA") || strings.EqualFold(cell, "NaN") {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}

	return v
}

// LoadPanelFile reads one marker symbol per line. Lines starting with # are
// comments. Repeated symbols collapse to their first occurrence.
func LoadPanelFile(fileName string) (Panel, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return Panel{}, pfx.Err(err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comment = '#'
	lines, err := cr.ReadAll()
	if err != nil {
		return Panel{}, pfx.Err(err)
	}

	symbols := make([]string, 0, len(lines))
	for _, cols := range lines {
		if len(cols) < 1 {
			continue
		}
		if s := strings.TrimSpace(cols[0]); s != "" {
			symbols = append(symbols, s)
		}
	}

	return NewPanel(symbols), nil
}

// LoadTargetList reads a gene/protein list in the same one-symbol-per-line
// layout as LoadPanelFile, returned as a plain slice for enrichment testing.
func LoadTargetList(fileName string) ([]string, error) {
	panel, err := LoadPanelFile(fileName)
	if err != nil {
		return nil, err
	}

	return panel.Symbols(), nil
}

// LoadKeyMap reads a two-column CSV mapping row identifiers (e.g. probe IDs)
// to canonical marker symbols, used as the deduplication key.
func LoadKeyMap(fileName string) (map[string]string, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comment = '#'
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := make(map[string]string, len(lines))
	for _, cols := range lines {
		if len(cols) < 2 {
			continue
		}
		out[strings.TrimSpace(cols[0])] = strings.TrimSpace(cols[1])
	}

	return out, nil
}

// sampleRow is the on-disk shape of a sample annotation record.
type sampleRow struct {
	ID        string `csv:"sample_id"`
	Group     string `csv:"group"`
	Batch     string `csv:"batch"`
	Covariate string `csv:"covariate"`
}

// LoadSamplesCSV reads sample annotations. The covariate column may be empty
// or NA, which parses as NaN.
func LoadSamplesCSV(fileName string) (Samples, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	rows := []*sampleRow{}
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	out := make(Samples, len(rows))
	for _, row := range rows {
		out[row.ID] = Sample{
			ID:        row.ID,
			Group:     row.Group,
			Batch:     row.Batch,
			Covariate: parseCell(row.Covariate),
		}
	}

	return out, nil
}
