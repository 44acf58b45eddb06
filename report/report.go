// Package report shapes pipeline outputs into tab-delimited tables suitable
// for spreadsheet or text export. Missing statistics print as NA.
package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/astroglial/panelharm/diffexp"
	"github.com/astroglial/panelharm/enrich"
	"github.com/astroglial/panelharm/expr"
	"github.com/astroglial/panelharm/ranking"
)

// naFloat prints NaN as NA so spreadsheet tools treat it as missing rather
// than text.
type naFloat float64

func (f naFloat) MarshalCSV() (string, error) {
	if math.IsNaN(float64(f)) {
		return "NA", nil
	}

	return strconv.FormatFloat(float64(f), 'g', -1, 64), nil
}

type differentialRow struct {
	Marker string  `csv:"marker"`
	Effect naFloat `csv:"effect"`
	CILow  naFloat `csv:"ci_low"`
	CIHigh naFloat `csv:"ci_high"`
	T      naFloat `csv:"t"`
	P      naFloat `csv:"p"`
	FDR    naFloat `csv:"fdr"`
	N1     int     `csv:"n_reference"`
	N2     int     `csv:"n_other"`
}

// WriteDifferential writes one row per marker of a two-group comparison.
func WriteDifferential(w io.Writer, results []diffexp.Result) error {
	rows := make([]differentialRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, differentialRow{
			Marker: r.Marker,
			Effect: naFloat(r.Effect),
			CILow:  naFloat(r.CILow),
			CIHigh: naFloat(r.CIHigh),
			T:      naFloat(r.T),
			P:      naFloat(r.P),
			FDR:    naFloat(r.FDR),
			N1:     r.N1,
			N2:     r.N2,
		})
	}

	return pfx.Err(gocsv.MarshalCSV(&rows, tsvWriter(w)))
}

type enrichmentRow struct {
	Label           string  `csv:"target"`
	QuerySize       int     `csv:"query_size"`
	TargetSize      int     `csv:"target_size"`
	Population      int     `csv:"population"`
	Overlap         int     `csv:"overlap"`
	OverlapRatio    naFloat `csv:"overlap_ratio"`
	P               naFloat `csv:"p_hypergeometric"`
	FisherTwoSidedP naFloat `csv:"p_fisher_two_sided"`
}

// WriteEnrichment writes one row per tested target list, preserving order.
func WriteEnrichment(w io.Writer, results []enrich.Result) error {
	rows := make([]enrichmentRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, enrichmentRow{
			Label:           r.Label,
			QuerySize:       r.QuerySize,
			TargetSize:      r.TargetSize,
			Population:      r.Population,
			Overlap:         r.Overlap,
			OverlapRatio:    naFloat(r.OverlapRatio),
			P:               naFloat(r.P),
			FisherTwoSidedP: naFloat(r.FisherTwoSidedP),
		})
	}

	return pfx.Err(gocsv.MarshalCSV(&rows, tsvWriter(w)))
}

// WriteRanked writes a standardized matrix with rows and columns permuted by
// the given order. The first two header lines carry the sample IDs and their
// group labels (the annotations a heatmap renderer needs for grouped gaps and
// a legend); each marker row leads with its rank key.
func WriteRanked(w io.Writer, z *expr.Matrix, order ranking.Order) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	colIdx := make([]int, len(order.Samples))
	pos := make(map[string]int, len(z.Samples))
	for i, id := range z.Samples {
		pos[id] = i
	}
	for i, id := range order.Samples {
		colIdx[i] = pos[id]
	}

	header := append([]string{"marker", "rank_key"}, order.Samples...)
	if err := cw.Write(header); err != nil {
		return pfx.Err(err)
	}

	groupLine := append([]string{"", ""}, order.Groups...)
	if err := cw.Write(groupLine); err != nil {
		return pfx.Err(err)
	}

	for i, marker := range order.Markers {
		row := z.Row(marker)

		cols := make([]string, 0, len(colIdx)+2)
		cols = append(cols, marker, formatCell(order.MarkerKeys[i]))
		for _, j := range colIdx {
			cols = append(cols, formatCell(row[j]))
		}

		if err := cw.Write(cols); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()

	return pfx.Err(cw.Error())
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	if math.IsInf(v, -1) {
		return "-Inf"
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}

// tsvWriter configures gocsv for tab-delimited output.
func tsvWriter(w io.Writer) *gocsv.SafeCSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	return gocsv.NewSafeCSVWriter(cw)
}
