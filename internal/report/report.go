// Package report renders scored requests as a table, CSV or XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/saturn/internal/model"
)

// Format names an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want table, csv or xlsx)", s)
	}
}

// Columns is the header row shared by every format.
var Columns = []string{
	"brand_id", "adgroup_id", "observed_svr", "pacing",
	"svr", "multiplier", "status", "message",
}

// Write renders rows in format f.
func Write(w io.Writer, f Format, rows []model.ScoredRequest) error {
	switch f {
	case FormatTable:
		return WriteTable(w, rows)
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return eris.Errorf("report: unknown format %q", f)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func record(r model.ScoredRequest) []string {
	pacing := ""
	if r.Request.Pacing != model.NoPacing {
		pacing = formatFloat(r.Request.Pacing)
	}
	return []string{
		r.Request.BrandID,
		r.Request.AdgroupID,
		formatFloat(r.Request.Score),
		pacing,
		formatFloat(r.Result.Score),
		formatFloat(r.Result.Multiplier),
		string(r.Result.Status),
		r.Result.Message,
	}
}

// WriteTable writes an aligned text table.
func WriteTable(w io.Writer, rows []model.ScoredRequest) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BRAND\tADGROUP\tOBSERVED\tPACING\tSVR\tMULTIPLIER\tSTATUS\tMESSAGE")
	for _, r := range rows {
		rec := record(r)
		rec[5] = fmt.Sprintf("%.6f", r.Result.Multiplier)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec[0], rec[1], rec[2], rec[3], rec[4], rec[5], rec[6], rec[7])
	}
	return eris.Wrap(tw.Flush(), "report: write table")
}

// WriteCSV writes a header row followed by one record per row.
func WriteCSV(w io.Writer, rows []model.ScoredRequest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return eris.Wrap(err, "report: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// WriteXLSX writes a single-sheet workbook. Numeric columns are stored as
// numbers.
func WriteXLSX(w io.Writer, rows []model.ScoredRequest) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Request.BrandID)
		row.AddCell().SetString(r.Request.AdgroupID)
		row.AddCell().SetFloat(r.Request.Score)
		pacing := row.AddCell()
		if r.Request.Pacing != model.NoPacing {
			pacing.SetFloat(r.Request.Pacing)
		}
		row.AddCell().SetFloat(r.Result.Score)
		row.AddCell().SetFloat(r.Result.Multiplier)
		row.AddCell().SetString(string(r.Result.Status))
		row.AddCell().SetString(r.Result.Message)
	}

	return eris.Wrap(f.Write(w), "report: write xlsx")
}
