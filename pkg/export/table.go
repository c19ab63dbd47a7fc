// Package export writes tabular registry data as spreadsheets or CSV.
package export

import (
	"fmt"
	"io"
	"time"
)

// Column maps a row key to its header label.
type Column struct {
	Key   string
	Label string
}

// Table is an ordered set of columns plus rows keyed by Column.Key.
type Table struct {
	Columns []Column
	Rows    []map[string]interface{}
}

func (t Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

// Format names a supported export format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user-supplied format, defaulting to xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write renders t to w in format f.
func Write(w io.Writer, f Format, sheet string, t Table) error {
	if f == FormatCSV {
		return WriteCSV(w, DefaultCSVOptions(), t)
	}
	options := DefaultExcelOptions()
	if sheet != "" {
		options.SheetName = sheet
	}
	return WriteExcel(w, options, t)
}

func formatTime(v time.Time, layout string) string {
	if v.IsZero() {
		return ""
	}
	return v.Format(layout)
}
