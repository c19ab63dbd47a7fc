package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName       string            `json:"sheet_name"`
	FreezeHeader    bool              `json:"freeze_header"`
	AutoFilter      bool              `json:"auto_filter"`
	TimestampFormat string            `json:"timestamp_format"`
	HeaderStyle     *ExcelStyleConfig `json:"header_style,omitempty"`
	AutoWidth       bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:       "Report",
		FreezeHeader:    true,
		AutoFilter:      true,
		TimestampFormat: "2006-01-02 15:04:05",
		AutoWidth:       true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "22784A",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
	}
}

// WriteExcel writes t as a single-sheet workbook
func WriteExcel(w io.Writer, options ExcelOptions, t Table) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := options.SheetName
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeHeader(file, options, t); err != nil {
		return err
	}

	widths := make([]float64, len(t.Columns))
	for i, label := range t.labels() {
		widths[i] = float64(len(label)) + 2
	}

	for rowIdx, row := range t.Rows {
		for colIdx, col := range t.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := excelValue(row[col.Key], options.TimestampFormat)
			if err := file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if width := float64(len(fmt.Sprint(val))) + 2; width > widths[colIdx] {
				widths[colIdx] = width
			}
		}
	}

	if options.AutoFilter && len(t.Columns) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(t.Columns), len(t.Rows)+1)
		if err := file.AutoFilter(sheet, "A1:"+lastCell, nil); err != nil {
			return fmt.Errorf("failed to add auto filter: %w", err)
		}
	}

	if options.AutoWidth {
		for colIdx, width := range widths {
			colName, _ := excelize.ColumnNumberToName(colIdx + 1)
			// Min width 10, max width 50
			if width < 10 {
				width = 10
			}
			if width > 50 {
				width = 50
			}
			if err := file.SetColWidth(sheet, colName, colName, width); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(file *excelize.File, options ExcelOptions, t Table) error {
	sheet := options.SheetName

	styleID := 0
	if options.HeaderStyle != nil {
		id, err := createStyle(file, options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		styleID = id
	}

	for i, label := range t.labels() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, label); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if styleID > 0 {
			file.SetCellStyle(sheet, cell, cell, styleID)
		}
	}

	if options.FreezeHeader {
		return file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// createStyle creates an Excel style from config
func createStyle(file *excelize.File, config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
		Alignment: &excelize.Alignment{Horizontal: config.Alignment},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{config.FillColor}, Pattern: 1}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "D9D9D9", Style: 1},
			{Type: "top", Color: "D9D9D9", Style: 1},
			{Type: "bottom", Color: "D9D9D9", Style: 1},
			{Type: "right", Color: "D9D9D9", Style: 1},
		}
	}
	return file.NewStyle(style)
}

func excelValue(val interface{}, layout string) interface{} {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		return formatTime(v, layout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return formatTime(*v, layout)
	default:
		return v
	}
}
