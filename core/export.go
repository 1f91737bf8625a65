package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
	ExportJSON = "json"

	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ErrInvalidFormat = NewValidationError(errors.New("Invalid format"))

// Table is a tabular export: one header row and any number of data rows.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

func (t *Table) AddRow(cells ...interface{}) {
	t.Rows = append(t.Rows, cells)
}

// Write writes the table in the given format (csv or xlsx).
func (t Table) Write(w io.Writer, format string) error {
	switch format {
	case ExportCSV:
		return t.WriteCSV(w)
	case ExportXLSX:
		return t.WriteXLSX(w)
	default:
		return ErrInvalidFormat
	}
}

func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return errors.Wrap(err, "writing csv headers")
	}
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t Table) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := t.Name
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return errors.Wrap(err, "naming sheet")
		}
	}

	for i, header := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return errors.Wrap(err, "writing xlsx headers")
		}
	}
	for r, row := range t.Rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if tm, ok := val.(time.Time); ok {
				val = formatCell(tm)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return errors.Wrap(err, "writing xlsx row")
			}
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing xlsx file")
	}
	return nil
}

// ContentType returns the HTTP content type of an export format.
func ContentType(format string) string {
	if format == ExportXLSX {
		return ContentTypeXLSX
	}
	if format == ExportJSON {
		return "application/json"
	}
	return ContentTypeCSV
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02 15:04")
	case *time.Time:
		if val == nil {
			return ""
		}
		return formatCell(*val)
	case float64:
		return fmt.Sprintf("%.2f", val)
	case *float64:
		if val == nil {
			return ""
		}
		return formatCell(*val)
	default:
		return fmt.Sprint(val)
	}
}
