// Package export renders grade books, attendance sheets, receipts and rosters as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"log"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbooks written by this package
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sheet accumulates rows for one worksheet
type sheet struct {
	name   string
	header []interface{}
	rows   [][]interface{}
	widths map[string]float64 // column letter -> width
}

func (s *sheet) add(row ...interface{}) { s.rows = append(s.rows, row) }

// writeWorkbook lays the sheets out in order (the first replaces the default
// sheet) and writes the document to w
func writeWorkbook(w io.Writer, sheets ...*sheet) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing workbook: %v", err)
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", s.name, err)
		}
		if err := fillSheet(f, s, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, s *sheet, headerStyle int) error {
	all := append([][]interface{}{s.header}, s.rows...)
	for i := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &all[i]); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, s.name, err)
		}
	}
	if len(s.header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(s.header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header of %s: %w", s.name, err)
		}
	}
	for col, width := range s.widths {
		if err := f.SetColWidth(s.name, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s of %s: %w", col, s.name, err)
		}
	}
	return nil
}

// percent renders a 0..1 rate as a percentage, or blank when nothing was measured
func percent(rate *float64) interface{} {
	if rate == nil {
		return ""
	}
	return fmt.Sprintf("%.1f%%", *rate*100)
}

func number(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
