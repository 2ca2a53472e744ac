package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelizeWriter implements ExcelWriter using excelize library.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func NewExcelizeWriter() ExcelWriter {
	return &ExcelizeWriter{file: excelize.NewFile()}
}

// AddSheet starts a sheet. The first call renames the default one.
func (w *ExcelizeWriter) AddSheet(name string) error {
	// Excel limit.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold headers and freezes the header row.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if len(columns) == 0 {
		return nil
	}

	start, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.file.SetSheetRow(w.currentSheet, start, &header); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, start, end, style)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = w.file.SetColWidth(w.currentSheet, "A", lastCol, 18)
	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      w.currentRow,
		TopLeftCell: fmt.Sprintf("A%d", w.currentRow+1),
		ActivePane:  "bottomLeft",
	})

	w.currentRow++
	return nil
}

func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
