package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptySpreadsheet       = errors.New("spreadsheet is empty")
	ErrUnsupportedSpreadsheet = errors.New("unsupported spreadsheet format")
	ErrNoSheet                = errors.New("workbook has no sheet")
)

// statementSheets are sheet names preferred over the first sheet.
var statementSheets = []string{
	"transactions", "operations", "opérations", "releve", "relevé", "extrait", "sheet1", "feuil1",
}

// SpreadsheetReader reads the statement sheet of a workbook as rows of cells.
type SpreadsheetReader interface {
	ReadRows(filename string, data []byte) ([][]string, error)
}

// WorkbookReader reads .xlsx files with excelize and legacy .xls files with
// extrame/xls.
type WorkbookReader struct{}

// NewWorkbookReader creates a reader for both workbook formats.
func NewWorkbookReader() *WorkbookReader {
	return &WorkbookReader{}
}

// ReadRows picks the statement sheet and returns its rows. An empty sheet
// is reported as ErrEmptySpreadsheet.
func (r *WorkbookReader) ReadRows(filename string, data []byte) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx":
		rows, err = readXLSX(data)
	case ".xls":
		rows, err = readXLS(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSpreadsheet, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || allRowsBlank(rows) {
		return nil, ErrEmptySpreadsheet
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := pickSheet(f.GetSheetList())
	if sheet == "" {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func readXLS(data []byte) (rows [][]string, err error) {
	// The BIFF decoder panics on some truncated files.
	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, fmt.Errorf("failed to decode xls file: %v", p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls file: %w", err)
	}

	names := make([]string, 0, wb.NumSheets())
	for i := 0; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil {
			names = append(names, s.Name)
		} else {
			names = append(names, "")
		}
	}
	if len(names) == 0 {
		return nil, ErrNoSheet
	}
	name := pickSheet(names)

	idx := 0
	for i, n := range names {
		if n == name {
			idx = i
			break
		}
	}
	sheet := wb.GetSheet(idx)
	if sheet == nil {
		return nil, ErrNoSheet
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// pickSheet returns the first statement-like sheet name, else the first one.
func pickSheet(sheets []string) string {
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range statementSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(strings.TrimSpace(sheet), preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}

func allRowsBlank(rows [][]string) bool {
	for _, row := range rows {
		if !rowIsBlank(row) {
			return false
		}
	}
	return true
}
