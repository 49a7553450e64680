package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// sheet is one worksheet flattened to a grid of cell strings.
type sheet struct {
	Name string
	Rows [][]string
}

func extractWorkbookText(data []byte, ext string) (string, error) {
	var (
		sheets []sheet
		err    error
	)
	if ext == ".xls" {
		sheets, err = readXLS(data)
	} else {
		sheets, err = readXLSX(data)
	}
	if err != nil {
		return "", err
	}
	return renderSheets(sheets)
}

func readXLSX(data []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		sheets = append(sheets, sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

func readXLS(data []byte) (sheets []sheet, err error) {
	// The BIFF reader panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("failed to read legacy workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy workbook: %w", err)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		s := sheet{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := xlsRow(ws, r)
			if row == nil {
				s.Rows = append(s.Rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			s.Rows = append(s.Rows, cells)
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

// xlsRow returns nil for rows the sheet never defined; the reader itself
// dereferences them.
func xlsRow(ws *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(r)
}

// renderSheets writes every sheet as "Sheet: <name>" followed by its CSV,
// with a blank line between sheets, preserving workbook order.
func renderSheets(sheets []sheet) (string, error) {
	blocks := make([]string, 0, len(sheets))
	for _, s := range sheets {
		body, err := sheetCSV(s.Rows)
		if err != nil {
			return "", fmt.Errorf("failed to render sheet %q: %w", s.Name, err)
		}
		block := "Sheet: " + s.Name
		if body != "" {
			block += "\n" + body
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func sheetCSV(rows [][]string) (string, error) {
	// Trailing empty rows carry no content.
	for len(rows) > 0 && isBlankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		if err := w.Write(padded); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
