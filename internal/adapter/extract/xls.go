package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/extrame/xls"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// ReadLegacyWorkbook reads the first sheet of a BIFF .xls workbook with the
// same header and padding rules as ReadWorkbook.
func ReadLegacyWorkbook(r io.Reader, name string) (ds *core.Dataset, err error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rs = bytes.NewReader(data)
	}

	// The decoder panics on truncated records.
	defer func() {
		if p := recover(); p != nil {
			ds, err = nil, fmt.Errorf("%s: malformed workbook: %v", name, p)
		}
	}()

	wb, err := xls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%s: opening workbook: %w", name, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%s: no workbook stream", name)
	}
	if wb.NumSheets() == 0 {
		return core.EmptyDataset(name), nil
	}
	sheet := wb.GetSheet(0)
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return fromRows(name, rows)
}

// sheetRow returns nil for rows the sheet never wrote.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
