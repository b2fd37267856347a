package extract

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// ReadWorkbook reads the first sheet of an .xlsx workbook. The first row
// is the header; ragged rows are padded with missing values.
func ReadWorkbook(r io.Reader, name string) (*core.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: opening workbook: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.EmptyDataset(name), nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: reading sheet %q: %w", name, sheets[0], err)
	}
	return fromRows(name, rows)
}

// fromRows builds a dataset from sheet rows. The first row is the header.
func fromRows(name string, rows [][]string) (*core.Dataset, error) {
	if len(rows) == 0 {
		return core.EmptyDataset(name), nil
	}
	names := headerNames(rows[0])
	raw := make([][]string, len(names))
	for i, row := range rows[1:] {
		if len(row) > len(names) {
			return nil, fmt.Errorf("%s: row %d has %d cells, header has %d", name, i+2, len(row), len(names))
		}
		for j := range names {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			raw[j] = append(raw[j], cell)
		}
	}
	return buildDataset(name, names, raw)
}
