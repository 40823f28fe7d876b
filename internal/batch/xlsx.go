package batch

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrNoRows = errors.New("spreadsheet has no data rows")

// DecodeXLSX reads the first sheet of an xlsx workbook. The first row is the
// header; every following row becomes one Record with fields in column order.
// Rows that are entirely empty are dropped, blank headers skip their column.
func DecodeXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	header := rows[0]
	out := make([]Record, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		rec := Record{}
		empty := true
		for col, name := range header {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			var val string
			if col < len(cells) {
				val = strings.TrimSpace(cells[col])
			}
			if val != "" {
				empty = false
			}
			rec = append(rec, Field{Key: name, Value: val})
		}
		if !empty {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}
