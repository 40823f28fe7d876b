package batch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, cells := range rows {
		for j, val := range cells {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

func TestDecodeXLSX(t *testing.T) {
	r := buildWorkbook(t, [][]string{
		{"keyword", "category", "tone"},
		{"seoul cafes", "travel", "casual"},
		{"best ramen", "food", ""},
	})

	records, err := DecodeXLSX(r)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{
		{Key: "keyword", Value: "seoul cafes"},
		{Key: "category", Value: "travel"},
		{Key: "tone", Value: "casual"},
	}, records[0])
	assert.Equal(t, "best ramen", records[1][0].Value)
	assert.Equal(t, "", records[1][2].Value)
}

func TestDecodeXLSX_SkipsEmptyRows(t *testing.T) {
	r := buildWorkbook(t, [][]string{
		{"keyword"},
		{""},
		{"only real row"},
	})

	records, err := DecodeXLSX(r)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "only real row", records[0][0].Value)
}

func TestDecodeXLSX_HeaderOnly(t *testing.T) {
	r := buildWorkbook(t, [][]string{{"keyword", "category"}})

	_, err := DecodeXLSX(r)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestDecodeXLSX_NotAWorkbook(t *testing.T) {
	_, err := DecodeXLSX(bytes.NewReader([]byte("definitely not xlsx")))
	assert.Error(t, err)
}
