package parsers

import (
	"bytes"
	"strings"
	"testing"

	"shiftscan/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestParseMappingCSV(t *testing.T) {
	input := "\xEF\xBB\xBFPath,Code\r\nA/1, 100 \r\n,,\r\nB/2,200\r\n,300\r\n"
	got, err := ParseMappingCSV(strings.NewReader(input), "")
	require.NoError(t, err)
	assert.Equal(t, []model.MappingEntry{
		{Code: "100", Path: "A/1"},
		{Code: "200", Path: "B/2"},
		{Code: "300", Path: ""},
	}, got)
}

func TestParseMappingCSVMissingHeader(t *testing.T) {
	_, err := ParseMappingCSV(strings.NewReader("code,location\n1,a\n"), "")
	assert.ErrorContains(t, err, "path")

	_, err = ParseMappingCSV(strings.NewReader(""), "")
	assert.Error(t, err)
}

func TestParseMappingCSVShiftJIS(t *testing.T) {
	utf8 := "code,path\n4987,棚A-1\n"
	sjis, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), utf8)
	require.NoError(t, err)

	got, err := ParseMappingCSV(strings.NewReader(sjis), "shift_jis")
	require.NoError(t, err)
	assert.Equal(t, []model.MappingEntry{{Code: "4987", Path: "棚A-1"}}, got)

	_, err = ParseMappingCSV(strings.NewReader(sjis), "no-such-charset")
	assert.Error(t, err)
}

func TestParseMappingXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"code", "path"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"111", "Rack 1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"222", "Rack 2"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	got, err := ParseMappingFile("paths.XLSX", &buf, "")
	require.NoError(t, err)
	assert.Equal(t, []model.MappingEntry{
		{Code: "111", Path: "Rack 1"},
		{Code: "222", Path: "Rack 2"},
	}, got)
}

func TestParseMappingFileUnsupported(t *testing.T) {
	_, err := ParseMappingFile("paths.pdf", strings.NewReader(""), "")
	assert.Error(t, err)
}
