package reglist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "regs.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV_DetectsHeader(t *testing.T) {
	input := "fleet_id,VRM,notes\n1,AB12 CDE,van\n2,,missing\n3, xy34zzz ,car\n"
	regs, err := ReadCSV(context.Background(), strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12 CDE", "xy34zzz"}, regs)
}

func TestReadCSV_Headerless(t *testing.T) {
	input := "AB12CDE\n# comment\nXY34ZZZ\n\n"
	regs, err := ReadCSV(context.Background(), strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12CDE", "XY34ZZZ"}, regs)
}

func TestReadCSV_ExplicitColumn(t *testing.T) {
	input := "id;plate\n1;AB12CDE\n2;XY34ZZZ\n"
	regs, err := ReadCSV(context.Background(), strings.NewReader(input), Options{Column: "Plate", Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12CDE", "XY34ZZZ"}, regs)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("id,plate\n1,AB12CDE\n"), Options{Column: "vin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "vin" not found`)
}

func TestReadCSV_ByteOrderMark(t *testing.T) {
	input := "\ufeffregistration\nAB12CDE\n"
	regs, err := ReadCSV(context.Background(), strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12CDE"}, regs)
}

func TestReadCSV_Empty(t *testing.T) {
	regs, err := ReadCSV(context.Background(), strings.NewReader(""), Options{})
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestReadCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("AB12CDE\n"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regs.csv")
	require.NoError(t, os.WriteFile(path, []byte("reg\nAB12CDE\nXY34ZZZ\n"), 0o644))

	regs, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12CDE", "XY34ZZZ"}, regs)
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
}

func TestReadFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Fleet": {
			{"Make", "Registration"},
			{"FORD", "AB12CDE"},
			{"VAUXHALL", " XY34ZZZ "},
			{"SEAT"},
		},
	})

	regs, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12CDE", "XY34ZZZ"}, regs)
}

func TestReadFile_XLSXNamedSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Fleet": {{"AB12CDE"}},
	})

	regs, err := ReadFile(context.Background(), path, Options{Sheet: "Fleet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12CDE"}, regs)

	_, err = ReadFile(context.Background(), path, Options{Sheet: "Other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Other" not found`)
}
