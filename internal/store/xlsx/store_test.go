package xlsx_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/store/xlsx"
)

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // test workbook
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Fecha", "NURC", "Seguimiento"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"2024-01-01", 12345, ""}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2024-01-02", "000987", "hecho"}))
	require.NoError(t, f.SaveAs(path))
}

func TestOpenReadsCellsAsText(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Reclamos.xlsx")
	writeWorkbook(t, path)

	store, err := xlsx.Open(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fecha", "NURC", "Seguimiento"}, store.Header())
	require.Equal(t, 2, store.Len())

	id, ok := store.Value(0, "NURC")
	require.True(t, ok)
	assert.Equal(t, "12345", id)

	id, _ = store.Value(1, "NURC")
	assert.Equal(t, "000987", id)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Reclamos.xlsx")
	writeWorkbook(t, path)

	store, err := xlsx.Open(path, "")
	require.NoError(t, err)
	store.EnsureColumn("Expediente")
	require.NoError(t, store.Set(0, "Seguimiento", "[1] a: b"))
	require.NoError(t, store.Set(0, "Expediente", "https://x/anex-download/1"))
	require.NoError(t, store.Save())

	reopened, err := xlsx.Open(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fecha", "NURC", "Seguimiento", "Expediente"}, reopened.Header())
	v, _ := reopened.Value(0, "Seguimiento")
	assert.Equal(t, "[1] a: b", v)
	v, _ = reopened.Value(0, "Expediente")
	assert.Equal(t, "https://x/anex-download/1", v)
	v, _ = reopened.Value(1, "NURC")
	assert.Equal(t, "000987", v)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := xlsx.Open(filepath.Join(t.TempDir(), "missing.xlsx"), "")
	assert.ErrorIs(t, err, enrich.ErrStore)
}

func TestSaveKeepsUntouchedCells(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Reclamos.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Fecha", "NURC", "Seguimiento"}))
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, "A2", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellStyle(sheet, "A2", "A2", dateStyle))
	require.NoError(t, f.SetCellValue(sheet, "B2", "12345"))
	require.NoError(t, f.SetCellValue(sheet, "D2", "nota sin encabezado"))
	_, err = f.NewSheet("Resumen")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Resumen", "A1", "total"))
	require.NoError(t, f.SaveAs(path))
	dateBefore, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	store, err := xlsx.Open(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fecha", "NURC", "Seguimiento", ""}, store.Header())
	store.EnsureColumn("Expediente")
	require.NoError(t, store.Set(0, "Seguimiento", "[1] a: b"))
	require.NoError(t, store.Set(0, "Expediente", "https://x/anex-download/1"))
	require.NoError(t, store.Save())

	saved, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer saved.Close() //nolint:errcheck // test workbook

	cells := map[string]string{
		"A2": dateBefore,
		"B2": "12345",
		"C2": "[1] a: b",
		"D2": "nota sin encabezado",
		"E1": "Expediente",
		"E2": "https://x/anex-download/1",
	}
	for name, want := range cells {
		got, err := saved.GetCellValue(sheet, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	styleID, err := saved.GetCellStyle(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, dateStyle, styleID)
	total, err := saved.GetCellValue("Resumen", "A1")
	require.NoError(t, err)
	assert.Equal(t, "total", total)
}

func TestSaveWithoutChangesLeavesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Reclamos.xlsx")
	writeWorkbook(t, path)
	before, err := os.Stat(path)
	require.NoError(t, err)

	store, err := xlsx.Open(path, "")
	require.NoError(t, err)
	store.EnsureColumn("Seguimiento")
	require.NoError(t, store.Save())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, before.Size(), after.Size())
}

func TestSaveKeepsMacroWorkbookType(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Reclamos.xlsm")
	writeWorkbook(t, path)

	store, err := xlsx.Open(path, "")
	require.NoError(t, err)
	require.NoError(t, store.Set(0, "Seguimiento", "[1] a: b"))
	require.NoError(t, store.Save())

	assert.Contains(t, contentTypes(t, path), "application/vnd.ms-excel.sheet.macroEnabled.main+xml")

	reopened, err := xlsx.Open(path, "")
	require.NoError(t, err)
	v, _ := reopened.Value(0, "Seguimiento")
	assert.Equal(t, "[1] a: b", v)
}

func contentTypes(t *testing.T, path string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close() //nolint:errcheck // test archive
	for _, entry := range zr.File {
		if entry.Name != "[Content_Types].xml" {
			continue
		}
		rc, err := entry.Open()
		require.NoError(t, err)
		defer rc.Close() //nolint:errcheck // test archive
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(body)
	}
	t.Fatalf("no content types part in %s", path)
	return ""
}
