package artifact_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tenderradar/internal/artifact"
	"tenderradar/internal/flatten"
)

func sampleBatch() flatten.Batch {
	return flatten.Batch{
		Fields: []string{"CodigoExterno", "Nombre", "FechaCierre"},
		Records: []flatten.Record{
			{
				"CodigoExterno": flatten.Text("1000-1-LE24"),
				"Nombre":        flatten.Text("Compra de notebooks, región de Ñuble"),
				"FechaCierre":   flatten.Text("2025-10-06T15:00:00"),
			},
			{
				"CodigoExterno": flatten.Text("1000-2-LE24"),
				"Nombre":        flatten.Text("Servicio de aseo"),
				"FechaCierre":   flatten.Null(),
			},
		},
	}
}

func TestWriteCSVStartsWithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_20251004.csv")
	require.NoError(t, artifact.WriteCSV(path, sampleBatch()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(data) > 3)
	require.Equal(t, []byte{0xef, 0xbb, 0xbf}, data[:3])
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_20251004.csv")
	batch := sampleBatch()
	require.NoError(t, artifact.WriteCSV(path, batch))

	got, err := artifact.ReadCSV(path)
	require.NoError(t, err)
	require.Equal(t, batch.Fields, got.Fields)
	require.Len(t, got.Records, 2)

	require.Equal(t, "Compra de notebooks, región de Ñuble",
		got.Records[0].Get("Nombre").String())
	require.False(t, got.Records[1].Get("FechaCierre").Valid)
}

func TestWriteCSVLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "batch_20251004.csv")

	require.Error(t, artifact.WriteCSV(path, sampleBatch()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := artifact.ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestDiscoverPicksNewestDate(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, artifact.EnsureDirs(base))

	older := filepath.Join(artifact.CleanDir(base), "licitaciones_estado_activas_clean_20251003.csv")
	newer := filepath.Join(artifact.CleanDir(base), "licitaciones_estado_activas_clean_20251004.csv")
	for _, p := range []string{older, newer} {
		require.NoError(t, artifact.WriteCSV(p, sampleBatch()))
	}

	got, err := artifact.Discover(base)
	require.NoError(t, err)
	require.Equal(t, newer, got)
}

func TestDiscoverPrefersCleanOverRawOnSameDate(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, artifact.EnsureDirs(base))

	raw := filepath.Join(artifact.RawDir(base), "licitaciones_estado_activas_raw_20251004.csv")
	clean := filepath.Join(artifact.CleanDir(base), "licitaciones_estado_activas_clean_20251004.csv")
	for _, p := range []string{raw, clean} {
		require.NoError(t, artifact.WriteCSV(p, sampleBatch()))
	}

	got, err := artifact.Discover(base)
	require.NoError(t, err)
	require.Equal(t, clean, got)
}

func TestDiscoverFallsBackToRaw(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, artifact.EnsureDirs(base))

	raw := filepath.Join(artifact.RawDir(base), "licitaciones_fecha_04102025_raw_20251004.csv")
	require.NoError(t, artifact.WriteCSV(raw, sampleBatch()))

	got, err := artifact.Discover(base)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestDiscoverNoArtifacts(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, artifact.EnsureDirs(base))

	_, err := artifact.Discover(base)
	require.ErrorIs(t, err, artifact.ErrNoArtifacts)
}

func TestPruneRemovesOnlyAgedArtifacts(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, "tecnologia_20250901.csv")
	fresh := filepath.Join(dir, "tecnologia_20251009.csv")
	undated := filepath.Join(dir, "notes.csv")
	for _, p := range []string{old, fresh, undated} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	removed, err := artifact.Prune(dir, 7*24*time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	require.NoFileExists(t, old)
	require.FileExists(t, fresh)
	require.FileExists(t, undated)
}

func TestWriteXLSXDataAndSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tecnologia_20251004.xlsx")
	batch := flatten.Batch{
		Fields: []string{"CodigoExterno", "Comprador.NombreOrganismo"},
		Records: []flatten.Record{
			{
				"CodigoExterno":             flatten.Text("1-LE24"),
				"Comprador.NombreOrganismo": flatten.Text("MOP"),
			},
			{
				"CodigoExterno":             flatten.Text("2-LE24"),
				"Comprador.NombreOrganismo": flatten.Text("MOP"),
			},
			{
				"CodigoExterno":             flatten.Text("3-LE24"),
				"Comprador.NombreOrganismo": flatten.Null(),
			},
		},
	}

	require.NoError(t, artifact.WriteXLSX(path, "Tecnologia", batch, "Comprador.NombreOrganismo"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("Tecnologia", "A2")
	require.NoError(t, err)
	require.Equal(t, "1-LE24", got)

	// MOP has the highest count, so it is the first summary row.
	org, err := f.GetCellValue("Resumen", "A2")
	require.NoError(t, err)
	require.Equal(t, "MOP", org)
	count, err := f.GetCellValue("Resumen", "B2")
	require.NoError(t, err)
	require.Equal(t, "2", count)
}
