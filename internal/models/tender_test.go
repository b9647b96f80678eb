package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tenderradar/internal/flatten"
	"tenderradar/internal/models"
)

func TestFromRecord(t *testing.T) {
	rec := flatten.Record{
		"CodigoExterno":             flatten.Text("1000-1-LE24"),
		"Nombre":                    flatten.Text("Compra de notebooks"),
		"Descripcion":               flatten.Text("Notebooks para docentes"),
		"Estado":                    flatten.Text("Publicada"),
		"Comprador.NombreOrganismo": flatten.Text("Ministerio de Educación"),
		"Comprador.RegionUnidad":    flatten.Text("Región Metropolitana"),
		"MontoEstimado":             flatten.Text("12500000"),
		"FechaCierre":               flatten.Text("2025-10-06T15:00:00"),
	}

	retrieved := time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)
	doc := models.FromRecord(rec, "estado=activas", "run-1", retrieved)

	require.Equal(t, "1000-1-LE24", doc.ID)
	require.Equal(t, "1000-1-LE24", doc.Code)
	require.Equal(t, "Compra de notebooks", doc.Name)
	require.Equal(t, "Notebooks para docentes", doc.Description)
	require.Equal(t, "Publicada", doc.Status)
	require.Equal(t, "Ministerio de Educación", doc.Organism)
	require.Equal(t, "Región Metropolitana", doc.Region)
	require.Equal(t, "estado=activas", doc.Selector)
	require.Equal(t, "run-1", doc.RunID)
	require.Equal(t, retrieved, doc.RetrievedAt)

	require.NotNil(t, doc.Amount)
	require.Equal(t, 12500000.0, *doc.Amount)

	require.NotNil(t, doc.ClosingDate)
	require.Equal(t, 6, doc.ClosingDate.Day())
}

func TestFromRecordFallbacks(t *testing.T) {
	rec := flatten.Record{
		"Nombre": flatten.Text("Servicio de aseo"),
	}

	doc := models.FromRecord(rec, "fecha=04102025", "run-2", time.Now())

	require.Empty(t, doc.ID)
	require.Empty(t, doc.Code)
	// Description falls back to the title when no description field exists.
	require.Equal(t, "Servicio de aseo", doc.Description)
	require.Nil(t, doc.Amount)
	require.Nil(t, doc.ClosingDate)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{raw: "1500000", want: 1500000, ok: true},
		{raw: "1500000.50", want: 1500000.50, ok: true},
		{raw: "1.234.567,89", want: 1234567.89, ok: true},
		{raw: " 42 ", want: 42, ok: true},
		{raw: "", ok: false},
		{raw: "sin monto", ok: false},
	}

	for _, tt := range tests {
		got, ok := models.ParseAmount(tt.raw)
		require.Equal(t, tt.ok, ok, tt.raw)
		if tt.ok {
			require.Equal(t, tt.want, got, tt.raw)
		}
	}
}
