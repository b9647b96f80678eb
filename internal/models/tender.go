package models

import (
	"strconv"
	"strings"
	"time"

	"tenderradar/internal/flatten"
	"tenderradar/internal/radar"
)

// TenderDocument is the projection of a flattened record indexed into
// Elasticsearch. Only upstream-sourced fields appear here; whatever the API
// did not supply stays empty.
type TenderDocument struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Organism    string     `json:"organism"`
	Unit        string     `json:"unit"`
	Region      string     `json:"region"`
	Commune     string     `json:"commune"`
	Amount      *float64   `json:"amount,omitempty"`
	Modality    string     `json:"modality,omitempty"`
	TenderType  string     `json:"tender_type,omitempty"`
	ClosingDate *time.Time `json:"closing_date,omitempty"`
	Selector    string     `json:"selector"`
	RunID       string     `json:"run_id"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}

// FromRecord maps the known flattened fields into a document. The record's
// external code doubles as the document ID so re-fetching the same listing
// overwrites instead of duplicating.
func FromRecord(rec flatten.Record, selector, runID string, retrievedAt time.Time) TenderDocument {
	doc := TenderDocument{
		Code:        rec.Get("CodigoExterno").String(),
		Name:        rec.Get("Nombre").String(),
		Description: firstOf(rec, "Descripcion", "DescripcionLarga", "Nombre"),
		Status:      firstOf(rec, "Estado", "CodigoEstado"),
		Organism:    rec.Get("Comprador.NombreOrganismo").String(),
		Unit:        firstOf(rec, "Comprador.NombreUnidad", "Comprador.Unidad"),
		Region:      rec.Get("Comprador.RegionUnidad").String(),
		Commune:     rec.Get("Comprador.ComunaUnidad").String(),
		Modality:    rec.Get("Modalidad").String(),
		TenderType:  firstOf(rec, "TipoConvocatoria", "CodigoTipo"),
		Selector:    selector,
		RunID:       runID,
		RetrievedAt: retrievedAt,
	}
	doc.ID = doc.Code

	if raw := firstOf(rec, "MontoEstimado", "Monto", "MontoTotal"); raw != "" {
		if amount, ok := ParseAmount(raw); ok {
			doc.Amount = &amount
		}
	}
	if ts, ok := radar.ParseDate(rec.Get("FechaCierre").String()); ok {
		doc.ClosingDate = &ts
	}
	return doc
}

func firstOf(rec flatten.Record, fields ...string) string {
	for _, f := range fields {
		if v := rec.Get(f).String(); v != "" {
			return v
		}
	}
	return ""
}

// ParseAmount reads amounts in either plain decimal form or the localized
// "1.234.567,89" form the API sometimes emits.
func ParseAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}
