package mercadopublico

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

var statusRe = regexp.MustCompile(`^[a-z]+$`)

// Selector picks exactly one query mode: a listing date or a listing status.
// The zero value is invalid; use ByDate or ByStatus so a combined
// date+status query can never be built.
type Selector struct {
	date   string
	status string
}

// ByDate builds a selector for a ddmmyyyy listing date.
func ByDate(date string) (Selector, error) {
	if _, err := time.Parse("02012006", date); err != nil {
		return Selector{}, fmt.Errorf("invalid date %q: want ddmmyyyy", date)
	}
	return Selector{date: date}, nil
}

// ByStatus builds a selector for a daily listing status such as "activas".
func ByStatus(status string) (Selector, error) {
	if !statusRe.MatchString(status) {
		return Selector{}, fmt.Errorf("invalid status %q: want a lowercase word", status)
	}
	return Selector{status: status}, nil
}

// Valid reports whether the selector was built through a constructor.
func (s Selector) Valid() bool {
	return s.date != "" || s.status != ""
}

// Params returns the query parameters for this selection mode.
func (s Selector) Params() url.Values {
	v := url.Values{}
	if s.date != "" {
		v.Set("fecha", s.date)
	}
	if s.status != "" {
		v.Set("estado", s.status)
	}
	return v
}

// Prefix names the artifact family produced by a run with this selector.
func (s Selector) Prefix() string {
	if s.date != "" {
		return "licitaciones_fecha_" + s.date
	}
	return "licitaciones_estado_" + s.status
}

func (s Selector) String() string {
	if s.date != "" {
		return "fecha=" + s.date
	}
	return "estado=" + s.status
}
