// Package radar decides which tender records look technology-related. The
// keyword list is a set of regular expressions, so one entry can encode
// alternation ("office\s*365|microsoft\s*365|o365").
package radar

import (
	"fmt"
	"regexp"
	"strings"

	"tenderradar/internal/flatten"
)

// DefaultKeywords is the technology radar pattern list.
var DefaultKeywords = []string{
	`tecnolog(í|i)a`, `informátic(a|o)`, `\bti\b`, `\bict\b`,
	`software`, `licencia(s)?`, `office\s*365|microsoft\s*365|o365`,
	`windows|linux|ubuntu|macos`,
	`hardware|servidor(es)?|server|storage|backup|respaldo`,
	`red(es)?|switch|router|firewall|wi-?fi|wlan|lan|sd-?wan`,
	`datacenter|data\s*center|cloud|nube|aws|azure|gcp`,
	`fibra|cableado|óptic[ao]`,
	`ciberseguridad|antivirus|endpoint|siem|soar|dlp`,
	`telecom|telefon(í|i)a|voip|comunicacion(es)?`,
	`tablet(s)?|ipad|notebook|laptop|computador|pc|monitor(es)?|pantalla\s*led`,
	`impresor(a|es)|plotter`,
	`desarroll(o|ar)|devops|api|integraci(ó|o)n|automatizaci(ó|o)n`,
	`base(s)?\s*de\s*datos|postgres|mysql|sql\s*server|oracle|mongodb|sqlite`,
	`analytics|bi|power\s*bi|tableau|looker`,
}

// DefaultPriorityColumns are the text fields scanned first, in order.
var DefaultPriorityColumns = []string{
	"Nombre",
	"Descripcion",
	"Justificacion",
	"Comprador.NombreOrganismo",
	"Categorias.Categoria.Categoria",
}

// Matcher matches records against a compiled keyword list. Matching is an
// ordered strategy list: priority columns first, whole-row concatenation
// when no priority column carries a value on that record.
type Matcher struct {
	patterns   []*regexp.Regexp
	priority   []string
	strategies []strategy
}

// strategy extracts the text a record offers for matching. ok is false when
// the strategy does not apply to the record, letting the next one run.
type strategy func(rec flatten.Record) (texts []string, ok bool)

// NewMatcher compiles the keyword patterns case-insensitively. An empty
// pattern list is a configuration error, not "match nothing".
func NewMatcher(keywords, priorityColumns []string) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keyword list is empty")
	}
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		re, err := regexp.Compile("(?i)" + kw)
		if err != nil {
			return nil, fmt.Errorf("keyword %q: %w", kw, err)
		}
		patterns = append(patterns, re)
	}

	m := &Matcher{patterns: patterns, priority: priorityColumns}
	m.strategies = []strategy{m.priorityText, wholeRowText}
	return m, nil
}

// Match reports whether any keyword pattern matches the record.
func (m *Matcher) Match(rec flatten.Record) bool {
	for _, strat := range m.strategies {
		texts, ok := strat(rec)
		if !ok {
			continue
		}
		return m.anyPattern(texts)
	}
	return false
}

// Filter returns the matching subsequence of records in their input order.
func (m *Matcher) Filter(records []flatten.Record) []flatten.Record {
	out := make([]flatten.Record, 0)
	for _, rec := range records {
		if m.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// priorityText applies when at least one priority column carries a value.
func (m *Matcher) priorityText(rec flatten.Record) ([]string, bool) {
	texts := make([]string, 0, len(m.priority))
	for _, col := range m.priority {
		if v := rec.Get(col); v.Valid && v.Raw != "" {
			texts = append(texts, v.Raw)
		}
	}
	return texts, len(texts) > 0
}

// wholeRowText joins every populated field into one search string.
func wholeRowText(rec flatten.Record) ([]string, bool) {
	parts := make([]string, 0, len(rec))
	for _, v := range rec {
		if v.Valid && v.Raw != "" {
			parts = append(parts, v.Raw)
		}
	}
	return []string{strings.Join(parts, " ")}, true
}

func (m *Matcher) anyPattern(texts []string) bool {
	for _, re := range m.patterns {
		for _, text := range texts {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}
