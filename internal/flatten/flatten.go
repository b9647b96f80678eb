// Package flatten projects the nested JSON records returned by the tender API
// into flat field->value mappings with a uniform field set per batch.
package flatten

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Value is one flattened cell. Absent or null source fields produce an
// invalid Value so every record in a batch can carry the full field set.
type Value struct {
	Raw   string
	Valid bool
}

// String returns the textual form of the value, or "" when null.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return v.Raw
}

// Text builds a valid Value from a string.
func Text(s string) Value {
	return Value{Raw: s, Valid: true}
}

// Null is the explicit empty value.
func Null() Value {
	return Value{}
}

// Record is one flattened tender listing.
type Record map[string]Value

// Get returns the value for a field, null when the field is unknown.
func (r Record) Get(field string) Value {
	return r[field]
}

// Batch is the flattened output of one fetch run. Fields is the union of all
// field names observed across Records, in first-seen order.
type Batch struct {
	Fields  []string
	Records []Record
}

// Records flattens every raw record and pads all of them to the shared field
// union, so the batch is rectangular: len(Fields) columns for every record.
func Records(raw []map[string]any) Batch {
	var fields []string
	seen := make(map[string]struct{})

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		rec := make(Record)
		walk("", item, rec)
		for _, f := range sortedKeys(rec) {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				fields = append(fields, f)
			}
		}
		records = append(records, rec)
	}

	for _, rec := range records {
		for _, f := range fields {
			if _, ok := rec[f]; !ok {
				rec[f] = Null()
			}
		}
	}

	return Batch{Fields: fields, Records: records}
}

// TopLevel keeps each record's top-level fields only, rendering nested
// structures as JSON text. This is the as-received ("raw") projection.
func TopLevel(raw []map[string]any) Batch {
	var fields []string
	seen := make(map[string]struct{})

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		rec := make(Record, len(item))
		for key, val := range item {
			switch v := val.(type) {
			case map[string]any:
				data, err := json.Marshal(v)
				if err != nil {
					rec[key] = Null()
					continue
				}
				rec[key] = Text(string(data))
			case []any:
				rec[key] = renderArray(v)
			default:
				rec[key] = renderScalar(v)
			}
		}
		for _, f := range sortedKeys(rec) {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				fields = append(fields, f)
			}
		}
		records = append(records, rec)
	}

	for _, rec := range records {
		for _, f := range fields {
			if _, ok := rec[f]; !ok {
				rec[f] = Null()
			}
		}
	}

	return Batch{Fields: fields, Records: records}
}

func walk(prefix string, node map[string]any, out Record) {
	for key, val := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := val.(type) {
		case map[string]any:
			walk(path, v, out)
		case []any:
			if first, ok := firstObject(v); ok {
				// The API wraps single sub-objects (e.g. Comprador) in
				// one-element arrays on some endpoints.
				walk(path, first, out)
				continue
			}
			out[path] = renderArray(v)
		default:
			out[path] = renderScalar(v)
		}
	}
}

func firstObject(items []any) (map[string]any, bool) {
	if len(items) == 0 {
		return nil, false
	}
	obj, ok := items[0].(map[string]any)
	return obj, ok
}

func renderScalar(v any) Value {
	switch s := v.(type) {
	case nil:
		return Null()
	case string:
		return Text(s)
	case bool:
		return Text(strconv.FormatBool(s))
	case float64:
		return Text(strconv.FormatFloat(s, 'f', -1, 64))
	case json.Number:
		return Text(s.String())
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Null()
		}
		return Text(string(data))
	}
}

func renderArray(items []any) Value {
	if len(items) == 0 {
		return Null()
	}
	data, err := json.Marshal(items)
	if err != nil {
		return Null()
	}
	return Text(string(data))
}

func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
