// Package artifact reads and writes the dated files a run leaves behind:
// CSV batches under data/raw and data/clean, filtered CSVs at the data root,
// and the optional spreadsheet export.
package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tenderradar/internal/flatten"
)

// utf8BOM makes locale-sensitive spreadsheet tools decode the CSV as UTF-8.
const utf8BOM = "\xef\xbb\xbf"

// DateToken formats the 8-digit date embedded in artifact names.
func DateToken(t time.Time) string {
	return t.Format("20060102")
}

// RawDir and CleanDir name the two artifact locations under a data dir.
func RawDir(baseDir string) string   { return filepath.Join(baseDir, "raw") }
func CleanDir(baseDir string) string { return filepath.Join(baseDir, "clean") }

// EnsureDirs creates the raw and clean directories.
func EnsureDirs(baseDir string) error {
	for _, dir := range []string{RawDir(baseDir), CleanDir(baseDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// FileName builds a dated artifact name such as
// licitaciones_estado_activas_clean_20251004.csv.
func FileName(prefix, kind, date string) string {
	return fmt.Sprintf("%s_%s_%s.csv", prefix, kind, date)
}

// WriteCSV writes a batch as BOM-prefixed UTF-8 CSV. The file appears under
// its final name only after a complete write: data goes to a sibling temp
// file first and is renamed into place.
func WriteCSV(path string, batch flatten.Batch) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	if err := writeRows(f, batch); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func writeRows(f *os.File, batch flatten.Batch) error {
	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(batch.Fields); err != nil {
		return err
	}
	row := make([]string, len(batch.Fields))
	for _, rec := range batch.Records {
		for i, field := range batch.Fields {
			row[i] = rec.Get(field).String()
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV loads a batch back from an artifact. Empty cells become explicit
// null values, mirroring how absent fields were written out.
func ReadCSV(path string) (flatten.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return flatten.Batch{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return flatten.Batch{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return flatten.Batch{}, fmt.Errorf("read %s: no header row", path)
	}

	fields := rows[0]
	if len(fields) > 0 {
		fields[0] = strings.TrimPrefix(fields[0], utf8BOM)
	}

	records := make([]flatten.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(flatten.Record, len(fields))
		for i, field := range fields {
			if i >= len(row) || row[i] == "" {
				rec[field] = flatten.Null()
				continue
			}
			rec[field] = flatten.Text(row[i])
		}
		records = append(records, rec)
	}

	return flatten.Batch{Fields: fields, Records: records}, nil
}
