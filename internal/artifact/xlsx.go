package artifact

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"tenderradar/internal/flatten"
)

// WriteXLSX mirrors a batch into a spreadsheet: one data sheet plus a
// summary sheet counting records per value of summaryField. Only the header
// row gets styling; the export is a convenience view, not a report.
func WriteXLSX(path, sheet string, batch flatten.Batch, summaryField string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeSheet(f, sheet, batch.Fields, dataRows(batch)); err != nil {
		return err
	}

	if summaryField != "" {
		const summarySheet = "Resumen"
		if _, err := f.NewSheet(summarySheet); err != nil {
			return fmt.Errorf("add summary sheet: %w", err)
		}
		header := []string{summaryField, "Licitaciones"}
		if err := writeSheet(f, summarySheet, header, summaryRows(batch, summaryField)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func dataRows(batch flatten.Batch) [][]any {
	rows := make([][]any, 0, len(batch.Records))
	for _, rec := range batch.Records {
		row := make([]any, len(batch.Fields))
		for i, field := range batch.Fields {
			row[i] = rec.Get(field).String()
		}
		rows = append(rows, row)
	}
	return rows
}

func summaryRows(batch flatten.Batch, field string) [][]any {
	counts := make(map[string]int)
	for _, rec := range batch.Records {
		key := rec.Get(field).String()
		if key == "" {
			key = "(sin dato)"
		}
		counts[key]++
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] == counts[keys[j]] {
			return keys[i] < keys[j]
		}
		return counts[keys[i]] > counts[keys[j]]
	})

	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k, counts[k]})
	}
	return rows
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	if len(header) == 0 {
		return nil
	}
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", r+2, err)
			}
		}
	}
	return nil
}
