package results

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/amishk599/jobradar/internal/model"
)

var exportHeaders = []string{
	"Listing ID",
	"Verdict",
	"Title",
	"Company",
	"Location",
	"Salary",
	"Rationale",
	"Evaluated At",
	"URL",
}

// ExportXLSX returns a workbook with one sheet per collection.
func ExportXLSX(set Set, logger *slog.Logger) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the first collection.
	if err := f.SetSheetName("Sheet1", "Matching"); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet("Rejected"); err != nil {
		return nil, err
	}
	if err := writeSheet(f, "Matching", set.Matching); err != nil {
		return nil, err
	}
	if err := writeSheet(f, "Rejected", set.Rejected); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	if logger != nil {
		logger.Info("exported results",
			"matching", len(set.Matching),
			"rejected", len(set.Rejected),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return buf.Bytes(), nil
}

// WriteXLSX exports set to the file at path.
func WriteXLSX(path string, set Set, logger *slog.Logger) error {
	data, err := ExportXLSX(set, logger)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, entries []model.CacheEntry) error {
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for n, e := range entries {
		row := n + 2
		evaluated := ""
		if !e.CompletedAt.IsZero() {
			evaluated = e.CompletedAt.UTC().Format(time.RFC3339)
		}
		values := []any{
			e.ID,
			string(e.Verdict),
			e.Title,
			e.Company,
			e.Location,
			e.Salary,
			Rationale(e),
			evaluated,
			e.SourceURL,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 14)
	_ = f.SetColWidth(sheet, "C", "C", 36)
	_ = f.SetColWidth(sheet, "D", "E", 24)
	_ = f.SetColWidth(sheet, "F", "F", 18)
	_ = f.SetColWidth(sheet, "G", "G", 80) // rationale
	_ = f.SetColWidth(sheet, "H", "H", 22)
	_ = f.SetColWidth(sheet, "I", "I", 60)
	return nil
}
