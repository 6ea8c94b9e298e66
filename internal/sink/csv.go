package sink

import (
	"encoding/csv"
	"fmt"
	"os"

	"civicimport/internal/models"
)

// WriteCSV writes rows to path with the field allowlist as the header.
// An empty row set still produces the file with its header row, which
// downstream consumers treat as a valid zero-result import.
func WriteCSV(path string, rows []models.CandidateRow, fields []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(fields); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(fields))

	for i := range rows {
		for j, name := range fields {
			record[j] = rows[i].Field(name)
		}

		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	return f.Close()
}
