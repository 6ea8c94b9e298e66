// Package sink persists candidate rows: a CSV artifact plus an idempotent
// upsert into storage keyed on (source_key, external_id).
package sink

import (
	"context"

	"civicimport/internal/models"
)

// Upserter defines the interface for the storage upsert.
type Upserter interface {
	Upsert(ctx context.Context, rows []models.CandidateRow) error
}

// rowPayload builds the JSON object for one row, restricted to the column
// allowlist. Empty values become SQL NULLs rather than empty strings so
// non-text target columns stay valid.
func rowPayload(r *models.CandidateRow, fields []string) map[string]any {
	obj := make(map[string]any, len(fields))

	for _, name := range fields {
		if v := r.Field(name); v != "" {
			obj[name] = v
		} else {
			obj[name] = nil
		}
	}

	return obj
}
