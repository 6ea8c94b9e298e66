package models

// EnrichmentResult holds the best-effort fields recovered from an event's
// own source page. Empty fields mean "nothing found"; they never clear a
// value already present on the row.
type EnrichmentResult struct {
	Description   string
	OrganizerName string
	ImageURL      string
}

// IsZero reports whether enrichment found nothing at all.
func (e EnrichmentResult) IsZero() bool {
	return e.Description == "" && e.OrganizerName == "" && e.ImageURL == ""
}
