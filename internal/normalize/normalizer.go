// Package normalize turns raw upstream events into deduplicated candidate
// rows: timeslot expansion, idempotency keys, safety screening, and the
// budgeted enrichment overlay.
package normalize

import (
	"context"
	"strings"
	"time"

	"civicimport/internal/config"
	"civicimport/internal/logger"
	"civicimport/internal/metrics"
	"civicimport/internal/models"
	"civicimport/internal/safety"
	"civicimport/pkg/textutil"
)

// Row provenance constants. external_id is only unique within a source_key,
// so every row carries the same key.
const (
	sourceKey         = "mobilize"
	sourceType        = "api"
	defaultSourceName = "Mobilize"
)

// Enricher fills in missing fields from an event's own source page.
// A zero result means the page yielded nothing usable.
type Enricher interface {
	Enrich(ctx context.Context, url string) models.EnrichmentResult
}

// Stats summarizes one normalization pass.
type Stats struct {
	Events      int
	Rows        int
	Rejected    int
	EnrichCalls int
}

// Normalizer holds the run-scoped dedup set and enrichment budget. It is
// single-use: create one per pipeline pass.
type Normalizer struct {
	limit      int
	enrichment config.EnrichmentConfig
	filter     *safety.Filter
	enricher   Enricher
	log        *logger.Logger
	met        *metrics.Metrics

	// injectable for tests
	sleep func(time.Duration)

	seen        map[string]struct{}
	enrichCalls int
}

// New creates a normalizer. Pass a nil enricher to disable enrichment.
func New(cfg *config.Config, filter *safety.Filter, enricher Enricher, log *logger.Logger, met *metrics.Metrics) *Normalizer {
	return &Normalizer{
		limit:      cfg.Fetch.Limit,
		enrichment: cfg.Enrichment,
		filter:     filter,
		enricher:   enricher,
		log:        log,
		met:        met,
		sleep:      time.Sleep,
		seen:       make(map[string]struct{}),
	}
}

// Normalize expands events into candidate rows, stopping as soon as the
// configured limit is reached. Remaining events are not processed.
func (n *Normalizer) Normalize(ctx context.Context, events []models.RawEvent) ([]models.CandidateRow, Stats) {
	var stats Stats

	nowISO := time.Now().UTC().Format(time.RFC3339)
	rows := make([]models.CandidateRow, 0, min(len(events), n.limit))

	for i := range events {
		ev := &events[i]
		stats.Events++

		title := strings.TrimSpace(ev.Title)
		if title == "" {
			n.reject(&stats, metrics.ReasonBlankTitle)

			continue
		}

		seedDesc := textutil.StripHTML(ev.Description)
		if !n.filter.IsSafe(title, seedDesc) {
			n.log.Debug("event rejected by safety filter", "event_id", ev.ID, "title", title)
			n.reject(&stats, metrics.ReasonUnsafe)

			continue
		}

		browserURL := strings.TrimSpace(ev.BrowserURL)
		sourceName := strings.TrimSpace(ev.SponsorName())

		if sourceName == "" {
			sourceName = defaultSourceName
		}

		for _, slot := range ev.Timeslots {
			if slot.StartDate == 0 {
				n.reject(&stats, metrics.ReasonMissingStart)

				continue
			}

			extID := models.ExternalID(ev.ID, slot.ID, slot.StartDate)
			if _, dup := n.seen[extID]; dup {
				n.reject(&stats, metrics.ReasonDuplicate)

				continue
			}
			n.seen[extID] = struct{}{}

			row := models.CandidateRow{
				Title:       title,
				Description: textutil.CleanText(seedDesc, 0),
				City:        strings.TrimSpace(ev.City()),
				State:       strings.TrimSpace(ev.State()),
				EventTime:   models.ISOFromUnix(slot.StartDate),
				Status:      models.StatusActive,
				EventTypes:  strings.TrimSpace(ev.EventType),
				SourceType:  sourceType,
				SourceName:  sourceName,
				SourceURL:   browserURL,
				SourceKey:   sourceKey,
				ExternalID:  extID,
				LastSeenAt:  nowISO,
			}

			n.maybeEnrich(ctx, &row)

			// The overlay may have introduced text the upstream record
			// never contained.
			if !n.filter.IsSafe(row.Title, row.Description) {
				n.log.Debug("row rejected after enrichment", "external_id", extID)
				n.reject(&stats, metrics.ReasonUnsafeAfterEnrich)

				continue
			}

			if row.Description == "" {
				row.Description = row.Title
			}

			rows = append(rows, row)
			stats.Rows++

			if n.met != nil {
				n.met.RecordRow()
			}

			if len(rows) >= n.limit {
				stats.EnrichCalls = n.enrichCalls

				return rows, stats
			}
		}
	}

	stats.EnrichCalls = n.enrichCalls

	return rows, stats
}

// maybeEnrich overlays source-page fields onto the row when the upstream
// description is too short to be useful. Enrichment fields win only when
// non-empty; the seed fields are never blanked.
func (n *Normalizer) maybeEnrich(ctx context.Context, row *models.CandidateRow) {
	if n.enricher == nil || row.SourceURL == "" {
		return
	}

	if len(row.Description) >= n.enrichment.MinDescriptionLen {
		return
	}

	if n.enrichCalls >= n.enrichment.MaxCalls {
		return
	}
	n.enrichCalls++

	res := n.enricher.Enrich(ctx, row.SourceURL)

	if res.Description != "" {
		row.Description = textutil.CleanText(res.Description, 0)
	}

	if res.OrganizerName != "" {
		row.SourceName = res.OrganizerName
	}

	if res.ImageURL != "" {
		row.ImagePath = res.ImageURL
	}

	if d := n.enrichment.GetDelay(); d > 0 {
		n.sleep(d)
	}
}

func (n *Normalizer) reject(stats *Stats, reason string) {
	stats.Rejected++

	if n.met != nil {
		n.met.RecordRejection(reason)
	}
}
