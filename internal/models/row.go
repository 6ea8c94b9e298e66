package models

import (
	"fmt"
	"time"
)

// Row status values.
const (
	StatusActive = "active"
)

// CandidateRow is one normalized, not-yet-persisted output record for a
// single event occurrence (event x timeslot). It is assembled by the
// normalizer, optionally overlaid once with an EnrichmentResult, and is
// immutable afterwards.
type CandidateRow struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	EventTime             string `json:"event_time"`
	ImagePath             string `json:"image_path"`
	Status                string `json:"status"`
	EventTypes            string `json:"event_types"`
	IsAccessible          string `json:"is_accessible"`
	AccessibilityFeatures string `json:"accessibility_features"`
	SourceType            string `json:"source_type"`
	SourceName            string `json:"source_name"`
	SourceURL             string `json:"source_url"`
	SourceKey             string `json:"source_key"`
	ExternalID            string `json:"external_id"`
	LastSeenAt            string `json:"last_seen_at"`
}

// ExternalID builds the deterministic composite key for an event/timeslot
// pair. It is the sole idempotency anchor downstream: the upsert conflict
// target is (source_key, external_id).
func ExternalID(eventID, slotID, startUnix int64) string {
	return fmt.Sprintf("%d:%d:%d", eventID, slotID, startUnix)
}

// ISOFromUnix formats a UNIX timestamp as ISO-8601 UTC, the event_time
// representation used in both the CSV and the upsert payload.
func ISOFromUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// Field returns the value for one allowlisted column name. Unknown names
// yield "", which keeps sinks total over caller-supplied field lists.
func (r *CandidateRow) Field(name string) string {
	switch name {
	case "title":
		return r.Title
	case "description":
		return r.Description
	case "city":
		return r.City
	case "state":
		return r.State
	case "event_time":
		return r.EventTime
	case "image_path":
		return r.ImagePath
	case "status":
		return r.Status
	case "event_types":
		return r.EventTypes
	case "is_accessible":
		return r.IsAccessible
	case "accessibility_features":
		return r.AccessibilityFeatures
	case "source_type":
		return r.SourceType
	case "source_name":
		return r.SourceName
	case "source_url":
		return r.SourceURL
	case "source_key":
		return r.SourceKey
	case "external_id":
		return r.ExternalID
	case "last_seen_at":
		return r.LastSeenAt
	}

	return ""
}
