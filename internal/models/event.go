// Package models defines data structures shared by the importer pipeline.
package models

// RawEvent is one upstream event record as returned by the events API.
// It exists only for the duration of a single pipeline pass.
type RawEvent struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	BrowserURL  string     `json:"browser_url"`
	EventType   string     `json:"event_type"`
	Sponsor     *Sponsor   `json:"sponsor"`
	Location    *Location  `json:"location"`
	Timeslots   []TimeSlot `json:"timeslots"`
}

// Sponsor is the organization hosting an upstream event.
type Sponsor struct {
	Name string `json:"name"`
}

// Location is the upstream event venue.
type Location struct {
	Locality string `json:"locality"`
	Region   string `json:"region"`
}

// TimeSlot is a single occurrence of an upstream event. EndDate may be
// absent; an occurrence without a StartDate produces no row.
type TimeSlot struct {
	ID        int64 `json:"id"`
	StartDate int64 `json:"start_date"`
	EndDate   int64 `json:"end_date,omitempty"`
}

// SponsorName returns the sponsor name, or "" when the event has none.
func (e *RawEvent) SponsorName() string {
	if e.Sponsor == nil {
		return ""
	}

	return e.Sponsor.Name
}

// City returns the location locality, or "" when the event has no location.
func (e *RawEvent) City() string {
	if e.Location == nil {
		return ""
	}

	return e.Location.Locality
}

// State returns the location region, or "" when the event has no location.
func (e *RawEvent) State() string {
	if e.Location == nil {
		return ""
	}

	return e.Location.Region
}
