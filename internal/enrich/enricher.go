// Package enrich recovers description, organizer and image fields from an
// event's own source page. Extraction is best-effort with a strict
// precedence: embedded JSON-LD event markup first, OpenGraph/meta tags as
// the fallback. A failure of any kind yields an empty result, never an
// error; the pipeline must not depend on arbitrary third-party pages.
package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"civicimport/internal/logger"
	"civicimport/internal/metrics"
	"civicimport/internal/models"
	"civicimport/pkg/textutil"
)

// Use a browser-like UA to avoid bot blocks.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"

// Enricher fetches and parses source pages.
type Enricher struct {
	httpClient *http.Client
	log        *logger.Logger
	met        *metrics.Metrics
}

// NewEnricher creates an enricher with the given per-page timeout.
func NewEnricher(timeout time.Duration, log *logger.Logger, met *metrics.Metrics) *Enricher {
	return &Enricher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
		met: met,
	}
}

// Enrich fetches url and extracts whatever event fields the page exposes.
// The zero result means the page yielded nothing usable.
func (e *Enricher) Enrich(ctx context.Context, url string) models.EnrichmentResult {
	if url == "" {
		return models.EnrichmentResult{}
	}

	if e.met != nil {
		e.met.RecordEnrichCall()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return models.EnrichmentResult{}
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.log.Debug("enrichment fetch failed", "url", url, "error", err)
		e.recordRequest(0)

		return models.EnrichmentResult{}
	}
	defer resp.Body.Close()

	e.recordRequest(resp.StatusCode)

	if resp.StatusCode >= 400 {
		return models.EnrichmentResult{}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		e.log.Debug("enrichment parse failed", "url", url, "error", err)

		return models.EnrichmentResult{}
	}

	if res, ok := e.fromJSONLD(doc); ok {
		if e.met != nil {
			e.met.RecordEnrichHit(metrics.TierJSONLD)
		}

		return res
	}

	res := e.fromMetaTags(doc)
	if !res.IsZero() && e.met != nil {
		e.met.RecordEnrichHit(metrics.TierOpenGraph)
	}

	return res
}

// fromJSONLD extracts the first embedded event block, if any. Presence of
// a block wins over meta tags even when some of its fields are empty.
func (e *Enricher) fromJSONLD(doc *goquery.Document) (models.EnrichmentResult, bool) {
	var events []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var obj any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return
		}

		collectEventNodes(obj, 0, &events)
	})

	if len(events) == 0 {
		return models.EnrichmentResult{}, false
	}

	ev := events[0]

	res := models.EnrichmentResult{
		OrganizerName: organizerName(ev["organizer"]),
		ImageURL:      imageURL(ev["image"]),
	}

	if desc, ok := ev["description"].(string); ok {
		res.Description = textutil.CleanText(textutil.StripHTML(desc), 0)
	}

	return res, true
}

// fromMetaTags is the OpenGraph/meta fallback tier.
func (e *Enricher) fromMetaTags(doc *goquery.Document) models.EnrichmentResult {
	var res models.EnrichmentResult

	if v := metaContent(doc, `meta[property="og:description"]`); v != "" {
		res.Description = textutil.CleanText(v, 0)
	} else if v := metaContent(doc, `meta[name="description"]`); v != "" {
		res.Description = textutil.CleanText(v, 0)
	}

	res.ImageURL = metaContent(doc, `meta[property="og:image"]`)
	res.OrganizerName = metaContent(doc, `meta[property="og:site_name"]`)

	return res
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func (e *Enricher) recordRequest(code int) {
	if e.met != nil {
		e.met.RecordRequest("enrich", code)
	}
}
