// Package mobilize fetches upcoming events from the Mobilize public events
// API. Pagination follows the server-supplied next URL; the upstream
// rejects page= and cursor= parameters, so the first request carries the
// filter querystring and every later request replays the next URL verbatim.
package mobilize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"civicimport/internal/config"
	"civicimport/internal/logger"
	"civicimport/internal/metrics"
	"civicimport/internal/models"
)

// Fetch errors.
var (
	ErrAPIStatus        = errors.New("events api error")
	ErrRetriesExhausted = errors.New("events api failed after retries")
)

// Use a browser-like UA to avoid bot blocks.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 8 << 20

// Query describes one fetch window against the events listing.
type Query struct {
	StartUnix      int64
	EndUnix        int64
	PerPage        int
	IncludeVirtual bool
	EventTypes     []string
}

// FetchStats reports how a fetch ended.
type FetchStats struct {
	Pages       int
	RateLimited bool
}

// page is the upstream response envelope.
type page struct {
	Data []models.RawEvent `json:"data"`
	Next string            `json:"next"`
}

// Client is the paginated events API fetcher. It holds no mutable state
// across calls; every FetchEvents pass is independent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      *config.RetryPolicy
	maxPages   int
	log        *logger.Logger
	met        *metrics.Metrics

	// sleep is swapped in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

// NewClient creates a fetcher for the given API base URL.
func NewClient(baseURL string, retry *config.RetryPolicy, maxPages int, log *logger.Logger, met *metrics.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: retry.GetTimeout(),
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		retry:    retry,
		maxPages: maxPages,
		log:      log,
		met:      met,
		sleep:    time.Sleep,
	}
}

// FetchEvents retrieves every raw event in the query window, following
// pagination until an empty page, an absent next URL, or the page ceiling.
//
// Rate-limit exhaustion is a soft failure: the events accumulated so far
// are returned with Stats.RateLimited set and no error, so a throttled run
// degrades to a smaller (possibly empty) import instead of failing the job.
// Retry exhaustion on server errors, and any other 4xx, are fatal.
func (c *Client) FetchEvents(ctx context.Context, q Query) ([]models.RawEvent, FetchStats, error) {
	var (
		out   []models.RawEvent
		stats FetchStats
	)

	nextURL := c.baseURL + "/v1/events?" + c.firstPageQuery(q).Encode()

	for nextURL != "" && stats.Pages < c.maxPages {
		stats.Pages++

		pg, err := c.fetchPage(ctx, nextURL)
		if err != nil {
			if errors.Is(err, errRateLimited) {
				stats.RateLimited = true
				c.log.Warn("rate limit retries exhausted, returning partial results",
					"pages", stats.Pages, "events", len(out))

				return out, stats, nil
			}

			return nil, stats, err
		}

		if c.met != nil {
			c.met.RecordPage()
		}

		out = append(out, pg.Data...)
		c.log.Debug("fetched events page", "page", stats.Pages, "events", len(pg.Data), "next", pg.Next != "")

		if len(pg.Data) == 0 || pg.Next == "" {
			break
		}

		nextURL = c.resolveNext(pg.Next)
	}

	return out, stats, nil
}

// errRateLimited marks retry exhaustion where the last response was a 429.
// It never escapes FetchEvents.
var errRateLimited = errors.New("rate limited")

// fetchPage issues one request with bounded exponential backoff.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (*page, error) {
	var (
		lastStatus int
		lastBody   string
		lastErr    error
	)

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, c.retry.MaxAttempts, err)
			lastStatus = 0

			c.recordRequest(0)
			c.backoff(attempt)

			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()

		lastStatus = resp.StatusCode
		c.recordRequest(resp.StatusCode)

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastBody = snippet(body)
			lastErr = fmt.Errorf("%w: %d", ErrAPIStatus, resp.StatusCode)

			c.log.Warn("upstream returned retryable status",
				"status", resp.StatusCode, "attempt", attempt, "max_attempts", c.retry.MaxAttempts)
			c.backoff(attempt)

			continue
		}

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: %d: %s", ErrAPIStatus, resp.StatusCode, snippet(body))
		}

		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", readErr)

			c.backoff(attempt)

			continue
		}

		var pg page
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("failed to parse events page: %w", err)
		}

		return &pg, nil
	}

	if lastStatus == http.StatusTooManyRequests {
		return nil, errRateLimited
	}

	return nil, fmt.Errorf("%w: last status %d: %s: %v", ErrRetriesExhausted, lastStatus, lastBody, lastErr)
}

// backoff sleeps 2^attempt seconds before the next attempt, except after
// the final one.
func (c *Client) backoff(attempt int) {
	if attempt >= c.retry.MaxAttempts {
		return
	}

	c.sleep(c.retry.GetRetryDelay(attempt))
}

// firstPageQuery builds the filter querystring for the first request only.
// Next URLs already carry their own querystring.
func (c *Client) firstPageQuery(q Query) url.Values {
	params := url.Values{}
	params.Set("timeslot_start", "gte_"+strconv.FormatInt(q.StartUnix, 10))
	params.Set("timeslot_end", "lt_"+strconv.FormatInt(q.EndUnix, 10))

	if !q.IncludeVirtual {
		params.Set("is_virtual", "false")
	}

	for _, et := range q.EventTypes {
		params.Add("event_types", et)
	}

	params.Set("per_page", strconv.Itoa(q.PerPage))

	return params
}

// resolveNext makes a relative next path absolute against the API host.
func (c *Client) resolveNext(next string) string {
	if strings.HasPrefix(next, "/") {
		base, err := url.Parse(c.baseURL)
		if err != nil {
			return next
		}

		return base.Scheme + "://" + base.Host + next
	}

	return next
}

func (c *Client) recordRequest(code int) {
	if c.met != nil {
		c.met.RecordRequest("mobilize", code)
	}
}

// snippet trims an error body for diagnostics.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 700 {
		s = s[:700]
	}

	return s
}
