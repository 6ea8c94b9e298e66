package mobilize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicimport/internal/config"
	"civicimport/internal/logger"
)

func testRetryPolicy() *config.RetryPolicy {
	return &config.RetryPolicy{MaxAttempts: 5, MaxDelaySec: 60, TimeoutSec: 5}
}

// newTestClient wires a client against a test server with a recording
// sleep func so backoff never actually waits.
func newTestClient(t *testing.T, srv *httptest.Server, retry *config.RetryPolicy) (*Client, *[]time.Duration) {
	t.Helper()

	c := NewClient(srv.URL, retry, 50, logger.New("error"), nil)

	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	return c, &slept
}

func TestFetchEvents_FirstRequestParams(t *testing.T) {
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"data": [], "next": null}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, testRetryPolicy())

	_, _, err := c.FetchEvents(context.Background(), Query{
		StartUnix:  1700000000,
		EndUnix:    1702419200,
		PerPage:    100,
		EventTypes: []string{"RALLY", "TOWN_HALL"},
	})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}

	if got := gotQuery["timeslot_start"]; len(got) != 1 || got[0] != "gte_1700000000" {
		t.Errorf("timeslot_start = %v", got)
	}

	if got := gotQuery["timeslot_end"]; len(got) != 1 || got[0] != "lt_1702419200" {
		t.Errorf("timeslot_end = %v", got)
	}

	if got := gotQuery["is_virtual"]; len(got) != 1 || got[0] != "false" {
		t.Errorf("is_virtual = %v (virtual events must be excluded by default)", got)
	}

	if got := gotQuery["event_types"]; len(got) != 2 || got[0] != "RALLY" || got[1] != "TOWN_HALL" {
		t.Errorf("event_types = %v", got)
	}

	if got := gotQuery["per_page"]; len(got) != 1 || got[0] != "100" {
		t.Errorf("per_page = %v", got)
	}

	if _, ok := gotQuery["page"]; ok {
		t.Error("first request must not carry page=")
	}
}

func TestFetchEvents_PaginationTerminatesOnEmptyPage(t *testing.T) {
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch requests {
		case 1:
			fmt.Fprint(w, `{"data": [{"id": 1, "title": "A", "timeslots": []}], "next": "/v1/events?cursor=p2"}`)
		case 2:
			fmt.Fprint(w, `{"data": [{"id": 2, "title": "B", "timeslots": []}], "next": "/v1/events?cursor=p3"}`)
		default:
			fmt.Fprint(w, `{"data": [], "next": "/v1/events?cursor=p4"}`)
		}
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, testRetryPolicy())

	events, stats, err := c.FetchEvents(context.Background(), Query{PerPage: 100})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}

	// N pages of events plus the terminating empty page.
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}

	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}

	if stats.Pages != 3 {
		t.Errorf("stats.Pages = %d, want 3", stats.Pages)
	}

	if stats.RateLimited {
		t.Error("stats.RateLimited = true, want false")
	}
}

func TestFetchEvents_StopsWhenNextAbsent(t *testing.T) {
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"data": [{"id": 1, "title": "A", "timeslots": []}], "next": null}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, testRetryPolicy())

	events, _, err := c.FetchEvents(context.Background(), Query{PerPage: 100})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}

	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}

	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
}

func TestFetchEvents_PageCeiling(t *testing.T) {
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// Misbehaving upstream: always promises another page.
		fmt.Fprintf(w, `{"data": [{"id": %d, "title": "A", "timeslots": []}], "next": "/v1/events?cursor=x"}`, requests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testRetryPolicy(), 4, logger.New("error"), nil)
	c.sleep = func(time.Duration) {}

	events, stats, err := c.FetchEvents(context.Background(), Query{PerPage: 100})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}

	if requests != 4 {
		t.Errorf("requests = %d, want 4 (page ceiling)", requests)
	}

	if stats.Pages != 4 {
		t.Errorf("stats.Pages = %d, want 4", stats.Pages)
	}

	if len(events) != 4 {
		t.Errorf("events = %d, want 4", len(events))
	}
}

func TestFetchEvents_BackoffOn429(t *testing.T) {
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data": [{"id": 1, "title": "A", "timeslots": []}], "next": null}`)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv, testRetryPolicy())

	events, _, err := c.FetchEvents(context.Background(), Query{PerPage: 100})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}

	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("backoff sleeps = %v, want %v", *slept, want)
	}

	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("sleep[%d] = %v, want %v (doubling)", i, (*slept)[i], d)
		}
	}
}

func TestFetchEvents_RateLimitExhaustionIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv, testRetryPolicy())

	events, stats, err := c.FetchEvents(context.Background(), Query{PerPage: 100})
	if err != nil {
		t.Fatalf("rate limit exhaustion must be soft, got error: %v", err)
	}

	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}

	if !stats.RateLimited {
		t.Error("stats.RateLimited = false, want true")
	}

	// No sleep after the final attempt.
	if len(*slept) != 4 {
		t.Errorf("backoff sleeps = %d, want 4", len(*slept))
	}
}

func TestFetchEvents_ServerErrorExhaustionIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, testRetryPolicy())

	_, _, err := c.FetchEvents(context.Background(), Query{PerPage: 100})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
}

func TestFetchEvents_ClientErrorIsFatalWithoutRetry(t *testing.T) {
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv, testRetryPolicy())

	_, _, err := c.FetchEvents(context.Background(), Query{PerPage: 100})
	if !errors.Is(err, ErrAPIStatus) {
		t.Fatalf("err = %v, want ErrAPIStatus", err)
	}

	if requests != 1 {
		t.Errorf("requests = %d, want 1 (no retry on 4xx)", requests)
	}

	if len(*slept) != 0 {
		t.Errorf("sleeps = %d, want 0", len(*slept))
	}
}

func TestResolveNext(t *testing.T) {
	c := NewClient("https://api.mobilize.us", testRetryPolicy(), 50, logger.New("error"), nil)

	if got := c.resolveNext("/v1/events?cursor=abc"); got != "https://api.mobilize.us/v1/events?cursor=abc" {
		t.Errorf("relative next = %q", got)
	}

	abs := "https://api.mobilize.us/v1/events?cursor=xyz"
	if got := c.resolveNext(abs); got != abs {
		t.Errorf("absolute next = %q", got)
	}
}
