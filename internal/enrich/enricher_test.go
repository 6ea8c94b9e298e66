package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicimport/internal/logger"
)

func newTestEnricher() *Enricher {
	return NewEnricher(5*time.Second, logger.New("error"), nil)
}

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
}

func TestEnrichJSONLDEvent(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Event",
  "name": "March for Parks",
  "description": "<p>Join neighbors for a   community march.</p>",
  "organizer": {"@type": "Organization", "name": "Parks Alliance"},
  "image": "https://cdn.example.org/march.jpg"
}
</script>
<meta property="og:description" content="should not win">
</head><body></body></html>`

	srv := servePage(t, page)
	defer srv.Close()

	res := newTestEnricher().Enrich(context.Background(), srv.URL)

	if res.Description != "Join neighbors for a community march." {
		t.Errorf("description = %q", res.Description)
	}

	if res.OrganizerName != "Parks Alliance" {
		t.Errorf("organizer = %q", res.OrganizerName)
	}

	if res.ImageURL != "https://cdn.example.org/march.jpg" {
		t.Errorf("image = %q", res.ImageURL)
	}
}

func TestEnrichJSONLDGraphAndTypeList(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "WebPage", "name": "ignored"},
    {
      "@type": ["Thing", "SocialEvent"],
      "description": "Potluck on the green.",
      "organizer": [{"@type": "Organization", "legalName": "Green Commons Inc"}],
      "image": {"@type": "ImageObject", "url": "https://cdn.example.org/potluck.png"}
    }
  ]
}
</script>
</head><body></body></html>`

	srv := servePage(t, page)
	defer srv.Close()

	res := newTestEnricher().Enrich(context.Background(), srv.URL)

	if res.Description != "Potluck on the green." {
		t.Errorf("description = %q", res.Description)
	}

	if res.OrganizerName != "Green Commons Inc" {
		t.Errorf("organizer = %q", res.OrganizerName)
	}

	if res.ImageURL != "https://cdn.example.org/potluck.png" {
		t.Errorf("image = %q", res.ImageURL)
	}
}

func TestEnrichMetaFallback(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{"@type": "WebPage"}</script>
<meta property="og:description" content="  A longer canvass description.  ">
<meta property="og:image" content="https://cdn.example.org/canvass.jpg">
<meta property="og:site_name" content="Volunteer Hub">
</head><body></body></html>`

	srv := servePage(t, page)
	defer srv.Close()

	res := newTestEnricher().Enrich(context.Background(), srv.URL)

	if res.Description != "A longer canvass description." {
		t.Errorf("description = %q", res.Description)
	}

	if res.ImageURL != "https://cdn.example.org/canvass.jpg" {
		t.Errorf("image = %q", res.ImageURL)
	}

	if res.OrganizerName != "Volunteer Hub" {
		t.Errorf("organizer = %q", res.OrganizerName)
	}
}

func TestEnrichMetaNameDescriptionFallback(t *testing.T) {
	page := `<html><head>
<meta name="description" content="Plain meta description.">
</head><body></body></html>`

	srv := servePage(t, page)
	defer srv.Close()

	res := newTestEnricher().Enrich(context.Background(), srv.URL)

	if res.Description != "Plain meta description." {
		t.Errorf("description = %q", res.Description)
	}
}

func TestEnrichMalformedJSONLDIgnored(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{not json at all</script>
<meta property="og:description" content="fallback wins">
</head><body></body></html>`

	srv := servePage(t, page)
	defer srv.Close()

	res := newTestEnricher().Enrich(context.Background(), srv.URL)

	if res.Description != "fallback wins" {
		t.Errorf("description = %q", res.Description)
	}
}

func TestEnrichHTTPErrorYieldsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if res := newTestEnricher().Enrich(context.Background(), srv.URL); !res.IsZero() {
		t.Errorf("expected zero result, got %+v", res)
	}
}

func TestEnrichUnreachableHostYieldsZero(t *testing.T) {
	srv := servePage(t, "<html></html>")
	srv.Close()

	if res := newTestEnricher().Enrich(context.Background(), srv.URL); !res.IsZero() {
		t.Errorf("expected zero result, got %+v", res)
	}
}

func TestEnrichSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	newTestEnricher().Enrich(context.Background(), srv.URL)

	if gotUA != userAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}

	if gotLang != "en-US,en;q=0.9" {
		t.Errorf("Accept-Language = %q", gotLang)
	}
}

func TestEnrichEmptyURL(t *testing.T) {
	if res := newTestEnricher().Enrich(context.Background(), ""); !res.IsZero() {
		t.Errorf("expected zero result, got %+v", res)
	}
}
