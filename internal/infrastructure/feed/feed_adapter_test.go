package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/normalize"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Jobs</title>
    <item>
      <title>Software Engineer at Acme - Remote</title>
      <link>https://jobs.example.com/view/1?utm_source=rss</link>
      <guid isPermaLink="false">job-0001</guid>
      <description><![CDATA[<p>Build <b>Go</b> services.</p>]]></description>
      <pubDate>Mon, 06 Oct 2025 09:00:00 +0000</pubDate>
      <category>Engineering</category>
    </item>
    <item>
      <title>Backend Developer</title>
      <link>https://jobs.example.com/view/2</link>
    </item>
    <item>
      <title></title>
      <link>https://jobs.example.com/view/3</link>
    </item>
    <item>
      <title>Opaque at Nowhere - Paris</title>
    </item>
  </channel>
</rss>`

func TestBuildURLEncodesParameters(t *testing.T) {
	t.Parallel()

	got, err := BuildURL("https://feeds.example.org/rss?sort=date", "go & rust", "New York, NY")
	if err != nil {
		t.Fatalf("BuildURL: %v", err)
	}

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	q := parsed.Query()
	if q.Get("q") != "go & rust" || q.Get("l") != "New York, NY" || q.Get("sort") != "date" {
		t.Fatalf("unexpected query %v", q)
	}
	if parsed.RawQuery != "l=New+York%2C+NY&q=go+%26+rust&sort=date" {
		t.Fatalf("parameters not encoded: %s", parsed.RawQuery)
	}

	if _, err := BuildURL("not a url", "a", "b"); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}

func TestAdapterFetch(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	adapter := NewAdapter(domain.SourceIndeed, Options{BaseURL: server.URL + "/rss", Client: server.Client()})
	listings, err := adapter.Fetch(context.Background(), "software engineer", "Remote")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotQuery.Get("q") != "software engineer" || gotQuery.Get("l") != "Remote" {
		t.Fatalf("unexpected upstream query %v", gotQuery)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d: %+v", len(listings), listings)
	}

	first := listings[0]
	if first.Title != "Software Engineer" || first.Organization != "Acme" || first.Location != "Remote" {
		t.Fatalf("unexpected extraction %+v", first)
	}
	if first.ExternalID != "job-0001" {
		t.Fatalf("expected native guid, got %s", first.ExternalID)
	}
	if first.Description != "Build Go services." {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if first.Source != domain.SourceIndeed || first.PostedAt == nil {
		t.Fatalf("missing source or posted date: %+v", first)
	}
	if first.Confidence != domain.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", first.Confidence)
	}

	second := listings[1]
	if second.Organization != normalize.DefaultOrganization || second.Location != normalize.DefaultLocation {
		t.Fatalf("expected fallback fields, got %+v", second)
	}
	if second.Confidence != domain.ConfidenceLow || len(second.Reasons) == 0 {
		t.Fatalf("expected low confidence with reasons, got %+v", second)
	}
	if second.ExternalID != normalize.ExternalID("https://jobs.example.com/view/2") {
		t.Fatalf("expected synthesized id, got %s", second.ExternalID)
	}
}

func TestAdapterFetchUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := NewAdapter(domain.SourceIndeed, Options{BaseURL: server.URL, Client: server.Client()})
	if _, err := adapter.Fetch(context.Background(), "go", "Paris"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestAdapterFetchMalformedFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not xml"))
	}))
	defer server.Close()

	adapter := NewAdapter(domain.SourceIndeed, Options{BaseURL: server.URL, Client: server.Client()})
	if _, err := adapter.Fetch(context.Background(), "go", "Paris"); err == nil {
		t.Fatal("expected parse error")
	}
}
