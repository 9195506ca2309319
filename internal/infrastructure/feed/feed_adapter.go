// Package feed implements the syndication-feed source adapter.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/normalize"
	"ListingsAggregator/internal/source"
)

const defaultUserAgent = "ListingsAggregator/1.0"

// Options configures a feed adapter.
type Options struct {
	BaseURL   string
	Client    *http.Client
	Extractor normalize.FieldExtractor
	Logger    *slog.Logger
}

// Adapter reads a query-parameterized RSS/Atom feed whose entry titles encode
// "Title at Company - Location".
type Adapter struct {
	name      domain.Source
	baseURL   string
	client    *http.Client
	extractor normalize.FieldExtractor
	logger    *slog.Logger
}

var _ source.Adapter = (*Adapter)(nil)

// NewAdapter wires an HTTP client and extractor; both default when nil.
func NewAdapter(name domain.Source, opts Options) *Adapter {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = normalize.DelimiterExtractor{}
	}
	return &Adapter{
		name:      name,
		baseURL:   opts.BaseURL,
		client:    client,
		extractor: extractor,
		logger:    opts.Logger,
	}
}

// Name identifies the source inside the registry.
func (a *Adapter) Name() domain.Source {
	return a.name
}

// Fetch downloads and parses the feed for one query. Entries that cannot be
// mapped are skipped individually.
func (a *Adapter) Fetch(ctx context.Context, keywords, location string) ([]domain.RawListing, error) {
	feedURL, err := BuildURL(a.baseURL, keywords, location)
	if err != nil {
		return nil, err
	}

	parsed, err := a.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RawListing, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		raw, ok := a.toRawListing(item)
		if !ok {
			a.debug("skip feed entry", "title", item.Title, "guid", item.GUID)
			continue
		}
		results = append(results, raw)
	}

	a.debug("feed parsed", "url", feedURL, "entries", len(parsed.Items), "listings", len(results))
	return results, nil
}

// BuildURL appends the URL-encoded q and l parameters to the feed base URL.
func BuildURL(base, keywords, location string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid feed url %q", base)
	}

	query := parsed.Query()
	query.Set("q", keywords)
	query.Set("l", location)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (a *Adapter) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, nil
}

func (a *Adapter) toRawListing(item *gofeed.Item) (domain.RawListing, bool) {
	if item == nil || strings.TrimSpace(item.Title) == "" {
		return domain.RawListing{}, false
	}

	link := strings.TrimSpace(item.Link)
	guid := strings.TrimSpace(item.GUID)
	if link == "" && normalize.LooksLikeURL(guid) {
		link = guid
	}

	var externalID string
	switch {
	case guid != "" && !normalize.LooksLikeURL(guid):
		externalID = guid
	case link != "":
		externalID = normalize.ExternalID(link)
	default:
		return domain.RawListing{}, false
	}

	fields := a.extractor.Extract(item.Title)
	description := item.Description
	if description == "" {
		description = item.Content
	}

	return domain.RawListing{
		Source:       a.name,
		ExternalID:   externalID,
		URL:          link,
		Title:        fields.Title,
		Organization: fields.Organization,
		Location:     fields.Location,
		Description:  plainText(description),
		Categories:   item.Categories,
		PostedAt:     item.PublishedParsed,
		Confidence:   fields.Confidence,
		Reasons:      fields.Reasons,
	}, true
}

// plainText strips markup from feed descriptions, which are usually HTML fragments.
func plainText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
