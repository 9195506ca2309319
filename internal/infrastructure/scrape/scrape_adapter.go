// Package scrape implements the rendered-page source adapter.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/normalize"
	"ListingsAggregator/internal/source"
)

const (
	defaultSessionTimeout = 60 * time.Second
	postedLayout          = "2006-01-02"
)

// Renderer turns a search URL into the page HTML the selectors run against.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Selectors locate listing fields inside a rendered search page.
type Selectors struct {
	Card          string
	Title         string
	Organization  string
	Location      string
	Link          string
	Posted        string
	IDAttr        string
	KeywordsParam string
	LocationParam string
}

// DefaultSelectors match the public LinkedIn guest job search markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:          ".base-card",
		Title:         ".base-search-card__title",
		Organization:  ".base-search-card__subtitle",
		Location:      ".job-search-card__location",
		Link:          "a.base-card__full-link",
		Posted:        "time",
		IDAttr:        "data-entity-urn",
		KeywordsParam: "keywords",
		LocationParam: "location",
	}
}

// SelectorsFromOptions overrides defaults with source options such as
// "cardSelector" or "keywordsParam".
func SelectorsFromOptions(opts map[string]string) Selectors {
	sel := DefaultSelectors()
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(opts[key]); v != "" {
			*dst = v
		}
	}
	set(&sel.Card, "cardSelector")
	set(&sel.Title, "titleSelector")
	set(&sel.Organization, "organizationSelector")
	set(&sel.Location, "locationSelector")
	set(&sel.Link, "linkSelector")
	set(&sel.Posted, "postedSelector")
	set(&sel.IDAttr, "idAttr")
	set(&sel.KeywordsParam, "keywordsParam")
	set(&sel.LocationParam, "locationParam")
	return sel
}

// Options configures a scrape adapter.
type Options struct {
	BaseURL   string
	Renderer  Renderer
	Selectors Selectors
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Adapter renders a search page and reads listing cards from it.
type Adapter struct {
	name      domain.Source
	baseURL   string
	renderer  Renderer
	selectors Selectors
	timeout   time.Duration
	logger    *slog.Logger
}

var _ source.Adapter = (*Adapter)(nil)

// NewAdapter builds a scrape adapter. A zero Selectors value selects the defaults.
func NewAdapter(name domain.Source, opts Options) *Adapter {
	sel := opts.Selectors
	if sel.Card == "" {
		sel = DefaultSelectors()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}
	return &Adapter{
		name:      name,
		baseURL:   opts.BaseURL,
		renderer:  opts.Renderer,
		selectors: sel,
		timeout:   timeout,
		logger:    opts.Logger,
	}
}

// Name identifies the source inside the registry.
func (a *Adapter) Name() domain.Source {
	return a.name
}

// Fetch renders the search page for one query and extracts every card.
func (a *Adapter) Fetch(ctx context.Context, keywords, location string) ([]domain.RawListing, error) {
	if a.renderer == nil {
		return nil, fmt.Errorf("source %s has no renderer", a.name)
	}

	pageURL, err := a.searchURL(keywords, location)
	if err != nil {
		return nil, err
	}

	sessionCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	html, err := a.renderer.Render(sessionCtx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	cards := doc.Find(a.selectors.Card)
	results := make([]domain.RawListing, 0, cards.Length())
	base, _ := url.Parse(pageURL)
	cards.Each(func(_ int, card *goquery.Selection) {
		raw, ok := a.toRawListing(card, base)
		if !ok {
			a.debug("skip card", "title", raw.Title)
			return
		}
		results = append(results, raw)
	})

	a.debug("page scraped", "url", pageURL, "cards", cards.Length(), "listings", len(results))
	return results, nil
}

func (a *Adapter) searchURL(keywords, location string) (string, error) {
	parsed, err := url.Parse(a.baseURL)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid search url %q", a.baseURL)
	}
	query := parsed.Query()
	query.Set(a.selectors.KeywordsParam, keywords)
	if location != "" {
		query.Set(a.selectors.LocationParam, location)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (a *Adapter) toRawListing(card *goquery.Selection, base *url.URL) (domain.RawListing, bool) {
	raw := domain.RawListing{
		Source:       a.name,
		Title:        text(card, a.selectors.Title),
		Organization: text(card, a.selectors.Organization),
		Location:     text(card, a.selectors.Location),
		Confidence:   domain.ConfidenceHigh,
	}
	if raw.Title == "" {
		return raw, false
	}

	if href, ok := card.Find(a.selectors.Link).First().Attr("href"); ok {
		raw.URL = resolve(base, href)
	}
	if urn, ok := card.Attr(a.selectors.IDAttr); ok {
		raw.ExternalID = nativeID(urn)
	}
	if raw.ExternalID == "" {
		if raw.URL == "" {
			return raw, false
		}
		raw.ExternalID = normalize.ExternalID(raw.URL)
	}

	if raw.Organization == "" {
		raw.Confidence = domain.ConfidenceLow
		raw.Reasons = append(raw.Reasons, "organization selector matched nothing")
	}
	if raw.Location == "" {
		raw.Confidence = domain.ConfidenceLow
		raw.Reasons = append(raw.Reasons, "location selector matched nothing")
	}

	if datetime, ok := card.Find(a.selectors.Posted).First().Attr("datetime"); ok {
		if posted, err := time.Parse(postedLayout, strings.TrimSpace(datetime)); err == nil {
			raw.PostedAt = &posted
		}
	}
	return raw, true
}

// nativeID keeps the last segment of URN-style ids ("urn:li:jobPosting:123").
func nativeID(urn string) string {
	urn = strings.TrimSpace(urn)
	if idx := strings.LastIndex(urn, ":"); idx >= 0 {
		return urn[idx+1:]
	}
	return urn
}

// resolve makes relative card links absolute against the search page.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func text(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return normalize.Text(sel.Find(selector).First().Text())
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
