// Package partner implements source adapters for credentialed partner APIs.
package partner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/normalize"
	"ListingsAggregator/internal/source"
)

const (
	adzunaDefaultBaseURL = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize       = 50
	adzunaMaxPages       = 3
	httpTimeout          = 15 * time.Second
	maxErrorBody         = 1024
)

var adzunaCurrencies = map[string]string{
	"at": "EUR", "au": "AUD", "be": "EUR", "br": "BRL", "ca": "CAD", "ch": "CHF",
	"de": "EUR", "es": "EUR", "fr": "EUR", "gb": "GBP", "in": "INR", "it": "EUR",
	"mx": "MXN", "nl": "EUR", "nz": "NZD", "pl": "PLN", "sg": "SGD", "us": "USD", "za": "ZAR",
}

// AdzunaOptions configures the Adzuna adapter.
type AdzunaOptions struct {
	BaseURL  string
	AppID    string
	AppKey   string
	Country  string
	MaxPages int
	Client   *http.Client
	Logger   *slog.Logger
}

// AdzunaAdapter maps the Adzuna search API onto RawListings. Without an app
// id/key pair it returns no listings and no error.
type AdzunaAdapter struct {
	name     domain.Source
	baseURL  string
	appID    string
	appKey   string
	country  string
	maxPages int
	client   *http.Client
	logger   *slog.Logger
}

var _ source.Adapter = (*AdzunaAdapter)(nil)

// NewAdzunaAdapter constructs an adapter with a shared HTTP client.
func NewAdzunaAdapter(name domain.Source, opts AdzunaOptions) *AdzunaAdapter {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = adzunaDefaultBaseURL
	}
	country := strings.ToLower(strings.TrimSpace(opts.Country))
	if country == "" {
		country = "gb"
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = adzunaMaxPages
	}
	return &AdzunaAdapter{
		name:     name,
		baseURL:  base,
		appID:    opts.AppID,
		appKey:   opts.AppKey,
		country:  country,
		maxPages: maxPages,
		client:   client,
		logger:   opts.Logger,
	}
}

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaLabel    `json:"company"`
	Location     adzunaLocation `json:"location"`
	Category     adzunaCategory `json:"category"`
	SalaryMin    *float64       `json:"salary_min"`
	SalaryMax    *float64       `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaLabel struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string   `json:"display_name"`
	Area        []string `json:"area"`
}

type adzunaCategory struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

// Name identifies the source inside the registry.
func (a *AdzunaAdapter) Name() domain.Source {
	return a.name
}

// Fetch pages through search results until a short page or the page cap.
// A failed later page ends paging and keeps the pages already read; a failed
// first page or an expired context fails the fetch.
func (a *AdzunaAdapter) Fetch(ctx context.Context, keywords, location string) ([]domain.RawListing, error) {
	if a.appID == "" || a.appKey == "" {
		if a.logger != nil {
			a.logger.Warn("partner credentials missing, source disabled", "source", a.name)
		}
		return nil, nil
	}

	var results []domain.RawListing
	for page := 1; page <= a.maxPages; page++ {
		batch, err := a.fetchPage(ctx, keywords, location, page)
		if err != nil {
			if page == 1 || ctx.Err() != nil {
				return nil, fmt.Errorf("page %d: %w", page, err)
			}
			if a.logger != nil {
				a.logger.Warn("partner paging stopped early", "source", a.name, "page", page, "kept", len(results), "error", err)
			}
			break
		}
		results = append(results, batch...)
		if len(batch) < adzunaPageSize {
			break
		}
	}
	return results, nil
}

func (a *AdzunaAdapter) fetchPage(ctx context.Context, keywords, location string, page int) ([]domain.RawListing, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.baseURL, url.PathEscape(a.country), page)

	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("what", keywords)
	if location != "" {
		params.Set("where", location)
	}
	params.Set("sort_by", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("adzuna returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	listings := make([]domain.RawListing, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		raw, ok := a.toRawListing(r)
		if !ok {
			continue
		}
		listings = append(listings, raw)
	}
	return listings, nil
}

func (a *AdzunaAdapter) toRawListing(r adzunaResult) (domain.RawListing, bool) {
	externalID := strings.TrimSpace(r.ID)
	if externalID == "" && r.RedirectURL != "" {
		externalID = normalize.ExternalID(r.RedirectURL)
	}
	if externalID == "" || strings.TrimSpace(r.Title) == "" {
		return domain.RawListing{}, false
	}

	raw := domain.RawListing{
		Source:       a.name,
		ExternalID:   externalID,
		URL:          r.RedirectURL,
		Title:        r.Title,
		Organization: r.Company.DisplayName,
		Location:     r.Location.DisplayName,
		Description:  r.Description,
		Kind:         contractKind(r.ContractTime, r.ContractType),
		Confidence:   domain.ConfidenceHigh,
	}
	if normalize.KindFromText(r.Title) == domain.KindInternship {
		raw.Kind = domain.KindInternship
	}
	if r.SalaryMin != nil || r.SalaryMax != nil {
		raw.Compensation = domain.Compensation{
			Min:      r.SalaryMin,
			Max:      r.SalaryMax,
			Currency: adzunaCurrencies[a.country],
			Period:   "year",
		}
	}
	if r.Category.Label != "" {
		raw.Categories = []string{r.Category.Label}
	}
	if created, err := time.Parse(time.RFC3339, r.Created); err == nil {
		raw.PostedAt = &created
	}
	return raw, true
}

func contractKind(contractTime, contractType string) domain.Kind {
	switch {
	case contractType == "contract":
		return domain.KindContract
	case contractTime == "part_time":
		return domain.KindPartTime
	case contractTime == "full_time" || contractType == "permanent":
		return domain.KindFullTime
	default:
		return ""
	}
}
