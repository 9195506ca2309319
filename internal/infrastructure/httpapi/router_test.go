package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/infrastructure/metrics"
	"ListingsAggregator/internal/infrastructure/review"
	"ListingsAggregator/internal/infrastructure/storage"
	"ListingsAggregator/internal/ports"
	"ListingsAggregator/internal/usecase"
)

type fakeRunner struct {
	gotKeywords string
	gotLocation string
	hadDeadline bool
	err         error
}

func (f *fakeRunner) Run(ctx context.Context, keywords, location string) (usecase.RunReport, error) {
	f.gotKeywords, f.gotLocation = keywords, location
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return usecase.RunReport{}, f.err
	}
	return usecase.RunReport{Keywords: keywords, Location: location, Fetched: 3}, nil
}

type testEnv struct {
	handler http.Handler
	repo    *storage.MemoryRepository
	runner  *fakeRunner
	queue   *review.MemoryQueue
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	repo := storage.NewMemoryRepository()
	runner := &fakeRunner{}
	queue := review.NewMemoryQueue()
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	handler := NewRouter(Deps{
		Listings:         usecase.NewQueryService(repo),
		Pipeline:         runner,
		Reaper:           usecase.NewReaper(repo, recorder, nil),
		Reviews:          queue,
		Gatherer:         reg,
		AggregateTimeout: time.Minute,
		RetentionDays:    30,
	})
	return testEnv{handler: handler, repo: repo, runner: runner, queue: queue}
}

func (e testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestListListingsPaginates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 45; i++ {
		env.repo.Put(domain.Listing{
			RawListing: domain.RawListing{
				Source:     domain.SourceIndeed,
				ExternalID: fmt.Sprintf("job-%d", i),
				Title:      "Go Engineer",
				Kind:       domain.KindFullTime,
				Remote:     domain.RemoteRemote,
			},
			Status:    domain.StatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/listings?search=go&kind=full-time&page=3&limit=20", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var page domain.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Listings) != 5 || page.Pagination.Total != 45 || page.Pagination.Pages != 3 {
		t.Fatalf("unexpected page len=%d %+v", len(page.Listings), page.Pagination)
	}
}

func TestListListingsClampsLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/listings?limit=150", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var page domain.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Pagination.Limit != domain.MaxPageLimit {
		t.Fatalf("limit = %d, want %d", page.Pagination.Limit, domain.MaxPageLimit)
	}
}

func TestGetListing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.repo.Put(domain.Listing{
		RawListing: domain.RawListing{Source: domain.SourceLinkedIn, ExternalID: "3712", Title: "Data Engineer"},
		Status:     domain.StatusActive,
	})

	rec := env.do(t, http.MethodGet, "/api/v1/listings/linkedin/3712", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var listing domain.Listing
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil || listing.Title != "Data Engineer" {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/listings/linkedin/9999", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing listing: status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/listings/internal/1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("internal key: status = %d, want 400", rec.Code)
	}
}

func TestListListingsRejectsBadParams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, target := range []string{
		"/api/v1/listings?kind=gig",
		"/api/v1/listings?remote=orbit",
		"/api/v1/listings?page=abc",
		"/api/v1/listings?limit=-1",
	} {
		rec := env.do(t, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == "" {
			t.Errorf("%s: missing error body: %s", target, rec.Body.String())
		}
	}
}

func TestRunAggregation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/aggregations", `{"keywords":"data analyst","location":"Leeds"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if env.runner.gotKeywords != "data analyst" || env.runner.gotLocation != "Leeds" || !env.runner.hadDeadline {
		t.Fatalf("runner not invoked as expected: %+v", env.runner)
	}

	var report usecase.RunReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil || report.Fetched != 3 {
		t.Fatalf("unexpected report %s (%v)", rec.Body.String(), err)
	}
}

func TestRunAggregationValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, body := range []string{`{"location":"Leeds"}`, `{"keywords":"go","extra":true}`, `not json`} {
		rec := env.do(t, http.MethodPost, "/api/v1/aggregations", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestRunAggregationInternalErrorHidesDetails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.runner.err = errors.New("pq: password authentication failed")

	rec := env.do(t, http.MethodPost, "/api/v1/aggregations", `{"keywords":"go"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestReapEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.repo.Put(domain.Listing{
		RawListing:  domain.RawListing{Source: domain.SourceAdzuna, ExternalID: "old", Title: "Old"},
		Status:      domain.StatusActive,
		LastFetched: time.Now().AddDate(0, 0, -40),
	})

	rec := env.do(t, http.MethodPost, "/api/v1/reaper", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Removed       int64 `json:"removed"`
		RetentionDays int   `json:"retentionDays"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Removed != 1 || body.RetentionDays != 30 {
		t.Fatalf("unexpected body %+v", body)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/reaper", `{"retentionDays":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("retentionDays=0: status = %d, want 400", rec.Code)
	}
}

func TestListReviews(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_ = env.queue.Enqueue(context.Background(), ports.ReviewItem{
		Listing: domain.RawListing{Source: domain.SourceIndeed, ExternalID: "1", Title: "Backend Developer"},
		Reasons: []string{"organization defaulted"},
	})

	rec := env.do(t, http.MethodGet, "/api/v1/reviews?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Items []ports.ReviewItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Items) != 1 {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	_ = env.do(t, http.MethodPost, "/api/v1/reaper", `{"retentionDays":7}`)
	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "listings_reaper_removed_total") {
		t.Fatalf("metrics missing reaper counter: %d %s", rec.Code, rec.Body.String())
	}
}
