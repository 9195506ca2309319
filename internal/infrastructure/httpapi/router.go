package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
	"ListingsAggregator/internal/usecase"
)

const (
	maxBodyBytes       = 1 << 16
	defaultReviewLimit = 50
	maxReviewLimit     = 500
)

// Lister serves filtered listing pages and single listings.
type Lister interface {
	Query(ctx context.Context, filter domain.Filter, page domain.PageRequest) (domain.Page, error)
	Get(ctx context.Context, key domain.Key) (domain.Listing, error)
}

// Runner executes one aggregation run.
type Runner interface {
	Run(ctx context.Context, keywords, location string) (usecase.RunReport, error)
}

// Reaper removes stale external listings.
type Reaper interface {
	Reap(ctx context.Context, retentionDays int) (int64, error)
}

// Deps are the use cases the API fronts.
type Deps struct {
	Listings         Lister
	Pipeline         Runner
	Reaper           Reaper
	Reviews          ports.ReviewQueue
	Gatherer         prometheus.Gatherer
	AggregateTimeout time.Duration
	RetentionDays    int
	Logger           *slog.Logger
}

type handler struct {
	deps     Deps
	validate *validator.Validate
}

// NewRouter mounts every route on a chi mux.
func NewRouter(deps Deps) http.Handler {
	if deps.AggregateTimeout <= 0 {
		deps.AggregateTimeout = 3 * time.Minute
	}
	h := &handler{deps: deps, validate: validator.New(validator.WithRequiredStructEnabled())}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	r.Get("/healthz", h.health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/listings", h.listListings)
		r.Get("/listings/{source}/{externalID}", h.getListing)
		r.Post("/aggregations", h.runAggregation)
		r.Post("/reaper", h.reap)
		r.Get("/reviews", h.listReviews)
	})
	return r
}

type listingsQuery struct {
	Search   string `validate:"max=200"`
	Location string `validate:"max=200"`
	Kind     string `validate:"omitempty,oneof=full-time part-time contract internship freelance"`
	Remote   string `validate:"omitempty,oneof=on-site remote hybrid"`
	Source   string `validate:"omitempty,max=64"`
	Page     int    `validate:"gte=0"`
	Limit    int    `validate:"gte=0"`
}

type aggregateRequest struct {
	Keywords string `json:"keywords" validate:"required,max=200"`
	Location string `json:"location" validate:"max=200"`
}

type reapRequest struct {
	RetentionDays *int `json:"retentionDays" validate:"omitempty,gte=1"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		h.fail(w, r, badRequest("page must be an integer"))
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		h.fail(w, r, badRequest("limit must be an integer"))
		return
	}

	params := listingsQuery{
		Search:   q.Get("search"),
		Location: q.Get("location"),
		Kind:     q.Get("kind"),
		Remote:   q.Get("remote"),
		Source:   q.Get("source"),
		Page:     page,
		Limit:    limit,
	}
	if err := h.validate.Struct(params); err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.deps.Listings.Query(r.Context(), domain.Filter{
		Search:   params.Search,
		Location: params.Location,
		Kind:     domain.Kind(params.Kind),
		Remote:   domain.RemoteMode(params.Remote),
		Source:   domain.Source(params.Source),
	}, domain.PageRequest{Page: params.Page, Limit: params.Limit})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getListing(w http.ResponseWriter, r *http.Request) {
	externalID, err := url.PathUnescape(chi.URLParam(r, "externalID"))
	if err != nil {
		h.fail(w, r, badRequest("malformed external id"))
		return
	}

	listing, err := h.deps.Listings.Get(r.Context(), domain.Key{
		Source:     domain.Source(chi.URLParam(r, "source")),
		ExternalID: externalID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *handler) runAggregation(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.AggregateTimeout)
	defer cancel()

	report, err := h.deps.Pipeline.Run(ctx, req.Keywords, req.Location)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) reap(w http.ResponseWriter, r *http.Request) {
	var req reapRequest
	if err := h.decode(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	days := h.deps.RetentionDays
	if req.RetentionDays != nil {
		days = *req.RetentionDays
	}

	removed, err := h.deps.Reaper.Reap(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "retentionDays": days})
}

func (h *handler) listReviews(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		h.fail(w, r, badRequest("limit must be a non-negative integer"))
		return
	}
	if limit == 0 {
		limit = defaultReviewLimit
	}
	if limit > maxReviewLimit {
		limit = maxReviewLimit
	}

	if h.deps.Reviews == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []ports.ReviewItem{}})
		return
	}
	items, err := h.deps.Reviews.Pending(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// decode reads a JSON body into dst and validates it. With allowEmpty an
// absent body leaves dst at its zero value.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	return h.validate.Struct(dst)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && h.deps.Logger != nil {
		h.deps.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return domain.ErrInvalidArgument }

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if log == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(started),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

