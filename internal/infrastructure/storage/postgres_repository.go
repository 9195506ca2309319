package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

const listingsTable = "listings"

var listingColumns = []string{
	"id", "source", "external_id", "url", "title", "organization", "location", "description",
	"salary_min", "salary_max", "salary_currency", "salary_period",
	"experience_min", "experience_max", "experience_unit",
	"kind", "remote", "skills", "requirements", "categories", "posted_at", "confidence",
	"status", "last_fetched", "views", "application_count", "employer_id", "created_at", "updated_at",
}

// The partial unique index on (source, external_id) decides between insert and
// refresh, so concurrent runs racing on one key still leave a single row.
const upsertSuffix = `ON CONFLICT (source, external_id) WHERE source <> 'internal' DO UPDATE
SET last_fetched = GREATEST(listings.last_fetched, EXCLUDED.last_fetched),
    updated_at = EXCLUDED.updated_at
RETURNING `

// PostgresRepository persists listings into Postgres.
type PostgresRepository struct {
	db   *sql.DB
	psql sq.StatementBuilderType
}

var _ ports.ListingRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Upsert inserts a new active listing or refreshes last_fetched of the existing one.
func (r *PostgresRepository) Upsert(ctx context.Context, raw domain.RawListing, now time.Time) (domain.Listing, bool, error) {
	if r.db == nil {
		return domain.Listing{}, false, errors.New("postgres repository is not configured")
	}

	listing := domain.Listing{
		ID:          uuid.NewString(),
		RawListing:  raw,
		Status:      domain.StatusActive,
		LastFetched: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query, args, err := r.psql.Insert(listingsTable).
		Columns(listingColumns...).
		Values(insertValues(listing)...).
		Suffix(upsertSuffix + strings.Join(listingColumns, ", ") + ", (xmax = 0) AS inserted").
		ToSql()
	if err != nil {
		return domain.Listing{}, false, fmt.Errorf("build upsert: %w", err)
	}

	var inserted bool
	stored, err := scanListing(r.db.QueryRowContext(ctx, query, args...), &inserted)
	if err != nil {
		return domain.Listing{}, false, fmt.Errorf("upsert listing %s/%s: %w", raw.Source, raw.ExternalID, err)
	}
	return stored, inserted, nil
}

// FindByKey loads an external listing by its dedup key.
func (r *PostgresRepository) FindByKey(ctx context.Context, key domain.Key) (domain.Listing, error) {
	if r.db == nil {
		return domain.Listing{}, domain.ErrNotFound
	}

	query, args, err := r.psql.Select(listingColumns...).
		From(listingsTable).
		Where(sq.Eq{"source": string(key.Source), "external_id": key.ExternalID}).
		ToSql()
	if err != nil {
		return domain.Listing{}, fmt.Errorf("build find: %w", err)
	}

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, fmt.Errorf("find listing: %w", err)
	}
	return listing, nil
}

// InsertInternal stores an employer-authored listing.
func (r *PostgresRepository) InsertInternal(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	if r.db == nil {
		return domain.Listing{}, errors.New("postgres repository is not configured")
	}
	listing, err := prepareInternal(listing, time.Now().UTC())
	if err != nil {
		return domain.Listing{}, err
	}

	query, args, err := r.psql.Insert(listingsTable).
		Columns(listingColumns...).
		Values(insertValues(listing)...).
		ToSql()
	if err != nil {
		return domain.Listing{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Listing{}, fmt.Errorf("insert internal listing: %w", err)
	}
	return listing, nil
}

// DeleteStale removes external listings last fetched before cutoff.
func (r *PostgresRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.db == nil {
		return 0, errors.New("postgres repository is not configured")
	}

	query, args, err := r.psql.Delete(listingsTable).
		Where(sq.NotEq{"source": string(domain.SourceInternal)}).
		Where(sq.Lt{"last_fetched": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete stale: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

// Search returns one page of active listings and the total match count.
func (r *PostgresRepository) Search(ctx context.Context, filter domain.Filter, page domain.PageRequest) ([]domain.Listing, int, error) {
	if r.db == nil {
		return nil, 0, nil
	}
	where := searchPredicate(filter)

	countQuery, countArgs, err := r.psql.Select("COUNT(*)").From(listingsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}
	if total == 0 {
		return []domain.Listing{}, 0, nil
	}

	query, args, err := r.psql.Select(listingColumns...).
		From(listingsTable).
		Where(where).
		OrderBy("created_at DESC", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build search: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query listings: %w", err)
	}

	listings := make([]domain.Listing, 0, page.Limit)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, 0, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, 0, fmt.Errorf("close rows: %w", closeErr)
	}

	return listings, total, nil
}

func searchPredicate(filter domain.Filter) sq.And {
	where := sq.And{sq.Eq{"status": string(domain.StatusActive)}}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where = append(where, sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
			sq.ILike{"organization": pattern},
		})
	}
	if filter.Location != "" {
		where = append(where, sq.ILike{"location": likePattern(filter.Location)})
	}
	if filter.Kind != "" {
		where = append(where, sq.Eq{"kind": string(filter.Kind)})
	}
	if filter.Remote != "" {
		where = append(where, sq.Eq{"remote": string(filter.Remote)})
	}
	if filter.Source != "" {
		where = append(where, sq.Eq{"source": string(filter.Source)})
	}
	return where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func insertValues(l domain.Listing) []any {
	var externalID *string
	if l.ExternalID != "" {
		externalID = &l.ExternalID
	}
	return []any{
		l.ID, string(l.Source), externalID, l.URL, l.Title, l.Organization, l.Location, l.Description,
		l.Compensation.Min, l.Compensation.Max, l.Compensation.Currency, l.Compensation.Period,
		l.Experience.Min, l.Experience.Max, l.Experience.Unit,
		string(l.Kind), string(l.Remote),
		pq.StringArray(nonNil(l.Skills)), pq.StringArray(nonNil(l.Requirements)), pq.StringArray(nonNil(l.Categories)),
		l.PostedAt, string(l.Confidence),
		string(l.Status), l.LastFetched, l.Views, l.ApplicationCount, l.EmployerID, l.CreatedAt, l.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanListing reads listingColumns in order, followed by any extra destinations.
func scanListing(row rowScanner, extra ...any) (domain.Listing, error) {
	var (
		l                                  domain.Listing
		source, kind, remote, status, conf string
		externalID                         sql.NullString
		skills, requirements, categories   pq.StringArray
	)

	dest := []any{
		&l.ID, &source, &externalID, &l.URL, &l.Title, &l.Organization, &l.Location, &l.Description,
		&l.Compensation.Min, &l.Compensation.Max, &l.Compensation.Currency, &l.Compensation.Period,
		&l.Experience.Min, &l.Experience.Max, &l.Experience.Unit,
		&kind, &remote, &skills, &requirements, &categories, &l.PostedAt, &conf,
		&status, &l.LastFetched, &l.Views, &l.ApplicationCount, &l.EmployerID, &l.CreatedAt, &l.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Listing{}, err
	}

	l.Source = domain.Source(source)
	l.ExternalID = externalID.String
	l.Kind = domain.Kind(kind)
	l.Remote = domain.RemoteMode(remote)
	l.Status = domain.Status(status)
	l.Confidence = domain.Confidence(conf)
	l.Skills = emptyToNil(skills)
	l.Requirements = emptyToNil(requirements)
	l.Categories = emptyToNil(categories)
	return l, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func emptyToNil(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return in
}
