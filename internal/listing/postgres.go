package listing

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/onnwee/autolist/internal/geo"
	"github.com/onnwee/autolist/internal/tracing"
)

// listingColumns is shared by every listing query so scanListing stays in sync.
const listingColumns = `l.id, l.make, l.model, l.year, l.price, l.currency, l.mileage,
	l.fuel_type, l.transmission, l.used, l.published_at, l.owner_id, l.active,
	l.verified, l.approved, l.latitude, l.longitude,
	COALESCE((SELECT array_agg(i.url ORDER BY i.position) FROM listing_images i WHERE i.listing_id = l.id), '{}')`

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a listing store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindCandidates implements Store.
func (s *PostgresStore) FindCandidates(ctx context.Context, f *Filter, limit int) (_ []*Listing, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	where, args := buildWhere(f)
	query := "SELECT " + listingColumns + " FROM listings l WHERE " + where + " ORDER BY l.id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.query(ctx, query, args...)
}

// Search implements Store.
func (s *PostgresStore) Search(ctx context.Context, f *Filter, offset, limit int) (_ []*Listing, _ int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	where, args := buildWhere(f)

	var total int
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings l WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}
	if offset >= total {
		return []*Listing{}, total, nil
	}

	args = append(args, limit, offset)
	query := "SELECT " + listingColumns + " FROM listings l WHERE " + where +
		fmt.Sprintf(" ORDER BY l.published_at DESC, l.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	listings, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

func scanListing(rows *sql.Rows) (*Listing, error) {
	var (
		l        Listing
		lat, lng sql.NullFloat64
		images   pq.StringArray
	)
	err := rows.Scan(
		&l.ID, &l.Make, &l.Model, &l.Year, &l.Price, &l.Currency, &l.Mileage,
		&l.FuelType, &l.Transmission, &l.Used, &l.PublishedAt, &l.OwnerID, &l.Active,
		&l.Verified, &l.Approved, &lat, &lng, &images,
	)
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	if lat.Valid && lng.Valid {
		l.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	l.Images = []string(images)
	return &l, nil
}

// buildWhere translates f into a WHERE clause with positional parameters.
// Active listings only; the clause is never empty.
func buildWhere(f *Filter) (string, []any) {
	conds := []string{"l.active = TRUE"}
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f == nil {
		return strings.Join(conds, " AND "), args
	}
	if f.ExcludeOwnerID != 0 {
		add("l.owner_id <> $%d", f.ExcludeOwnerID)
	}
	if len(f.Makes) > 0 {
		makes := make([]string, len(f.Makes))
		for i, m := range f.Makes {
			makes[i] = strings.ToLower(strings.TrimSpace(m))
		}
		add("lower(l.make) = ANY($%d)", pq.Array(makes))
	}
	if f.Model != nil {
		add("lower(l.model) = lower($%d)", *f.Model)
	}
	if f.MinYear != nil {
		add("l.year >= $%d", *f.MinYear)
	}
	if f.MaxYear != nil {
		add("l.year <= $%d", *f.MaxYear)
	}
	if f.FuelType != nil {
		add("lower(l.fuel_type) = lower($%d)", *f.FuelType)
	}
	if f.Transmission != nil {
		add("lower(l.transmission) = lower($%d)", *f.Transmission)
	}
	if f.MinPrice != nil {
		add("l.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("l.price <= $%d", *f.MaxPrice)
	}
	if f.MinMileage != nil {
		add("l.mileage >= $%d", *f.MinMileage)
	}
	if f.MaxMileage != nil {
		add("l.mileage <= $%d", *f.MaxMileage)
	}
	if f.Used != nil {
		add("l.used = $%d", *f.Used)
	}

	return strings.Join(conds, " AND "), args
}
