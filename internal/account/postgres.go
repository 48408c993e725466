package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/onnwee/autolist/internal/geo"
	"github.com/onnwee/autolist/internal/tracing"
)

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an account store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetPreferences implements Store. A LEFT JOIN distinguishes a missing
// account (no row) from an account without preferences (NULL columns).
func (s *PostgresStore) GetPreferences(ctx context.Context, viewerID int64) (_ Preferences, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "account_preferences", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	const query = `
		SELECT p.account_id, p.preferred_brand, p.wants_used, p.wants_new,
		       p.use_location, p.latitude, p.longitude
		FROM accounts a
		LEFT JOIN account_preferences p ON p.account_id = a.id
		WHERE a.id = $1`

	var (
		prefID      sql.NullInt64
		brand       sql.NullString
		wantsUsed   sql.NullBool
		wantsNew    sql.NullBool
		useLocation sql.NullBool
		lat, lng    sql.NullFloat64
	)
	err = s.db.QueryRowContext(ctx, query, viewerID).Scan(
		&prefID, &brand, &wantsUsed, &wantsNew, &useLocation, &lat, &lng,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, ErrAccountNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("query preferences: %w", err)
	}

	p := DefaultPreferences(viewerID)
	if !prefID.Valid {
		return p, nil
	}
	if brand.Valid && brand.String != "" {
		b := brand.String
		p.PreferredBrand = &b
	}
	p.WantsUsed = wantsUsed.Bool
	p.WantsNew = wantsNew.Bool
	p.UseLocation = useLocation.Bool
	if lat.Valid && lng.Valid {
		p.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return p, nil
}

// OwnerNames implements Store with a single batched query.
func (s *PostgresStore) OwnerNames(ctx context.Context, ids []int64) (_ map[int64]string, err error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "accounts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, last_name FROM accounts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query owner names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Account
		if err = rows.Scan(&a.ID, &a.FirstName, &a.LastName); err != nil {
			return nil, fmt.Errorf("scan owner name: %w", err)
		}
		names[a.ID] = a.FullName()
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner names: %w", err)
	}
	return names, nil
}
