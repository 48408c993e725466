// Package health provides readiness checks for the listing store and the
// rate-limit cache.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single dependency probe.
const DefaultTimeout = 2 * time.Second

// ErrNotConfigured is returned by checkers built without a backing client.
var ErrNotConfigured = errors.New("dependency not configured")

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker implements health checking for the Postgres listing store.
type DBChecker struct {
	db      Pinger
	timeout time.Duration
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db Pinger) *DBChecker {
	return &DBChecker{db: db, timeout: DefaultTimeout}
}

// HealthCheck pings the database, bounded by the checker timeout.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if d == nil || d.db == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// CheckerFunc adapts a plain function to a checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}
