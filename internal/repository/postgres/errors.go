package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/observability"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	pqUndefinedTable  = "42P01"
)

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint violation
// If constraint is empty, it returns true for any unique violation
// If constraint is specified, it only returns true for that specific constraint
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	if string(pqErr.Code) != pqUniqueViolation {
		return false
	}

	if constraint == "" {
		return true
	}

	return pqErr.Constraint == constraint
}

// IsUndefinedTable reports whether the query hit a relation that does not exist
func IsUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqUndefinedTable
}

// isUnavailable reports errors that mean the store itself cannot serve the
// request, as opposed to a bad query or bad data.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if IsUndefinedTable(err) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// storageError wraps err with domain.ErrStorageUnavailable when the store is unreachable
func storageError(action string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("failed to %s: %w: %w", action, domain.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// observeQuery records the elapsed time of a query; call it deferred
func observeQuery(operation, table string, start time.Time) {
	observability.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// unavailableOnCancel keeps context errors distinguishable from storage outages
func unavailableOnCancel(ctx context.Context, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("failed to %s: %w", action, ctxErr)
	}
	return storageError(action, err)
}
