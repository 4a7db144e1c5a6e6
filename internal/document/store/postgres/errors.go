package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"docflow/pkg/platform/sentinel"
)

// classify maps driver errors onto sentinel errors. Both pgx and lib/pq
// error types are understood so either driver can back the store.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s := sentinelForCode(sqlState(err)); s != nil {
		return fmt.Errorf("%s: %w: %w", op, s, err)
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return "08006"
	}
	return ""
}

func sentinelForCode(code string) error {
	switch {
	case code == "":
		return nil
	case code == "23505", // unique_violation
		code == "40001", // serialization_failure
		code == "40P01", // deadlock_detected
		code == "55P03": // lock_not_available
		return sentinel.ErrConflict
	case code == "23503": // foreign_key_violation
		return sentinel.ErrNotFound
	case strings.HasPrefix(code, "08"), // connection exception
		code == "57P01", code == "57P02", code == "57P03": // admin/crash shutdown, cannot connect now
		return sentinel.ErrUnavailable
	}
	return nil
}
