package relational

import (
	"database/sql/driver"
	"net"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/teranos/inout/errors"
)

// mapError attaches a status code to driver errors so write results can
// report why a row was rejected.
func (d *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errors.NewBackendError(string(Postgres), pgStatus(pgErr.Code), err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return errors.NewBackendError(string(SQLite), sqliteStatus(liteErr), err)
	}

	var netErr net.Error
	var connErr *pgconn.ConnectError
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) || errors.As(err, &connErr) {
		return errors.WrapConnection(err, string(d.dialect))
	}
	return errors.WithStack(err)
}

// pgStatus maps a SQLSTATE to an HTTP status.
func pgStatus(code string) int {
	switch code {
	case "23505":
		return http.StatusConflict
	case "42P01", "3F000":
		return http.StatusNotFound
	case "28P01", "28000":
		return http.StatusUnauthorized
	case "42501":
		return http.StatusForbidden
	}
	switch {
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "08"):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// sqliteStatus maps a sqlite result code to an HTTP status.
func sqliteStatus(e sqlite3.Error) int {
	switch e.Code {
	case sqlite3.ErrConstraint:
		if e.ExtendedCode == sqlite3.ErrConstraintUnique || e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case sqlite3.ErrMismatch, sqlite3.ErrTooBig, sqlite3.ErrRange:
		return http.StatusBadRequest
	case sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrAuth:
		return http.StatusForbidden
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
		return http.StatusServiceUnavailable
	case sqlite3.ErrError:
		if strings.Contains(e.Error(), "no such table") {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
