// Package relational reads from and writes into SQL databases.
//
// Two dialects are supported: postgres, through pgx's database/sql driver,
// and sqlite, through mattn/go-sqlite3 for local files and tests. Both share
// the same query path and write target; only existence checks, placeholders
// and column types differ.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/logger"
	"github.com/teranos/inout/record"
)

// Dialect selects the SQL flavor spoken to the database.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts the dialect names used in config and on the command line.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", errors.NewInvalidRequestError("unknown SQL dialect %q", s)
}

func (d Dialect) driver() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "pgx"
}

// placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// SQLiteBusyTimeoutMS is how long sqlite waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

// Config describes how to reach a database.
type Config struct {
	Dialect Dialect

	// DSN is a postgres connection string or URL, or a sqlite file path.
	DSN string

	// MaxOpenConns caps the pool; zero leaves the driver default.
	MaxOpenConns int
}

// DB is a connected relational client.
type DB struct {
	db      *sql.DB
	dialect Dialect
	log     *zap.SugaredLogger
}

// Open connects to the database described by cfg and pings it.
func Open(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*DB, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = Postgres
	}
	if cfg.DSN == "" {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("no %s connection string configured", cfg.Dialect),
			"set [postgres] dsn or [sqlite] path in am.toml",
		)
	}

	log = logger.OrNop(log)
	log.Debugw("Opening database", logger.FieldBackend, cfg.Dialect)

	db, err := sql.Open(cfg.Dialect.driver(), cfg.DSN)
	if err != nil {
		return nil, errors.WrapConnection(err, "open database")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.Dialect == SQLite {
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			fmt.Sprintf("PRAGMA busy_timeout = %d", SQLiteBusyTimeoutMS),
		}
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, errors.WrapConnection(err, p)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WithHint(
			errors.WrapConnection(err, "ping database"),
			"check the connection settings and that the server is reachable",
		)
	}

	log.Infow("Database opened", logger.FieldBackend, cfg.Dialect)
	return New(db, cfg.Dialect, log), nil
}

// New wraps an already open handle.
func New(db *sql.DB, dialect Dialect, log *zap.SugaredLogger) *DB {
	return &DB{db: db, dialect: dialect, log: logger.ComponentLogger(log, "relational")}
}

// Dialect returns the SQL flavor of the database.
func (d *DB) Dialect() Dialect { return d.dialect }

// Close closes the underlying pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Query runs query and materializes the result. Column order is preserved
// and byte slices are returned as strings.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*record.Table, error) {
	d.log.Debugw("Executing query", logger.FieldBackend, d.dialect)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(d.mapError(err), "query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	table := &record.Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}

		row := make(record.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(d.mapError(err), "iterate rows")
	}

	d.log.Debugw("Query finished", logger.FieldCount, len(table.Rows))
	return table, nil
}

// Table returns a write target for dataset.name. An empty dataset means the
// connection's default schema.
func (d *DB) Table(dataset, name string) *TableTarget {
	return &TableTarget{db: d, dataset: dataset, name: name}
}
