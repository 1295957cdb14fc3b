package relational

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/logger"
	"github.com/teranos/inout/record"
)

// TableTarget is a table written through the write orchestrator.
type TableTarget struct {
	db      *DB
	dataset string
	name    string
}

// Name identifies the table in messages.
func (t *TableTarget) Name() string {
	if t.dataset == "" {
		return "table " + t.name
	}
	return "table " + t.dataset + "." + t.name
}

// Noun names table records.
func (t *TableTarget) Noun() string { return "rows" }

// ident returns the quoted, schema-qualified table identifier.
func (t *TableTarget) ident() string {
	if t.dataset == "" {
		return pgx.Identifier{t.name}.Sanitize()
	}
	return pgx.Identifier{t.dataset, t.name}.Sanitize()
}

// Exists reports whether the table is present. Without a dataset, postgres
// looks in current_schema(), where the unqualified name resolves.
func (t *TableTarget) Exists(ctx context.Context) (bool, error) {
	var query string
	var args []any
	switch t.db.dialect {
	case SQLite:
		master := "sqlite_master"
		if t.dataset != "" {
			master = pgx.Identifier{t.dataset, "sqlite_master"}.Sanitize()
		}
		query = "SELECT COUNT(*) FROM " + master + " WHERE type = 'table' AND name = ?"
		args = []any{t.name}
	default:
		if t.dataset == "" {
			query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
			args = []any{t.name}
		} else {
			query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2"
			args = []any{t.dataset, t.name}
		}
	}
	return t.anyRow(ctx, query, args...)
}

// hasColumn reports whether the table has a column called name.
func (t *TableTarget) hasColumn(ctx context.Context, name string) (bool, error) {
	var query string
	var args []any
	switch t.db.dialect {
	case SQLite:
		if t.dataset == "" {
			query = "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?"
			args = []any{t.name, name}
		} else {
			query = "SELECT COUNT(*) FROM pragma_table_info(?, ?) WHERE name = ?"
			args = []any{t.name, t.dataset, name}
		}
	default:
		if t.dataset == "" {
			query = "SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2"
			args = []any{t.name, name}
		} else {
			query = "SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3"
			args = []any{t.dataset, t.name, name}
		}
	}
	return t.anyRow(ctx, query, args...)
}

func (t *TableTarget) anyRow(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := t.db.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, t.db.mapError(err)
	}
	return n > 0, nil
}

// Probe returns the distinct values of fields already in the table. The id
// column is selected too when the table has one, so conflicts can name the
// rows they collide with.
func (t *TableTarget) Probe(ctx context.Context, fields []string) ([]record.Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	cols := make([]string, 0, len(fields)+1)
	withID := false
	for _, f := range fields {
		cols = append(cols, pgx.Identifier{f}.Sanitize())
		withID = withID || f == record.IDField
	}
	if !withID {
		ok, err := t.hasColumn(ctx, record.IDField)
		if err != nil {
			return nil, err
		}
		if ok {
			cols = append(cols, pgx.Identifier{record.IDField}.Sanitize())
		}
	}
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s", strings.Join(cols, ", "), t.ident())

	table, err := t.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return table.Rows, nil
}

// Insert writes one row. Columns are the record's fields; nested values are
// stored as JSON text.
func (t *TableTarget) Insert(ctx context.Context, rec record.Record) error {
	fields := rec.Fields()
	if len(fields) == 0 {
		return errors.NewInvalidRequestError("record has no fields")
	}

	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = pgx.Identifier{f}.Sanitize()
		marks[i] = t.db.dialect.placeholder(i + 1)
		v, err := sqlValue(rec[f])
		if err != nil {
			return errors.Wrapf(err, "field %q", f)
		}
		args[i] = v
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.ident(), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := t.db.db.ExecContext(ctx, stmt, args...); err != nil {
		return t.db.mapError(err)
	}
	return nil
}

// Create issues CREATE TABLE for schema.
func (t *TableTarget) Create(ctx context.Context, schema record.Schema) error {
	if len(schema) == 0 {
		return errors.NewInvalidRequestError("cannot create %s without columns", t.Name())
	}

	defs := make([]string, len(schema))
	for i, col := range schema {
		defs[i] = pgx.Identifier{col.Name}.Sanitize() + " " + columnType(t.db.dialect, col.Kind)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", t.ident(), strings.Join(defs, ", "))

	t.db.log.Infow("Creating table", logger.FieldTarget, t.Name(), logger.FieldCount, len(schema))
	if _, err := t.db.db.ExecContext(ctx, stmt); err != nil {
		return t.db.mapError(err)
	}
	return nil
}

// Drop removes the table.
func (t *TableTarget) Drop(ctx context.Context) error {
	t.db.log.Warnw("Dropping table", logger.FieldTarget, t.Name())
	if _, err := t.db.db.ExecContext(ctx, "DROP TABLE "+t.ident()); err != nil {
		return t.db.mapError(err)
	}
	return nil
}

// sqlValue converts a record value into a driver argument.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, []byte:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case time.Time:
		return x, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		return x.Float64()
	case map[string]any, record.Record, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return v, nil
}
