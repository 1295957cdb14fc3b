package columnar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gocql/gocql"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/logger"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/resolve"
)

// TableTarget is a CQL table written through the write orchestrator.
// It does not implement write.Creator: a CQL table needs a primary key,
// which a batch of records does not define.
type TableTarget struct {
	client   *Client
	keyspace string
	name     string
}

// Name identifies the table in messages.
func (t *TableTarget) Name() string {
	return "table " + t.keyspace + "." + t.name
}

// Noun names table records.
func (t *TableTarget) Noun() string { return "rows" }

func (t *TableTarget) ident() string {
	return quote(t.keyspace) + "." + quote(t.name)
}

// Exists looks the table up in system_schema.
func (t *TableTarget) Exists(ctx context.Context) (bool, error) {
	s, err := t.client.session("")
	if err != nil {
		return false, err
	}
	_, rows, err := s.query(ctx,
		"SELECT table_name FROM system_schema.tables WHERE keyspace_name = ? AND table_name = ?",
		t.keyspace, t.name)
	if err != nil {
		return false, mapError(err)
	}
	return len(rows) > 0, nil
}

// Probe reads the key columns of every row. CQL has no DISTINCT on
// non-partition columns, so duplicates are dropped here.
func (t *TableTarget) Probe(ctx context.Context, fields []string) ([]record.Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quote(f)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.ident())

	table, err := t.client.Query(ctx, stmt, t.keyspace)
	if err != nil {
		return nil, err
	}

	key := resolve.Key(fields)
	seen := make(map[string]bool, len(table.Rows))
	var out []record.Record
	for _, row := range table.Rows {
		tuple, err := key.Tuple(row)
		if err != nil {
			continue
		}
		if seen[tuple] {
			continue
		}
		seen[tuple] = true
		out = append(out, row)
	}
	t.client.log.Debugw("Probed table",
		logger.FieldTarget, t.Name(),
		logger.FieldCount, len(table.Rows),
		"distinct", len(out))
	return out, nil
}

// Insert writes one row.
func (t *TableTarget) Insert(ctx context.Context, rec record.Record) error {
	fields := rec.Fields()
	if len(fields) == 0 {
		return errors.NewInvalidRequestError("record has no fields")
	}

	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = quote(f)
		marks[i] = "?"
		v, err := cqlValue(rec[f])
		if err != nil {
			return errors.Wrapf(err, "field %q", f)
		}
		values[i] = v
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.ident(), strings.Join(cols, ", "), strings.Join(marks, ", "))

	s, err := t.client.session(t.keyspace)
	if err != nil {
		return err
	}
	if err := s.exec(ctx, stmt, values...); err != nil {
		return mapError(err)
	}
	return nil
}

// quote renders a case-preserving CQL identifier.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func cqlValue(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
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
	}
	return v, nil
}

// mapError attaches a status code to CQL errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAny(err, gocql.ErrNoConnections, gocql.ErrConnectionClosed, gocql.ErrSessionClosed, gocql.ErrTimeoutNoResponse) {
		return errors.WrapConnection(err, "cassandra")
	}

	var reqErr gocql.RequestError
	if errors.As(err, &reqErr) {
		return errors.NewBackendError("cassandra", cqlStatus(reqErr.Code()), err)
	}
	return errors.WithStack(err)
}

// cqlStatus maps a CQL protocol error code to an HTTP status.
func cqlStatus(code int) int {
	switch code {
	case gocql.ErrCodeSyntax, gocql.ErrCodeInvalid, gocql.ErrCodeConfig:
		return http.StatusBadRequest
	case gocql.ErrCodeCredentials:
		return http.StatusUnauthorized
	case gocql.ErrCodeUnauthorized:
		return http.StatusForbidden
	case gocql.ErrCodeAlreadyExists:
		return http.StatusConflict
	case gocql.ErrCodeUnavailable, gocql.ErrCodeOverloaded, gocql.ErrCodeBootstrapping,
		gocql.ErrCodeWriteTimeout, gocql.ErrCodeReadTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
