// Package columnar reads from and writes into Cassandra-compatible stores
// over CQL.
//
// A Client keeps one gocql session per keyspace. Sessions are opened on
// first use and live until Close.
package columnar

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/logger"
	"github.com/teranos/inout/record"
)

// DefaultPort is the CQL native protocol port.
const DefaultPort = 9042

// Config describes the cluster to connect to.
type Config struct {
	Hosts       []string
	Port        int
	Keyspace    string // default keyspace for queries that name none
	Consistency string // gocql consistency name, e.g. "quorum"
	Timeout     time.Duration
	Username    string
	Password    string
}

// column is a result column and its CQL type.
type column struct {
	Name string
	Type gocql.Type
}

// session is the subset of a CQL session the client needs.
type session interface {
	query(ctx context.Context, stmt string, values ...any) ([]column, []map[string]any, error)
	exec(ctx context.Context, stmt string, values ...any) error
	Close()
}

// Client is a connected columnar client.
type Client struct {
	cfg  Config
	dial func(keyspace string) (session, error)
	log  *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]session
}

// Open validates cfg and prepares the cluster configuration. No connection
// is made until the first query.
func Open(cfg Config, log *zap.SugaredLogger) (*Client, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("no cassandra hosts configured"),
			"set [cassandra] hosts in am.toml",
		)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	consistency := gocql.Quorum
	if cfg.Consistency != "" {
		c, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
		if err != nil {
			return nil, errors.Wrap(errors.NewInvalidRequestError("%v", err), "cassandra consistency")
		}
		consistency = c
	}

	c := newClient(cfg, log)
	c.dial = func(keyspace string) (session, error) {
		cluster := gocql.NewCluster(cfg.Hosts...)
		cluster.Port = cfg.Port
		cluster.Keyspace = keyspace
		cluster.Consistency = consistency
		if cfg.Timeout > 0 {
			cluster.Timeout = cfg.Timeout
			cluster.ConnectTimeout = cfg.Timeout
		}
		if cfg.Username != "" {
			cluster.Authenticator = gocql.PasswordAuthenticator{
				Username: cfg.Username,
				Password: cfg.Password,
			}
		}
		s, err := cluster.CreateSession()
		if err != nil {
			return nil, err
		}
		return &gocqlSession{s: s}, nil
	}
	return c, nil
}

func newClient(cfg Config, log *zap.SugaredLogger) *Client {
	return &Client{
		cfg:      cfg,
		log:      logger.ComponentLogger(log, "columnar"),
		sessions: make(map[string]session),
	}
}

// session returns the session bound to keyspace, opening it if needed.
// The empty keyspace is a session with no keyspace selected.
func (c *Client) session(keyspace string) (session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[keyspace]; ok {
		return s, nil
	}

	c.log.Infow("Opening session",
		logger.FieldHost, strings.Join(c.cfg.Hosts, ","),
		logger.FieldPort, c.cfg.Port,
		logger.FieldKeyspace, keyspace)
	s, err := c.dial(keyspace)
	if err != nil {
		return nil, errors.WithHint(
			errors.WrapConnection(err, "connect to cassandra"),
			"check [cassandra] hosts and that the keyspace exists",
		)
	}
	c.sessions[keyspace] = s
	return s, nil
}

// Close closes every open session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ks, s := range c.sessions {
		s.Close()
		delete(c.sessions, ks)
	}
}

// Query runs cql in keyspace (empty: the configured default) and
// materializes the result. Dates and timestamps come back as UTC times and
// uuids as strings.
func (c *Client) Query(ctx context.Context, cql, keyspace string) (*record.Table, error) {
	if keyspace == "" {
		keyspace = c.cfg.Keyspace
	}
	s, err := c.session(keyspace)
	if err != nil {
		return nil, err
	}

	c.log.Debugw("Executing query", logger.FieldKeyspace, keyspace)
	cols, rows, err := s.query(ctx, cql)
	if err != nil {
		return nil, errors.Wrap(mapError(err), "query")
	}

	table := &record.Table{Columns: make([]string, len(cols))}
	for i, col := range cols {
		table.Columns[i] = col.Name
	}
	for _, row := range rows {
		rec := make(record.Record, len(cols))
		for _, col := range cols {
			rec[col.Name] = coerce(col.Type, row[col.Name])
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}

// Table returns a write target for keyspace.name.
func (c *Client) Table(keyspace, name string) *TableTarget {
	if keyspace == "" {
		keyspace = c.cfg.Keyspace
	}
	return &TableTarget{client: c, keyspace: keyspace, name: name}
}

// coerce normalizes driver values by CQL type.
func coerce(typ gocql.Type, v any) any {
	switch typ {
	case gocql.TypeDate:
		if t, ok := v.(time.Time); ok {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	case gocql.TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
	case gocql.TypeUUID, gocql.TypeTimeUUID:
		switch u := v.(type) {
		case gocql.UUID:
			return u.String()
		case [16]byte:
			return gocql.UUID(u).String()
		}
	}
	return v
}

// gocqlSession adapts *gocql.Session.
type gocqlSession struct {
	s *gocql.Session
}

func (g *gocqlSession) query(ctx context.Context, stmt string, values ...any) ([]column, []map[string]any, error) {
	iter := g.s.Query(stmt, values...).WithContext(ctx).Iter()

	infos := iter.Columns()
	cols := make([]column, len(infos))
	for i, info := range infos {
		cols[i] = column{Name: info.Name, Type: info.TypeInfo.Type()}
	}

	var rows []map[string]any
	for {
		row := make(map[string]any, len(cols))
		if !iter.MapScan(row) {
			break
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}

func (g *gocqlSession) exec(ctx context.Context, stmt string, values ...any) error {
	return g.s.Query(stmt, values...).WithContext(ctx).Exec()
}

func (g *gocqlSession) Close() { g.s.Close() }
