package am

import (
	"github.com/gocql/gocql"

	"github.com/teranos/inout/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Postgres.MaxOpenConns < 0 {
		return errors.Newf("postgres.max_open_conns must be >= 0, got %d", c.Postgres.MaxOpenConns)
	}

	if c.Cassandra.Port < 0 || c.Cassandra.Port > 65535 {
		return errors.Newf("cassandra.port must be between 0 and 65535, got %d", c.Cassandra.Port)
	}
	if c.Cassandra.TimeoutSeconds < 0 {
		return errors.Newf("cassandra.timeout_seconds must be >= 0, got %d", c.Cassandra.TimeoutSeconds)
	}
	if c.Cassandra.Consistency != "" {
		if _, err := gocql.ParseConsistencyWrapper(c.Cassandra.Consistency); err != nil {
			return errors.Newf("cassandra.consistency %q is not a consistency level", c.Cassandra.Consistency)
		}
	}
	if c.Cassandra.Password != "" && c.Cassandra.Username == "" {
		return errors.New("cassandra.password is set but cassandra.username is empty")
	}

	// 0 = unpaced
	if c.Calendar.RequestsPerSecond < 0 {
		return errors.Newf("calendar.requests_per_second must be >= 0, got %f", c.Calendar.RequestsPerSecond)
	}
	if c.Calendar.TimeoutSeconds < 0 {
		return errors.Newf("calendar.timeout_seconds must be >= 0, got %d", c.Calendar.TimeoutSeconds)
	}

	if _, _, err := c.Policies(); err != nil {
		return err
	}

	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}
	return nil
}
