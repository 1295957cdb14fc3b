package am

import (
	"github.com/spf13/viper"

	"github.com/teranos/inout/columnar"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Relational defaults
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 4)
	v.SetDefault("sqlite.path", "inout.db")

	// Cassandra defaults
	v.SetDefault("cassandra.hosts", []string{"127.0.0.1"})
	v.SetDefault("cassandra.port", columnar.DefaultPort)
	v.SetDefault("cassandra.keyspace", "")
	v.SetDefault("cassandra.consistency", "QUORUM")
	v.SetDefault("cassandra.timeout_seconds", 10)
	v.SetDefault("cassandra.username", "")
	v.SetDefault("cassandra.password", "")

	// Google Calendar defaults
	v.SetDefault("calendar.credentials_file", "~/.inout/credentials.json")
	v.SetDefault("calendar.token_file", "~/.inout/token.json")
	v.SetDefault("calendar.requests_per_second", 5.0) // stays well under the per-user quota
	v.SetDefault("calendar.timeout_seconds", 30)
	v.SetDefault("calendar.block_private_ip", true)

	// Write defaults
	v.SetDefault("write.on_asset_conflict", "append")
	v.SetDefault("write.on_data_conflict", "append")
	v.SetDefault("write.create_if_missing", false)

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("postgres.dsn", "INOUT_POSTGRES_DSN", "DATABASE_URL")
	v.BindEnv("cassandra.password", "INOUT_CASSANDRA_PASSWORD")
	v.BindEnv("cassandra.username", "INOUT_CASSANDRA_USERNAME")
}

// sensitiveKeys are masked by Redacted.
var sensitiveKeys = map[string]bool{
	"postgres.dsn":       true,
	"cassandra.password": true,
}
