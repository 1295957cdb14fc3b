package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/inout/calendar"
	"github.com/teranos/inout/columnar"
	"github.com/teranos/inout/display"
	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/relational"
)

// QueryCmd represents the query command
var QueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read from a backend",
	Long: `query - Read from a backend and print the result as a table

Examples:
  inout query postgres "SELECT * FROM public.people"
  inout query sqlite "SELECT name, age FROM people" --format json
  inout query cassandra "SELECT * FROM events" --keyspace analytics
  inout query calendar primary --q standup --from 2024-03-01`,
}

var queryPostgresCmd = &cobra.Command{
	Use:   "postgres <sql>",
	Short: "Run a SQL query against postgres",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelationalQuery(relational.Postgres),
}

var querySQLiteCmd = &cobra.Command{
	Use:   "sqlite <sql>",
	Short: "Run a SQL query against the sqlite file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelationalQuery(relational.SQLite),
}

var queryCassandraCmd = &cobra.Command{
	Use:   "cassandra <cql>",
	Short: "Run a CQL query against cassandra",
	Args:  cobra.ExactArgs(1),
	RunE:  runCassandraQuery,
}

var queryCalendarCmd = &cobra.Command{
	Use:   "calendar <calendar-id>",
	Short: "List the events of a calendar",
	Long:  `List the events of a calendar. "primary" names your primary calendar.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCalendarQuery,
}

var (
	queryFormat       string
	queryKeyspace     string
	querySearch       string
	queryFrom         string
	queryTo           string
	queryLimit        int
	querySingleEvents bool
)

func init() {
	QueryCmd.PersistentFlags().StringVar(&queryFormat, "format", "table", "Output format: table, json, yaml, toml")

	queryCassandraCmd.Flags().StringVar(&queryKeyspace, "keyspace", "", "Keyspace (default: [cassandra] keyspace)")

	queryCalendarCmd.Flags().StringVar(&querySearch, "q", "", "Free text search")
	queryCalendarCmd.Flags().StringVar(&queryFrom, "from", "", "Only events ending after this time (RFC 3339 or YYYY-MM-DD)")
	queryCalendarCmd.Flags().StringVar(&queryTo, "to", "", "Only events starting before this time (RFC 3339 or YYYY-MM-DD)")
	queryCalendarCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum number of events (0 = all)")
	queryCalendarCmd.Flags().BoolVar(&querySingleEvents, "single-events", true, "Expand recurring events into instances")

	QueryCmd.AddCommand(queryPostgresCmd)
	QueryCmd.AddCommand(querySQLiteCmd)
	QueryCmd.AddCommand(queryCassandraCmd)
	QueryCmd.AddCommand(queryCalendarCmd)
}

func runRelationalQuery(dialect relational.Dialect) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		format, err := display.ParseFormat(queryFormat)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rc, err := cfg.Relational(dialect)
		if err != nil {
			return err
		}

		db, err := relational.Open(cmd.Context(), rc, Logger())
		if err != nil {
			return err
		}
		defer db.Close()

		logStatement(string(dialect), args[0])
		table, err := db.Query(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return display.RenderTable(cmd.OutOrStdout(), format, table)
	}
}

func runCassandraQuery(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(queryFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := columnar.Open(cfg.Columnar(), Logger())
	if err != nil {
		return err
	}
	defer client.Close()

	logStatement("cassandra", args[0])
	table, err := client.Query(cmd.Context(), args[0], queryKeyspace)
	if err != nil {
		return err
	}
	return display.RenderTable(cmd.OutOrStdout(), format, table)
}

func runCalendarQuery(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(queryFormat)
	if err != nil {
		return err
	}
	filter := calendar.Filter{
		Query:        querySearch,
		SingleEvents: querySingleEvents,
		MaxResults:   queryLimit,
	}
	if filter.TimeMin, err = parseTime(queryFrom); err != nil {
		return errors.Wrap(err, "--from")
	}
	if filter.TimeMax, err = parseTime(queryTo); err != nil {
		return errors.Wrap(err, "--to")
	}

	client, err := newCalendarClient(cmd)
	if err != nil {
		return err
	}
	table, err := client.Query(cmd.Context(), args[0], filter)
	if err != nil {
		return err
	}
	return display.RenderTable(cmd.OutOrStdout(), format, table)
}

func newCalendarClient(cmd *cobra.Command) (*calendar.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return calendar.New(cmd.Context(), cfg.CalendarClient(), Logger())
}

// parseTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
// Empty means unset.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequestError("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t, nil
}

// tableOf renders descriptors as a record table through their JSON form.
func tableOf[T any](items []T) (*record.Table, error) {
	rows := make([]record.Record, 0, len(items))
	for _, item := range items {
		rec, err := record.FromValue(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return record.NewTable(rows), nil
}
