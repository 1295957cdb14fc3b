package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/inout/am"
	"github.com/teranos/inout/columnar"
	"github.com/teranos/inout/display"
	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/policy"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/relational"
	"github.com/teranos/inout/resolve"
	"github.com/teranos/inout/write"
)

// WriteCmd represents the write command
var WriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Write records into a backend",
	Long: `write - Write records from a file into a table, keyspace table or calendar

The outcome is printed as a JSON envelope {status_code, msg, data}.

Conflict policies (append, ignore, fail; replace is not supported):
  --on-asset-conflict   what to do when the target already exists
  --on-data-conflict    what to do when a record matches an existing one
                        on --conflict-key (default: every field)

Input files: .json (array), .jsonl, .yaml or .csv.

Examples:
  inout write sqlite --table people --input people.csv --create-if-missing
  inout write postgres --dataset analytics --table people --input people.json \
      --on-data-conflict ignore --conflict-key email
  inout write cassandra --keyspace analytics --table events --input events.jsonl
  inout write calendar primary --input events.yaml --on-data-conflict ignore \
      --conflict-key summary --conflict-key start.dateTime`,
}

var writePostgresCmd = &cobra.Command{
	Use:   "postgres",
	Short: "Write rows into a postgres table",
	Args:  cobra.NoArgs,
	RunE:  runRelationalWrite(relational.Postgres),
}

var writeSQLiteCmd = &cobra.Command{
	Use:   "sqlite",
	Short: "Write rows into a sqlite table",
	Args:  cobra.NoArgs,
	RunE:  runRelationalWrite(relational.SQLite),
}

var writeCassandraCmd = &cobra.Command{
	Use:   "cassandra",
	Short: "Write rows into a cassandra table",
	Args:  cobra.NoArgs,
	RunE:  runCassandraWrite,
}

var writeCalendarCmd = &cobra.Command{
	Use:   "calendar <calendar-id>",
	Short: "Write events into a calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalendarWrite,
}

var (
	writeInput           string
	writeInputFormat     string
	writeOnAssetConflict string
	writeOnDataConflict  string
	writeConflictKey     []string
	writeCreateIfMissing bool
	writeTable           string
	writeDataset         string
	writeKeyspace        string
)

func init() {
	flags := WriteCmd.PersistentFlags()
	flags.StringVarP(&writeInput, "input", "i", "", "Input file with the records to write")
	flags.StringVar(&writeInputFormat, "input-format", "", "Input format: json, jsonl, yaml, csv (default: from extension)")
	flags.StringVar(&writeOnAssetConflict, "on-asset-conflict", "", "Policy when the target exists (default: [write] on_asset_conflict)")
	flags.StringVar(&writeOnDataConflict, "on-data-conflict", "", "Policy for conflicting records (default: [write] on_data_conflict)")
	flags.StringArrayVar(&writeConflictKey, "conflict-key", nil, "Field identifying a record, repeatable (default: every field)")
	flags.BoolVar(&writeCreateIfMissing, "create-if-missing", false, "Create the target when it does not exist")
	_ = WriteCmd.MarkPersistentFlagRequired("input")

	for _, c := range []*cobra.Command{writePostgresCmd, writeSQLiteCmd} {
		c.Flags().StringVar(&writeTable, "table", "", "Table name")
		c.Flags().StringVar(&writeDataset, "dataset", "", "Schema holding the table")
		_ = c.MarkFlagRequired("table")
	}
	writeCassandraCmd.Flags().StringVar(&writeTable, "table", "", "Table name")
	writeCassandraCmd.Flags().StringVar(&writeKeyspace, "keyspace", "", "Keyspace (default: [cassandra] keyspace)")
	_ = writeCassandraCmd.MarkFlagRequired("table")

	WriteCmd.AddCommand(writePostgresCmd)
	WriteCmd.AddCommand(writeSQLiteCmd)
	WriteCmd.AddCommand(writeCassandraCmd)
	WriteCmd.AddCommand(writeCalendarCmd)
}

func runRelationalWrite(dialect relational.Dialect) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		req, err := buildRequest(cmd, cfg)
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

		return executeWrite(cmd.Context(), cmd.OutOrStdout(), Logger(), db.Table(writeDataset, writeTable), req)
	}
}

func runCassandraWrite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd, cfg)
	if err != nil {
		return err
	}

	client, err := columnar.Open(cfg.Columnar(), Logger())
	if err != nil {
		return err
	}
	defer client.Close()

	keyspace := writeKeyspace
	if keyspace == "" {
		keyspace = cfg.Cassandra.Keyspace
	}
	if keyspace == "" {
		return errors.WithHint(
			errors.NewInvalidRequestError("no keyspace given"),
			"pass --keyspace or set [cassandra] keyspace",
		)
	}
	return executeWrite(cmd.Context(), cmd.OutOrStdout(), Logger(), client.Table(keyspace, writeTable), req)
}

func runCalendarWrite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd, cfg)
	if err != nil {
		return err
	}
	client, err := newCalendarClient(cmd)
	if err != nil {
		return err
	}
	return executeWrite(cmd.Context(), cmd.OutOrStdout(), Logger(), client.Events(args[0]), req)
}

// buildRequest reads the input file and resolves policy flags against the
// configured defaults.
func buildRequest(cmd *cobra.Command, cfg *am.Config) (write.Request, error) {
	records, err := record.LoadFile(writeInput, record.Format(writeInputFormat))
	if err != nil {
		return write.Request{}, err
	}

	asset, data, err := cfg.Policies()
	if err != nil {
		return write.Request{}, err
	}
	if writeOnAssetConflict != "" {
		if asset, err = policy.Parse(writeOnAssetConflict); err != nil {
			return write.Request{}, errors.Wrap(err, "--on-asset-conflict")
		}
	}
	if writeOnDataConflict != "" {
		if data, err = policy.Parse(writeOnDataConflict); err != nil {
			return write.Request{}, errors.Wrap(err, "--on-data-conflict")
		}
	}

	create := cfg.Write.CreateIfMissing
	if cmd.Flags().Changed("create-if-missing") {
		create = writeCreateIfMissing
	}

	return write.Request{
		Records:         records,
		AssetPolicy:     asset,
		DataPolicy:      data,
		ConflictKey:     resolve.Key(writeConflictKey),
		CreateIfMissing: create,
	}, nil
}

// executeWrite runs the write and prints its envelope. Terminal errors are
// printed as envelopes too. A non-2xx status is returned as *StatusError.
func executeWrite(ctx context.Context, out io.Writer, log *zap.SugaredLogger, target write.Target, req write.Request) error {
	res, err := write.New(log).Write(ctx, target, req)
	if err != nil {
		log.Debugw("Write failed", "error", err)
		res = write.ResultFromError(err)
	}
	if err := display.Render(out, display.FormatJSON, res); err != nil {
		return err
	}
	if !res.Succeeded() {
		return &StatusError{StatusCode: res.StatusCode}
	}
	return nil
}
