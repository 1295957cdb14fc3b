package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teranos/inout/cmd/inout/commands"
	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/logger"
)

var rootCmd = &cobra.Command{
	Use:   "inout",
	Short: "inout - move records in and out of postgres, sqlite, cassandra and Google Calendar",
	Long: `inout - move records in and out of postgres, sqlite, cassandra and Google Calendar.

Reads run a query and print a table. Writes load records from a file and
apply conflict policies at two levels: the target (table, calendar) and the
records inside it. Every write prints a {status_code, msg, data} envelope.

Available commands:
  query    - Read from a backend
  write    - Write records into a backend
  calendar - Authorize and manage Google calendars
  am       - Manage inout configuration
  version  - Show version information

Examples:
  inout query sqlite "SELECT * FROM people"
  inout write sqlite --table people --input people.csv --create-if-missing
  inout calendar auth
  inout am show --sources`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		cmd.SetContext(logger.WithRequestID(cmd.Context(), uuid.NewString()))
		return commands.SetupLogger(verbosity, jsonLogs)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.WriteCmd)
	rootCmd.AddCommand(commands.CalendarCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Sync(commands.Logger())
	if err == nil {
		return
	}

	var statusErr *commands.StatusError
	if !errors.As(err, &statusErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hints := errors.FlattenHints(err); hints != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hints)
		}
	}
	os.Exit(1)
}
