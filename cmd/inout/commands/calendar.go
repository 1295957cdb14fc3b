package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/inout/calendar"
	"github.com/teranos/inout/display"
	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/policy"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/resolve"
	"github.com/teranos/inout/write"
)

// CalendarCmd represents the calendar command
var CalendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Authorize and manage Google calendars",
	Long: `calendar - Authorize inout and manage your Google calendars

Examples:
  inout calendar auth                         # Authorize access, caches a token
  inout calendar ls                           # List your calendars
  inout calendar create "Team offsites"       # Create a calendar unless one has that name`,
}

var calendarAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to your calendars",
	Long: `Print the Google consent URL, read the authorization code and cache the token.

Requires [calendar] credentials_file: the client secrets JSON of an OAuth
desktop client from the Google Cloud console.`,
	Args: cobra.NoArgs,
	RunE: runCalendarAuth,
}

var calendarLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your calendars",
	Args:  cobra.NoArgs,
	RunE:  runCalendarLs,
}

var calendarCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a calendar",
	Long: `Create a calendar named <name>.

A calendar already carrying the same name is a conflict, handled by
--on-data-conflict (default fail).`,
	Args: cobra.ExactArgs(1),
	RunE: runCalendarCreate,
}

var (
	calendarFormat         string
	calendarDescription    string
	calendarTimeZone       string
	calendarOnDataConflict string
)

func init() {
	calendarLsCmd.Flags().StringVar(&calendarFormat, "format", "table", "Output format: table, json, yaml, toml")

	calendarCreateCmd.Flags().StringVar(&calendarDescription, "description", "", "Calendar description")
	calendarCreateCmd.Flags().StringVar(&calendarTimeZone, "time-zone", "", "IANA time zone, e.g. Europe/Amsterdam")
	calendarCreateCmd.Flags().StringVar(&calendarOnDataConflict, "on-data-conflict", "fail", "Policy when a calendar with this name exists")

	CalendarCmd.AddCommand(calendarAuthCmd)
	CalendarCmd.AddCommand(calendarLsCmd)
	CalendarCmd.AddCommand(calendarCreateCmd)
}

func runCalendarAuth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	calCfg := cfg.CalendarClient()

	conf, err := calendar.OAuthConfig(calCfg.CredentialsFile)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, "Open this URL in your browser and authorize inout:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  "+calendar.AuthURL(conf, uuid.NewString()))
	fmt.Fprintln(out)
	fmt.Fprint(out, "Paste the authorization code: ")

	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	code = strings.TrimSpace(code)
	if code == "" {
		if err != nil {
			return errors.Wrap(err, "read authorization code")
		}
		return errors.NewInvalidRequestError("no authorization code given")
	}

	if _, err := calendar.Exchange(cmd.Context(), conf, code, calCfg.TokenFile); err != nil {
		return err
	}
	pterm.Success.Printf("Token saved to %s\n", calCfg.TokenFile)
	return nil
}

func runCalendarLs(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(calendarFormat)
	if err != nil {
		return err
	}
	client, err := newCalendarClient(cmd)
	if err != nil {
		return err
	}
	calendars, err := client.ListCollections(cmd.Context())
	if err != nil {
		return err
	}
	if format != display.FormatTable {
		return display.Render(cmd.OutOrStdout(), format, calendars)
	}
	table, err := tableOf(calendars)
	if err != nil {
		return err
	}
	return display.RenderTable(cmd.OutOrStdout(), format, table)
}

func runCalendarCreate(cmd *cobra.Command, args []string) error {
	data, err := policy.Parse(calendarOnDataConflict)
	if err != nil {
		return errors.Wrap(err, "--on-data-conflict")
	}
	client, err := newCalendarClient(cmd)
	if err != nil {
		return err
	}
	return executeWrite(cmd.Context(), cmd.OutOrStdout(), Logger(), client.Calendars(), newCalendarRequest(args[0], data))
}

// newCalendarRequest describes the creation of one calendar, conflicting
// with existing calendars of the same name.
func newCalendarRequest(name string, data policy.Policy) write.Request {
	rec := record.Record{"summary": name}
	if calendarDescription != "" {
		rec["description"] = calendarDescription
	}
	if calendarTimeZone != "" {
		rec["timeZone"] = calendarTimeZone
	}
	return write.Request{
		Records:     []record.Record{rec},
		AssetPolicy: policy.Append,
		DataPolicy:  data,
		ConflictKey: resolve.Key{"summary"},
	}
}
