package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/inout/am"
	"github.com/teranos/inout/display"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage inout configuration",
	Long: `am - Manage inout configuration

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/inout/am.toml)
3. User config (~/.inout/am.toml)
4. Project config (nearest ./am.toml, searching up directories)
5. Environment variables (INOUT_* prefix, e.g. INOUT_POSTGRES_DSN)

Examples:
  inout am show                       # Show current configuration
  inout am show --format json         # Show configuration in JSON format
  inout am show --sources             # Show where every value comes from
  inout am get cassandra.hosts        # Get specific config value
  inout am set write.on_data_conflict ignore
  inout am validate                   # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration merged from all sources. Secrets are masked.",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., sqlite.path, cassandra.hosts)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in ~/.inout/am.toml",
	Long:  "Set a configuration value in the user config file. Lists are comma separated.",
	Args:  cobra.ExactArgs(2),
	RunE:  runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var (
	configFormat  string
	configSources bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&configSources, "sources", false, "List every setting with the source that set it")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(configFormat)
	if err != nil {
		return err
	}

	if configSources {
		settings := am.Introspect()
		// a table unless a format was asked for
		if cmd.Flags().Changed("format") && format != display.FormatTable {
			return display.Render(cmd.OutOrStdout(), format, settings)
		}
		table, err := tableOf(settings)
		if err != nil {
			return err
		}
		table.Columns = []string{"key", "value", "source", "source_path"}
		return display.RenderTable(cmd.OutOrStdout(), display.FormatTable, table)
	}

	if format == display.FormatTable {
		format = display.FormatTOML
	}
	if format == display.FormatTOML {
		fmt.Fprintln(cmd.OutOrStdout(), "# inout configuration")
	}
	return display.Render(cmd.OutOrStdout(), format, am.Redacted())
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), display.Cell(am.Get(key)))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path, err := am.Set(args[0], args[1])
	if err != nil {
		return err
	}
	if _, err := loadConfig(); err != nil {
		return err
	}
	pterm.Success.Printf("%s = %s written to %s\n", args[0], args[1], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}
