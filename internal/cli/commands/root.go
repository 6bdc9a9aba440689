package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/etmur007/rainfall-risk-dashboard/internal/cli/ui"
)

const version = "0.1.0"

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     "explorer",
	Short:   "Well rainfall explorer",
	Version: version,
	Long: `Explore daily CHIRPS rainfall and the rolling 7-day sum for catalogued wells.
Fetch a date range interactively, chart a well, export the rows to CSV, or
serve the same exploration over HTTP for the dashboard.`,
	Example: `  # Fetch the default range, prompting for dates
  $ explorer fetch

  # Fetch a range without prompts and export it
  $ explorer fetch --start 2024-01-01 --end 2024-03-31 --yes

  # Also archive the observations in InfluxDB
  $ explorer fetch --yes --influx-addr http://localhost:8086

  # List catalogued wells
  $ explorer wells

  # Serve the dashboard API
  $ explorer serve`,
}

// Execute executes the root command
func Execute() error {
	rootCmd.SetVersionTemplate(formatVersion())
	return rootCmd.Execute()
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(wellsCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.SetUsageTemplate(usageTemplate())
	rootCmd.SetHelpTemplate(usageTemplate())
}

func usageTemplate() string {
	return `{{if .Long}}{{.Long}}

{{end}}` + ui.Styles.Bold.Render("USAGE") + `
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasExample}}` + ui.Styles.Bold.Render("EXAMPLES") + `
{{.Example}}

{{end}}{{if .HasAvailableSubCommands}}` + ui.Styles.Bold.Render("COMMANDS") + `{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableLocalFlags}}` + ui.Styles.Bold.Render("OPTIONS") + `
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
}

func formatVersion() string {
	return fmt.Sprintf("explorer version %s\n", version)
}
