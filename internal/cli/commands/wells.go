package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/etmur007/rainfall-risk-dashboard/internal/cli/ui"
)

// wellsCmd lists the catalog
var wellsCmd = &cobra.Command{
	Use:          "wells",
	Short:        "list catalogued wells",
	Long:         `List the wells in CATALOG_PATH after coordinate deduplication.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderWells(e.wells))
		return nil
	},
}
