// Command explorer fetches, charts and exports well rainfall interactively,
// or serves the same exploration over HTTP.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/etmur007/rainfall-risk-dashboard/internal/cli/commands"
	"github.com/etmur007/rainfall-risk-dashboard/internal/cli/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		if strings.Contains(err.Error(), "unknown command") {
			ui.PrintError("%s", err.Error())
			fmt.Println("\nRun 'explorer --help' for usage.")
		}
		os.Exit(1)
	}
}
