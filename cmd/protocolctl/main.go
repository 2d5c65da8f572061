// Command protocolctl checks protocol documents and catalog matches offline,
// without a database or a generator.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// errFailed marks a command that ran correctly but reported a negative result.
var errFailed = errors.New("check failed")

func newRootCmd() *cobra.Command {
	var noColor bool
	root := &cobra.Command{
		Use:           "protocolctl",
		Short:         "Offline tools for fitness protocols",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.AddCommand(validateCmd(), matchCmd(), promptCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error:"), err)
		}
		os.Exit(1)
	}
}
