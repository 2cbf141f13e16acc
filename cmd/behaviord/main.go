// cmd/behaviord/main.go
//
// This is the entry point for the behavior daemon.
// Every subcommand works on a project directory holding a .behaviors/ folder;
// the folder is created with default config on first use.
//
// Commands:
//   run           tick the behavior system manager against the simulated robot
//   monitor       same as run, with a live terminal monitor
//   validate      load config and plugins and print each activity's behaviors
//   status        print the last saved manager snapshot
//   use-activity  change the startup activity

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	project string
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "behaviord",
		Short:         "Run and inspect the robot behavior system",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.project, "project", "", "project directory (defaults to cwd)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "mirror logs to stderr")

	root.AddCommand(
		newRunCmd(flags),
		newMonitorCmd(flags),
		newValidateCmd(flags),
		newStatusCmd(flags),
		newUseActivityCmd(flags),
	)
	return root
}
