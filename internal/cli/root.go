// Package cli is the process entry point for the run orchestrator binary.
package cli

import (
	"github.com/spf13/cobra"
)

var appVersion = "0.0.dev_000000"

// RootCmd is the base of the cli.
var RootCmd = &cobra.Command{
	Use:   "gofer",
	Short: "Gofer drives pipeline runs through a DAG of task executions.",
	Long: `Gofer is a run orchestrator: it takes a "start this pipeline" request and
drives it through a DAG of task executions to terminal status, using a local
docker daemon to run each task as a short-lived container.

"start" runs the orchestrator process itself; "runs list" and "logs" are
read-only admin commands that inspect the same database and log directory
the orchestrator writes to.`,
	Version: " ",
}

func init() {
	RootCmd.AddCommand(cmdStart)
	RootCmd.PersistentFlags().String("config", "", "configuration file path")
}
