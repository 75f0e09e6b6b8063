// Command gofer runs the pipeline run orchestrator.
package main

import (
	"os"

	"github.com/clintjedwards/gofer-sub001/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
