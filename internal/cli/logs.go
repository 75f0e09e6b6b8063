package cli

import (
	"errors"
	"fmt"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"github.com/clintjedwards/gofer-sub001/internal/config"
	"github.com/clintjedwards/gofer-sub001/internal/orchestrator"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

var cmdLogs = &cobra.Command{
	Use:   "logs <namespace> <pipeline> <run> <task>",
	Short: "Print (and optionally follow) a task execution's log file",
	Long: `Print a task execution's on-disk log file.

With --follow, tails the file past its current end-of-file the same way the
driver's own log pump writes to it, and stops automatically once it reaches
the GOFER_EOF sentinel line.`,
	Args: cobra.ExactArgs(4),
	RunE: logs,
}

func init() {
	cmdLogs.Flags().BoolP("follow", "f", false, "keep reading the file as it grows")
	RootCmd.AddCommand(cmdLogs)
}

func logs(cmd *cobra.Command, args []string) error {
	namespace, pipeline, run, task := args[0], args[1], args[2], args[3]

	var runID int64
	if _, err := fmt.Sscanf(run, "%d", &runID); err != nil {
		return fmt.Errorf("could not parse run id %q: %w", run, err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.InitConfig(configPath)
	if err != nil {
		return fmt.Errorf("error in config initialization: %w", err)
	}

	db, err := storage.New(cfg.Database.Path, cfg.Database.MaxResultsLimit)
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}

	execution, err := db.GetPipelineTaskExecution(db, namespace, pipeline, runID, task)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("task execution not found")
		}
		return err
	}

	if execution.LogsExpired {
		return fmt.Errorf("task execution logs have expired and are no longer available")
	}
	if execution.LogsRemoved {
		return fmt.Errorf("task execution logs have been removed and are no longer available")
	}

	follow, _ := cmd.Flags().GetBool("follow")

	path := orchestrator.TaskExecutionLogPath(cfg.TaskExecutionLogsDir, namespace, pipeline, runID, task)

	file, err := tail.TailFile(path, tail.Config{Follow: follow, Logger: tail.DiscardingLogger})
	if err != nil {
		return fmt.Errorf("error opening task execution log file: %w", err)
	}
	defer file.Stop()

	for line := range file.Lines {
		if line.Text == orchestrator.LogEOF {
			return nil
		}
		fmt.Println(line.Text)
	}

	return nil
}
