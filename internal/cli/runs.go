package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clintjedwards/gofer-sub001/internal/config"
	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

var cmdRuns = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline runs",
}

var cmdRunsList = &cobra.Command{
	Use:   "list <namespace> <pipeline>",
	Short: "List runs for a pipeline",
	Args:  cobra.ExactArgs(2),
	RunE:  runsList,
}

func init() {
	cmdRunsList.Flags().IntP("limit", "l", 10, "limit the amount of results returned")
	cmdRuns.AddCommand(cmdRunsList)
	RootCmd.AddCommand(cmdRuns)
}

func runsList(cmd *cobra.Command, args []string) error {
	namespace, pipeline := args[0], args[1]

	limit, _ := cmd.Flags().GetInt("limit")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.InitConfig(configPath)
	if err != nil {
		return fmt.Errorf("error in config initialization: %w", err)
	}

	db, err := storage.New(cfg.Database.Path, cfg.Database.MaxResultsLimit)
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}

	runs, err := db.ListPipelineRuns(db, 0, limit, namespace, pipeline)
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	data := make([][]string, 0, len(runs))
	for _, runRow := range runs {
		run := models.RunFromStorage(&runRow)
		data = append(data, []string{
			fmt.Sprint(run.RunID),
			colorizeRunState(run.State),
			colorizeRunStatus(run.Status),
			unixMilli(run.Started, "Never"),
			duration(run.Started, run.Ended),
		})
	}

	fmt.Println(formatTable([]string{"ID", "State", "Status", "Started", "Duration"}, data, true))

	return nil
}
