package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clintjedwards/gofer-sub001/internal/app"
	"github.com/clintjedwards/gofer-sub001/internal/config"
)

var cmdStart = &cobra.Command{
	Use:   "start",
	Short: "Start the run orchestrator",
	Long: `Start the run orchestrator.

This recovers any runs left in flight by a previous process, then blocks,
admitting and driving new runs, until it receives SIGINT or SIGTERM.`,
	RunE: start,
}

func start(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.InitConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("error in config initialization")
	}

	setupLogging(cfg.LogLevel, cfg.Development.PrettyLogging)

	app.StartOrchestrator(cfg)

	return nil
}

func setupLogging(logLevel string, pretty bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Logger()
	zerolog.SetGlobalLevel(parseLogLevel(logLevel))
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func parseLogLevel(logLevel string) zerolog.Level {
	switch logLevel {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		log.Error().Msgf("loglevel %s not recognized; defaulting to debug", logLevel)
		return zerolog.DebugLevel
	}
}
