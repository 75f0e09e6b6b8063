package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/kelseyhightower/envconfig"
)

// Config controls the overall configuration of the run orchestrator process.
type Config struct {
	// Controls how large the buffer space for each Event Bus subscriber channel is.
	EventLoopChannelSize int64 `split_words:"true" hcl:"event_loop_channel_size,optional"`

	// Log level affects the entire application's logs.
	LogLevel string `split_words:"true" hcl:"log_level,optional"`

	// The total number of completed runs per pipeline before the oldest run's task execution
	// logs start being deleted.
	RunLogExpiry int `split_words:"true" hcl:"run_log_expiry,optional"`

	// Directory task execution log files are written to.
	TaskExecutionLogsDir string `split_words:"true" hcl:"task_execution_logs_dir,optional"`

	Database     *Database     `hcl:"database,block"`
	ObjectStore  *ObjectStore  `hcl:"object_store,block"`
	SecretStore  *SecretStore  `hcl:"secret_store,block"`
	Scheduler    *Scheduler    `hcl:"scheduler,block"`
	Orchestrator *Orchestrator `hcl:"orchestrator,block"`
	Server       *Server       `hcl:"server,block"`
	Development  *Development  `hcl:"development,block"`
	Extensions   *Extensions   `hcl:"extensions,block"`
}

func DefaultConfig() *Config {
	return &Config{
		EventLoopChannelSize: 100,
		LogLevel:             "debug",
		RunLogExpiry:         20,
		TaskExecutionLogsDir: "/tmp",

		Database:     DefaultDatabaseConfig(),
		ObjectStore:  DefaultObjectStoreConfig(),
		SecretStore:  DefaultSecretStoreConfig(),
		Scheduler:    DefaultSchedulerConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Server:       DefaultServerConfig(),
		Development:  DefaultDevelopmentConfig(),
		Extensions:   DefaultExtensionsConfig(),
	}
}

// Orchestrator controls the run orchestrator's admission and concurrency settings.
type Orchestrator struct {
	// MaxConcurrentGlobalRuns bounds how many runs may be actively executing across all
	// pipelines at once. The admission gate blocks on a semaphore sized to this.
	MaxConcurrentGlobalRuns int64 `split_words:"true" hcl:"max_concurrent_global_runs,optional"`

	// PipelineRunConcurrencyLimit is the default per-pipeline concurrent-run cap used when a
	// pipeline config's own `parallelism` is 0 (unlimited). 0 here means no default cap either.
	PipelineRunConcurrencyLimit int64 `split_words:"true" hcl:"pipeline_run_concurrency_limit,optional"`

	// TaskExecutionStopTimeout controls how long the scheduler waits for a task execution
	// container to gracefully stop before it is forcefully terminated. A negative duration
	// ("-1s") means wait indefinitely.
	TaskExecutionStopTimeout time.Duration `split_words:"true"`

	// TaskExecutionStopTimeoutHCL is the HCL compatible counterpart to TaskExecutionStopTimeout.
	// It allows parsing a string into a time.Duration since HCL cannot parse durations directly.
	TaskExecutionStopTimeoutHCL string `ignored:"true" hcl:"task_execution_stop_timeout,optional"`
}

func DefaultOrchestratorConfig() *Orchestrator {
	return &Orchestrator{
		MaxConcurrentGlobalRuns:     200,
		PipelineRunConcurrencyLimit: 0,
		TaskExecutionStopTimeout:    mustParseDuration("5m"),
	}
}

// Server represents process-lifecycle settings for the `gofer serve` command.
type Server struct {
	// DevMode turns on humanized debug messages and other convenient features for development.
	// Usually turned on alongside LogLevel=debug.
	DevMode bool `hcl:"dev_mode,optional"`

	// How long the process waits for in-flight runs to reach a safe checkpoint before exiting.
	ShutdownTimeout time.Duration `split_words:"true"`

	// ShutdownTimeoutHCL is the HCL compatible counterpart to ShutdownTimeout.
	ShutdownTimeoutHCL string `ignored:"true" hcl:"shutdown_timeout,optional"`

	// Temporary storage for downloaded pipeline configs.
	TmpDir string `split_words:"true" hcl:"tmp_dir,optional"`
}

func DefaultServerConfig() *Server {
	return &Server{
		DevMode:         true,
		ShutdownTimeout: mustParseDuration("15s"),
		TmpDir:          "/tmp",
	}
}

// Development holds settings only meant to be toggled during local development.
type Development struct {
	// BypassAuth disables token validation entirely. Never enable outside a local sandbox.
	BypassAuth bool `split_words:"true" hcl:"bypass_auth,optional"`

	// PrettyLogging switches the logger from structured JSON to a human-readable console
	// writer. Usually turned on alongside LogLevel=debug.
	PrettyLogging bool `split_words:"true" hcl:"pretty_logging,optional"`
}

func DefaultDevelopmentConfig() *Development {
	return &Development{
		BypassAuth:    false,
		PrettyLogging: true,
	}
}

// Extensions is a placeholder for the wider system's extension registry. The run orchestrator
// core does not launch or manage extensions itself; it only needs to know their event kinds are
// a superset of the ones it emits, so this block stays empty for now.
type Extensions struct{}

func DefaultExtensionsConfig() *Extensions {
	return &Extensions{}
}

// FromEnv parses environment variables into the config object based on envconfig name.
func (c *Config) FromEnv() error {
	return envconfig.Process("gofer", c)
}

// FromBytes attempts to parse a given HCL configuration.
func (c *Config) FromBytes(content []byte) error {
	err := hclsimple.Decode("config.hcl", content, nil, c)
	if err != nil {
		return err
	}

	c.convertDurationFromHCL()

	return nil
}

func (c *Config) FromFile(path string) error {
	err := hclsimple.DecodeFile(path, nil, c)
	if err != nil {
		return err
	}

	c.convertDurationFromHCL()

	return nil
}

// convertDurationFromHCL moves the string value of a duration written in HCL over to the real
// time.Duration field. Needed because HCL doesn't parse directly into time.Duration:
// https://github.com/hashicorp/hcl/issues/202
func (c *Config) convertDurationFromHCL() {
	if c.Server != nil && c.Server.ShutdownTimeoutHCL != "" {
		c.Server.ShutdownTimeout = mustParseDuration(c.Server.ShutdownTimeoutHCL)
	}

	if c.Orchestrator != nil && c.Orchestrator.TaskExecutionStopTimeoutHCL != "" {
		c.Orchestrator.TaskExecutionStopTimeout = mustParseDuration(c.Orchestrator.TaskExecutionStopTimeoutHCL)
	}

	if c.Scheduler != nil && c.Scheduler.Docker != nil && c.Scheduler.Docker.PruneIntervalHCL != "" {
		c.Scheduler.Docker.PruneInterval = mustParseDuration(c.Scheduler.Docker.PruneIntervalHCL)
	}
}

// Get the final configuration for the process.
//
// 1) The function is intended to be called with paths gleaned from the -config flag.
// 2) Combine that with possible other config locations the user might store a config file at.
// 3) Check whether the user has set an envvar for the config file, which overrides all previous
//    config file paths.
// 4) Pass back whatever is deemed the final config path from that process.
//
// We then use that path to find the config file and read it in via HCL. Once that's done we take
// any configuration from the environment and superimpose it on top of the final config struct.
func InitConfig(userDefinedPath string) (*Config, error) {
	config := DefaultConfig()

	homeDir, _ := os.UserHomeDir()
	path := searchFilePaths(append(possibleConfigPaths(homeDir, userDefinedPath), "/etc/gofer/gofer.hcl")...)

	// Envvars top all other entries, so if it's not empty we insert it over the current path
	// regardless of whether we found one.
	envPath := os.Getenv("GOFER_CONFIG_PATH")
	if envPath != "" {
		path = envPath
	}

	if path != "" {
		if err := config.FromFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.FromEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

func PrintEnvs() error {
	var config Config
	if err := envconfig.Usage("gofer", &config); err != nil {
		return err
	}
	fmt.Println("GOFER_CONFIG_PATH")

	return nil
}
