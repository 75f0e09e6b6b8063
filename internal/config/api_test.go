package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Tests that our sample config is still valid. This test catches any extraneous parameters due
// to how HCL parsing works and should also catch any errant types.
func TestConfigSampleFromFile(t *testing.T) {
	hclconf := Config{}
	err := hclconf.FromFile("testdata/sample.hcl")
	if err != nil {
		t.Fatal(err)
	}

	expected := Config{
		EventLoopChannelSize: 100,
		LogLevel:             "info",
		RunLogExpiry:         20,
		TaskExecutionLogsDir: "/tmp",

		Database: &Database{
			MaxResultsLimit: 100,
			Path:            "/tmp/gofer.db",
		},

		ObjectStore: &ObjectStore{
			Engine: "sqlite",
			Sqlite: &Sqlite{
				Path: "/tmp/gofer-objects.db",
			},
			PipelineObjectLimit: 10,
			RunObjectExpiry:     20,
		},

		SecretStore: &SecretStore{
			Engine: "sqlite",
			Sqlite: &SqliteSecret{
				Path:          "/tmp/gofer-secrets.db",
				EncryptionKey: "changemechangemechangemechangeme",
			},
		},

		Scheduler: &Scheduler{
			Engine: "docker",
			Docker: &Docker{
				Prune:            true,
				PruneInterval:    time.Hour * 24,
				PruneIntervalHCL: "24h",
			},
		},

		Orchestrator: &Orchestrator{
			MaxConcurrentGlobalRuns:         200,
			PipelineRunConcurrencyLimit:     0,
			TaskExecutionStopTimeout:        time.Minute * 5,
			TaskExecutionStopTimeoutHCL:     "5m",
		},

		Server: &Server{
			DevMode:            false,
			ShutdownTimeout:    time.Second * 15,
			ShutdownTimeoutHCL: "15s",
			TmpDir:             "/tmp",
		},

		Development: &Development{
			BypassAuth: false,
		},
	}

	diff := cmp.Diff(expected, hclconf)
	if diff != "" {
		t.Errorf("result is different than expected(-want +got):\n%s", diff)
	}
}

func TestConfigSampleOverwriteWithEnvs(t *testing.T) {
	_ = os.Setenv("GOFER_EVENT_LOOP_CHANNEL_SIZE", "500")
	_ = os.Setenv("GOFER_DATABASE_MAX_RESULTS_LIMIT", "1000")
	_ = os.Setenv("GOFER_OBJECTSTORE_RUN_OBJECT_EXPIRY", "1000")
	_ = os.Setenv("GOFER_SCHEDULER_DOCKER_PRUNE", "false")
	_ = os.Setenv("GOFER_ORCHESTRATOR_MAX_CONCURRENT_GLOBAL_RUNS", "50")
	defer os.Unsetenv("GOFER_EVENT_LOOP_CHANNEL_SIZE")
	defer os.Unsetenv("GOFER_DATABASE_MAX_RESULTS_LIMIT")
	defer os.Unsetenv("GOFER_OBJECTSTORE_RUN_OBJECT_EXPIRY")
	defer os.Unsetenv("GOFER_SCHEDULER_DOCKER_PRUNE")
	defer os.Unsetenv("GOFER_ORCHESTRATOR_MAX_CONCURRENT_GLOBAL_RUNS")

	hclconf := Config{}
	err := hclconf.FromFile("testdata/sample.hcl")
	if err != nil {
		t.Fatal(err)
	}

	err = hclconf.FromEnv()
	if err != nil {
		t.Fatal(err)
	}

	if hclconf.EventLoopChannelSize != 500 {
		t.Errorf("expected event loop channel size to be overwritten by env; got %d", hclconf.EventLoopChannelSize)
	}

	if hclconf.Database.MaxResultsLimit != 1000 {
		t.Errorf("expected database max results limit to be overwritten by env; got %d", hclconf.Database.MaxResultsLimit)
	}

	if hclconf.ObjectStore.RunObjectExpiry != 1000 {
		t.Errorf("expected object store run object expiry to be overwritten by env; got %d", hclconf.ObjectStore.RunObjectExpiry)
	}

	if hclconf.Scheduler.Docker.Prune != false {
		t.Errorf("expected scheduler docker prune to be overwritten by env; got %v", hclconf.Scheduler.Docker.Prune)
	}

	if hclconf.Orchestrator.MaxConcurrentGlobalRuns != 50 {
		t.Errorf("expected orchestrator max concurrent global runs to be overwritten by env; got %d", hclconf.Orchestrator.MaxConcurrentGlobalRuns)
	}
}
