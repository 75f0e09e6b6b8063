package orchestrator

import "testing"

func TestTaskExecutionContainerID(t *testing.T) {
	got := taskExecutionContainerID("prod", "build-pipe", 42, "compile")
	want := "prod_build-pipe_42_compile"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTaskExecutionLogPath(t *testing.T) {
	got := taskExecutionLogPath("/var/log/gofer", "prod", "build-pipe", 42, "compile")
	want := "/var/log/gofer/prod_build-pipe_42_compile.log"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInjectedTokenSecretKey(t *testing.T) {
	got := injectedTokenSecretKey(9)
	want := "gofer_api_token_run_id_9"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRunObjectKeyIsNamespacedSeparatelyFromPipelineObjectKey(t *testing.T) {
	run := runObjectKey("prod", "build-pipe", 1, "artifact")
	pipeline := pipelineObjectKey("prod", "build-pipe", "artifact")
	if run == pipeline {
		t.Error("expected run-scoped and pipeline-scoped object keys to differ")
	}
}
