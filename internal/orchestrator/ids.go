package orchestrator

import (
	"fmt"
	"path/filepath"
)

// LogEOF is the sentinel line a log pump appends once a task execution's
// log stream has ended. Readers must treat it as end-of-stream, not as log
// content, since it's the only way to tell "still writing" from "done".
const LogEOF = "GOFER_EOF"

// taskExecutionContainerID builds the scheduler container id for a task
// execution. Namespace/pipeline/task ids use hyphens; underscores separate
// id segments so the id can be split unambiguously.
func taskExecutionContainerID(namespace, pipeline string, run int64, task string) string {
	return fmt.Sprintf("%s_%s_%d_%s", namespace, pipeline, run, task)
}

// taskExecutionLogPath returns the on-disk path for a task execution's log
// file.
func taskExecutionLogPath(logsDir, namespace, pipeline string, run int64, task string) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s_%s_%d_%s.log", namespace, pipeline, run, task))
}

// TaskExecutionLogPath exposes taskExecutionLogPath to callers outside the
// package, namely the `gofer logs` command, which reads the same file the
// Task Execution Driver's log pump writes to.
func TaskExecutionLogPath(logsDir, namespace, pipeline string, run int64, task string) string {
	return taskExecutionLogPath(logsDir, namespace, pipeline, run, task)
}

// pipelineSecretKey namespaces a secret store key to a single pipeline.
func pipelineSecretKey(namespace, pipeline, key string) string {
	return fmt.Sprintf("%s_%s_%s", namespace, pipeline, key)
}

// pipelineObjectKey namespaces an object store key to a single pipeline.
func pipelineObjectKey(namespace, pipeline, key string) string {
	return fmt.Sprintf("%s_%s_%s", namespace, pipeline, key)
}

// runObjectKey namespaces an object store key to a single run.
func runObjectKey(namespace, pipeline string, run int64, key string) string {
	return fmt.Sprintf("%s_%s_%d_%s", namespace, pipeline, run, key)
}

// injectedTokenSecretKey is the pipeline-secret key the plaintext of an
// auto-injected run token is stored under.
func injectedTokenSecretKey(run int64) string {
	return fmt.Sprintf("gofer_api_token_run_id_%d", run)
}

func ptr[T any](v T) *T {
	return &v
}
