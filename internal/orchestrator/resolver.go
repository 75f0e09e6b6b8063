package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clintjedwards/gofer-sub001/internal/models"
)

// Variable interpolation tokens. A value matches at most one of these; the
// whole value is replaced with whatever the referenced store returns.
var (
	secretTokenRe   = regexp.MustCompile(`^secret\{\{\s*(.+?)\s*\}\}$`)
	pipelineTokenRe = regexp.MustCompile(`^pipeline\{\{\s*(.+?)\s*\}\}$`)
	runTokenRe      = regexp.MustCompile(`^run\{\{\s*(.+?)\s*\}\}$`)
)

// resolveVariables combines system-injected, task-static, and run-supplied
// variables for one task execution and interpolates any secret/object store
// references found in the merged values. Ascending precedence: system <
// task static < run-supplied. Runs only after the task's gate phase, so
// upstream tasks have already had a chance to deposit run-scoped objects
// this task might reference.
func (o *Orchestrator) resolveVariables(pipeline models.PipelineMetadata, run models.Run, task models.Task) ([]models.Variable, error) {
	merged := map[string]models.Variable{}

	set := func(key, value string, source models.VariableSource) {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" {
			return
		}
		merged[key] = models.Variable{Key: key, Value: value, Source: source}
	}

	set("GOFER_PIPELINE_ID", pipeline.ID, models.VariableSourceSystem)
	set("GOFER_RUN_ID", fmt.Sprint(run.RunID), models.VariableSourceSystem)
	set("GOFER_TASK_ID", task.ID, models.VariableSourceSystem)
	set("GOFER_TASK_IMAGE", task.Image, models.VariableSourceSystem)

	if task.InjectAPIToken {
		set("GOFER_TOKEN", fmt.Sprintf("secret{{ %s }}", injectedTokenSecretKey(run.RunID)), models.VariableSourceSystem)
	}

	for key, value := range task.Variables {
		set(key, value, models.VariableSourcePipelineConfig)
	}

	for _, variable := range run.Variables {
		set(variable.Key, variable.Value, models.VariableSourceRunOptions)
	}

	for key, variable := range merged {
		resolved, err := o.interpolateVariable(pipeline.NamespaceID, pipeline.ID, run.RunID, variable.Value)
		if err != nil {
			return nil, fmt.Errorf("could not resolve variable %q: %w", key, err)
		}

		variable.Value = resolved
		merged[key] = variable
	}

	out := make([]models.Variable, 0, len(merged))
	for _, variable := range merged {
		out = append(out, variable)
	}

	return out, nil
}

// interpolateVariable replaces value with the content of whichever store it
// references, if any. A value with no recognized token is returned as-is.
func (o *Orchestrator) interpolateVariable(namespace, pipeline string, run int64, value string) (string, error) {
	if match := secretTokenRe.FindStringSubmatch(value); match != nil {
		return o.secretStore.GetSecret(pipelineSecretKey(namespace, pipeline, match[1]))
	}

	if match := pipelineTokenRe.FindStringSubmatch(value); match != nil {
		raw, err := o.objectStore.GetObject(pipelineObjectKey(namespace, pipeline, match[1]))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	if match := runTokenRe.FindStringSubmatch(value); match != nil {
		raw, err := o.objectStore.GetObject(runObjectKey(namespace, pipeline, run, match[1]))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	return value, nil
}
