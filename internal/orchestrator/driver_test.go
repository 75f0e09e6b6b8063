package orchestrator

import (
	"testing"

	"github.com/clintjedwards/gofer-sub001/internal/models"
)

func TestCheckDependenciesSuccessRequirement(t *testing.T) {
	d := &driver{
		task: models.Task{
			DependsOn: map[string]models.RequiredParentStatus{
				"build": models.RequiredParentStatusSuccess,
			},
		},
		pendingParents: map[string]models.TaskExecutionStatus{
			"build": models.TaskExecutionStatusFailed,
		},
	}

	if err := d.checkDependencies(); err == nil {
		t.Fatal("expected error when a required-success parent failed")
	}

	d.pendingParents["build"] = models.TaskExecutionStatusSuccessful
	if err := d.checkDependencies(); err != nil {
		t.Fatalf("expected no error when required-success parent succeeded, got %v", err)
	}
}

func TestCheckDependenciesAnyRequirementAcceptsSkipped(t *testing.T) {
	d := &driver{
		task: models.Task{
			DependsOn: map[string]models.RequiredParentStatus{
				"lint": models.RequiredParentStatusAny,
			},
		},
		pendingParents: map[string]models.TaskExecutionStatus{
			"lint": models.TaskExecutionStatusSkipped,
		},
	}

	if err := d.checkDependencies(); err != nil {
		t.Fatalf("expected 'any' dependency to accept a skipped parent, got %v", err)
	}
}

func TestCheckDependenciesFailureRequirement(t *testing.T) {
	d := &driver{
		task: models.Task{
			DependsOn: map[string]models.RequiredParentStatus{
				"cleanup": models.RequiredParentStatusFailure,
			},
		},
		pendingParents: map[string]models.TaskExecutionStatus{
			"cleanup": models.TaskExecutionStatusSuccessful,
		},
	}

	if err := d.checkDependencies(); err == nil {
		t.Fatal("expected error when a required-failure parent succeeded instead")
	}
}

func TestAllParentsRecorded(t *testing.T) {
	d := &driver{
		task: models.Task{
			DependsOn: map[string]models.RequiredParentStatus{
				"a": models.RequiredParentStatusAny,
				"b": models.RequiredParentStatusAny,
			},
		},
	}

	partial := map[string]models.TaskExecutionStatus{"a": models.TaskExecutionStatusSuccessful}
	if d.allParentsRecorded(partial) {
		t.Fatal("expected false with one parent still unrecorded")
	}

	complete := map[string]models.TaskExecutionStatus{
		"a": models.TaskExecutionStatusSuccessful,
		"b": models.TaskExecutionStatusFailed,
	}
	if !d.allParentsRecorded(complete) {
		t.Fatal("expected true once every parent is recorded")
	}
}
