package docker

import (
	"testing"
	"time"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/scheduler"
)

func TestStartContainer(t *testing.T) {
	engine, err := New(false, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	containerID := "test_container_name"

	_, err = engine.StartContainer(scheduler.StartContainerRequest{
		ID:        containerID,
		ImageName: "ubuntu:latest",
		Command:   &[]string{"sleep", "2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(time.Second)

	resp, err := engine.GetState(scheduler.GetStateRequest{
		SchedulerID: containerID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.State != models.ContainerStateRunning {
		t.Fatalf("container in incorrect state; should be %s; found %s", models.ContainerStateRunning, resp.State)
	}
}
