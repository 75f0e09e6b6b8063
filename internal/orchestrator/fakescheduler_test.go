package orchestrator

import (
	"io"
	"strings"
	"sync"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/scheduler"
)

// fakeScheduler is an in-memory scheduler.Engine test double. A container's
// terminal state is decided by its StartContainerRequest.ImageName so tests
// can script a task's outcome just by naming an image: "fail" containers
// report Failed, everything else reports Success. Containers never asked to
// start are reported ErrNoSuchContainer, matching a real scheduler that has
// no record of an id it never saw.
type fakeScheduler struct {
	mu         sync.Mutex
	containers map[string]*fakeContainer
}

type fakeContainer struct {
	state    models.ContainerState
	exitCode int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{containers: map[string]*fakeContainer{}}
}

func (f *fakeScheduler) StartContainer(request scheduler.StartContainerRequest) (scheduler.StartContainerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.containers[request.ID]; !exists {
		state := models.ContainerStateSuccess
		exitCode := 0
		if strings.Contains(request.ImageName, "fail") {
			state = models.ContainerStateFailed
			exitCode = 1
		}

		f.containers[request.ID] = &fakeContainer{state: state, exitCode: exitCode}
	}

	return scheduler.StartContainerResponse{SchedulerID: request.ID}, nil
}

func (f *fakeScheduler) StopContainer(request scheduler.StopContainerRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, exists := f.containers[request.SchedulerID]; exists {
		c.state = models.ContainerStateCancelled
	}

	return nil
}

func (f *fakeScheduler) GetState(request scheduler.GetStateRequest) (scheduler.GetStateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, exists := f.containers[request.SchedulerID]
	if !exists {
		return scheduler.GetStateResponse{}, scheduler.ErrNoSuchContainer
	}

	return scheduler.GetStateResponse{State: c.state, ExitCode: c.exitCode}, nil
}

func (f *fakeScheduler) GetLogs(request scheduler.GetLogsRequest) (io.Reader, error) {
	return strings.NewReader(""), nil
}

func (f *fakeScheduler) AttachContainer(request scheduler.AttachContainerRequest) (scheduler.AttachContainerResponse, error) {
	return scheduler.AttachContainerResponse{}, scheduler.ErrNoSuchContainer
}
