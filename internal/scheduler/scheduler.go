// Package scheduler defines the interface a container engine backend must adhere to. The
// orchestrator uses it to start, stop, inspect, and stream logs from task execution containers
// without knowing which concrete engine is behind it.
package scheduler

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/clintjedwards/gofer-sub001/internal/models"
)

type EngineType string

const (
	// EngineDocker uses a local docker instance to schedule task executions.
	EngineDocker EngineType = "docker"
)

// ErrNoSuchContainer is returned when a container requested could not be located on the scheduler.
var ErrNoSuchContainer = errors.New("scheduler: entity not found")

// ErrNoSuchImage is returned when the requested container image could not be pulled.
var ErrNoSuchImage = errors.New("scheduler: docker image not found")

type StartContainerRequest struct {
	ID        string            // The schedulerID of the container; {ns}_{pipeline}_{run}_{task} for task executions.
	ImageName string            // The docker image repository endpoint of the container; tag can be included.
	EnvVars   map[string]string // Environment variables to be passed to the container.

	RegistryAuth *models.RegistryAuth // Credentials for pulling from a private registry.

	Entrypoint *[]string // Overrides the image's entrypoint when set.
	Command    *[]string // Overrides the image's default command when set.

	// AlwaysPull attempts to pull from the repository even if the image already exists locally.
	// Useful for images that don't use proper tagging or versioning.
	AlwaysPull bool

	// EnableNetworking exposes the container over a host-allocated port. Used by components that
	// need to reach the container over RPC.
	EnableNetworking bool
}

type StartContainerResponse struct {
	SchedulerID string // a unique way to identify the container that has started.
	URL         string // optional endpoint if EnableNetworking was used.
}

type StopContainerRequest struct {
	SchedulerID string        // unique identification for container to stop.
	Timeout     time.Duration // total time the scheduler should wait for a graceful stop before SIGKILL.
}

type GetStateRequest struct {
	SchedulerID string // unique identification for container to retrieve.
}

type GetStateResponse struct {
	ExitCode int
	State    models.ContainerState
}

type GetLogsRequest struct {
	SchedulerID string
}

type AttachContainerRequest struct {
	SchedulerID string
	Command     []string // command to exec inside the container; defaults to a shell if empty.
}

type AttachContainerResponse struct {
	Conn net.Conn // bidirectional stream connected to the attached process's stdio.
}

type Engine interface {
	// StartContainer launches a new container on the scheduler. Idempotent on ID: calling it
	// again for a container that is already running returns the existing container's identity
	// rather than erroring, so a recovery path can safely retry after a crash.
	StartContainer(request StartContainerRequest) (response StartContainerResponse, err error)

	// StopContainer attempts to stop a specific container. The scheduler should attempt a
	// graceful stop, unless the timeout is reached, in which case it force-kills.
	StopContainer(request StopContainerRequest) error

	// GetState returns the current state of the container translated to models.ContainerState.
	GetState(request GetStateRequest) (response GetStateResponse, err error)

	// GetLogs reads logs from the container and streams them back via an io.Reader. The reader
	// is closed once the container's log stream ends.
	GetLogs(request GetLogsRequest) (logs io.Reader, err error)

	// AttachContainer opens an interactive stream to a running container, for debugging.
	AttachContainer(request AttachContainerRequest) (response AttachContainerResponse, err error)
}
