package docker

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/scheduler"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
)

// Engine drives task execution containers through a local docker daemon.
type Engine struct {
	// cancelled keeps track of stopped containers. There is no way to differentiate a
	// container that was stopped by the orchestrator from one that exited naturally, so when a
	// container is stopped it's inserted here so that downstream GetState calls can relay the
	// cancellation to the caller.
	//
	// Cancellations are reaped after a day so that an unreaped entry (GetState never called
	// again after the stop) doesn't leak forever.
	cancelled map[string]time.Time
	*client.Client
}

const envvarFormat = "%s=%s"

func New(prune bool, pruneInterval time.Duration) (Engine, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return Engine{}, err
	}

	if _, err := docker.Info(context.Background()); err != nil {
		return Engine{}, fmt.Errorf("could not connect to docker; is docker installed?")
	}

	// Containers are left in place after they exit so they can be inspected for debugging, but
	// each one takes up disk space, so prune periodically.
	if prune {
		go func() {
			for {
				report, err := docker.ContainersPrune(context.Background(), filters.Args{})
				if err != nil {
					log.Debug().Err(err).Msg("docker: could not prune containers")
				}
				log.Debug().Int("containers_deleted", len(report.ContainersDeleted)).
					Uint64("space_reclaimed", report.SpaceReclaimed).Msg("docker: pruned containers")

				time.Sleep(pruneInterval)
			}
		}()
	}

	cancelled := map[string]time.Time{}
	go func() {
		for {
			for id, insertTime := range cancelled {
				if insertTime.Before(time.Now().AddDate(0, 0, -1)) {
					delete(cancelled, id)
				}
			}
			time.Sleep(time.Hour * 24)
		}
	}()

	return Engine{
		Client:    docker,
		cancelled: cancelled,
	}, nil
}

func (e *Engine) StartContainer(req scheduler.StartContainerRequest) (scheduler.StartContainerResponse, error) {
	ctx := context.Background()

	var dockerRegistryAuth string
	if req.RegistryAuth != nil {
		authString := fmt.Sprintf("%s:%s", req.RegistryAuth.User, req.RegistryAuth.Pass)
		dockerRegistryAuth = base64.StdEncoding.EncodeToString([]byte(authString))
	}

	if req.AlwaysPull {
		r, err := e.ImagePull(ctx, req.ImageName, types.ImagePullOptions{
			RegistryAuth: dockerRegistryAuth,
		})
		if err != nil {
			if strings.Contains(err.Error(), "manifest unknown") {
				return scheduler.StartContainerResponse{}, fmt.Errorf("image '%s' not found or missing auth: %w", req.ImageName, scheduler.ErrNoSuchImage)
			}
			return scheduler.StartContainerResponse{}, err
		}
		_, _ = io.Copy(io.Discard, r)
		defer r.Close() // We don't care about pull logs, only the errors.
	} else {
		list, _ := e.ImageList(ctx, types.ImageListOptions{
			Filters: filters.NewArgs(filters.KeyValuePair{
				Key: "reference", Value: req.ImageName,
			}),
		})

		if len(list) == 0 {
			r, err := e.ImagePull(ctx, req.ImageName, types.ImagePullOptions{
				RegistryAuth: dockerRegistryAuth,
			})
			if err != nil {
				if strings.Contains(err.Error(), "manifest unknown") {
					return scheduler.StartContainerResponse{}, fmt.Errorf("image '%s' not found or missing auth: %w", req.ImageName, scheduler.ErrNoSuchImage)
				}
				return scheduler.StartContainerResponse{}, err
			}
			_, _ = io.Copy(io.Discard, r)
			defer r.Close()
		}
	}

	containerConfig := &container.Config{
		Image:        req.ImageName,
		Env:          convertEnvVars(req.EnvVars),
		ExposedPorts: nat.PortSet{},
	}

	if req.Entrypoint != nil {
		containerConfig.Entrypoint = *req.Entrypoint
	}
	if req.Command != nil {
		containerConfig.Cmd = *req.Command
	}

	hostConfig := &container.HostConfig{}

	if req.EnableNetworking {
		port, err := nat.NewPort("tcp", "8080")
		if err != nil {
			return scheduler.StartContainerResponse{}, err
		}
		containerConfig.ExposedPorts = nat.PortSet{port: struct{}{}}

		hostConfig.PortBindings = nat.PortMap{
			"8080/tcp": []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0", // Allocate from the free ephemeral range.
				},
			},
		}
	}

	// start_container is idempotent on ID: a leftover container from a previous attempt at the
	// same id is removed first rather than treated as a conflict.
	_ = e.ContainerRemove(ctx, req.ID, types.ContainerRemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})

	createResp, err := e.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, req.ID)
	if err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	if err := e.ContainerStart(ctx, createResp.ID, types.ContainerStartOptions{}); err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	containerInfo, err := e.ContainerInspect(ctx, createResp.ID)
	if err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	if len(containerInfo.NetworkSettings.Ports) == 0 && req.EnableNetworking {
		return scheduler.StartContainerResponse{
			SchedulerID: createResp.ID,
		}, fmt.Errorf("could not start container; check logs for errors")
	}

	rawHostPort := nat.PortBinding{}
	if req.EnableNetworking {
		rawHostPort = containerInfo.NetworkSettings.Ports["8080/tcp"][0]
	}

	return scheduler.StartContainerResponse{
		SchedulerID: createResp.ID,
		URL:         fmt.Sprintf("%s:%s", rawHostPort.HostIP, rawHostPort.HostPort),
	}, nil
}

func (e *Engine) StopContainer(req scheduler.StopContainerRequest) error {
	ctx := context.Background()

	e.cancelled[req.SchedulerID] = time.Now()

	err := e.ContainerStop(ctx, req.SchedulerID, &req.Timeout)
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.ErrNoSuchContainer
		}
		return err
	}

	return nil
}

func (e *Engine) GetState(gs scheduler.GetStateRequest) (scheduler.GetStateResponse, error) {
	containerInfo, err := e.ContainerInspect(context.Background(), gs.SchedulerID)
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.GetStateResponse{
				ExitCode: 0,
				State:    models.ContainerStateUnknown,
			}, scheduler.ErrNoSuchContainer
		}

		return scheduler.GetStateResponse{
			ExitCode: 0,
			State:    models.ContainerStateUnknown,
		}, err
	}

	switch containerInfo.State.Status {
	case "created", "running":
		return scheduler.GetStateResponse{
			ExitCode: 0,
			State:    models.ContainerStateRunning,
		}, nil
	case "exited":
		_, wasCancelled := e.cancelled[gs.SchedulerID]
		if wasCancelled {
			return scheduler.GetStateResponse{
				ExitCode: containerInfo.State.ExitCode,
				State:    models.ContainerStateCancelled,
			}, nil
		}
		delete(e.cancelled, gs.SchedulerID)

		if containerInfo.State.ExitCode == 0 {
			return scheduler.GetStateResponse{
				ExitCode: containerInfo.State.ExitCode,
				State:    models.ContainerStateSuccess,
			}, nil
		}

		return scheduler.GetStateResponse{
			ExitCode: containerInfo.State.ExitCode,
			State:    models.ContainerStateFailed,
		}, nil
	default:
		log.Debug().Str("state", containerInfo.State.Status).Msg("abnormal container state")
		return scheduler.GetStateResponse{
			ExitCode: 0,
			State:    models.ContainerStateUnknown,
		}, nil
	}
}

// GetLogs streams the logs from a docker container to an io.Reader.
//
// Docker multiplexes stdout/stderr onto a single stream in a custom framing, so the de-
// multiplexing is done by stdcopy.StdCopy. Since the result still needs to be streamed to the
// caller rather than buffered, it's piped through an io.Pipe: each write blocks until the caller
// reads it.
func (e *Engine) GetLogs(gl scheduler.GetLogsRequest) (io.Reader, error) {
	demuxr, demuxw := io.Pipe()

	out, err := e.ContainerLogs(context.Background(), gl.SchedulerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return nil, scheduler.ErrNoSuchContainer
		}
		return nil, err
	}

	go func() {
		byteCount, err := stdcopy.StdCopy(demuxw, demuxw, out)
		if err != nil {
			log.Error().Err(err).Msg("docker: could not demultiplex/parse log stream")
		}
		demuxw.Close()
		log.Debug().Int64("bytes_written", byteCount).Msg("docker: finished demultiplexing")
	}()

	return demuxr, nil
}

// AttachContainer execs into a running container and hands back a bidirectional connection to
// its stdio. Used for debugging; defaults to dropping the caller into a shell.
func (e *Engine) AttachContainer(req scheduler.AttachContainerRequest) (scheduler.AttachContainerResponse, error) {
	ctx := context.Background()

	cmd := []string{"sh"}
	if len(req.Command) != 0 {
		cmd = req.Command
	}

	execID, err := e.ContainerExecCreate(ctx, req.SchedulerID, types.ExecConfig{
		Cmd:          cmd,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.AttachContainerResponse{}, scheduler.ErrNoSuchContainer
		}
		return scheduler.AttachContainerResponse{}, err
	}

	hijacked, err := e.ContainerExecAttach(ctx, execID.ID, types.ExecStartCheck{Tty: true})
	if err != nil {
		return scheduler.AttachContainerResponse{}, err
	}

	return scheduler.AttachContainerResponse{
		Conn: hijacked.Conn,
	}, nil
}

func convertEnvVars(envvars map[string]string) []string {
	output := []string{}
	for key, value := range envvars {
		output = append(output, fmt.Sprintf(envvarFormat, key, value))
	}

	return output
}
