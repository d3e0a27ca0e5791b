package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.ContainerRuntime = (*Adapter)(nil)

// apiClient is the subset of the Docker SDK the adapter uses.
type apiClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, id string, options container.StartOptions) error
	ContainerStop(ctx context.Context, id string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, id string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, id string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error)
	ContainerStatsOneShot(ctx context.Context, id string) (types.ContainerStats, error)
	ContainerLogs(ctx context.Context, id string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerExecCreate(ctx context.Context, id string, config types.ExecConfig) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error)

	ServerVersion(ctx context.Context) (types.Version, error)
	Info(ctx context.Context) (system.Info, error)
	ImageList(ctx context.Context, options types.ImageListOptions) ([]image.Summary, error)
	ImageRemove(ctx context.Context, id string, options types.ImageRemoveOptions) ([]image.DeleteResponse, error)
	NetworkList(ctx context.Context, options types.NetworkListOptions) ([]types.NetworkResource, error)
	NetworkCreate(ctx context.Context, name string, options types.NetworkCreate) (types.NetworkCreateResponse, error)
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error)
}

// Adapter implements ports.ContainerRuntime using Docker SDK
type Adapter struct {
	cli         apiClient
	stopTimeout time.Duration
}

// NewAdapter creates a new Docker adapter instance
func NewAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, stopTimeout: 10 * time.Second}, nil
}

// ListContainers returns every container known to the daemon, running or not.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	result := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		ip := ""
		if c.NetworkSettings != nil {
			for _, n := range c.NetworkSettings.Networks {
				if n != nil && n.IPAddress != "" {
					ip = n.IPAddress
					break
				}
			}
		}

		result = append(result, domain.Container{
			ID:        shortID(c.ID),
			Name:      name,
			Image:     c.Image,
			Status:    c.Status,
			State:     c.State,
			IPAddress: ip,
		})
	}
	return result, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// PullImage pulls ref, decoding the daemon's JSON progress stream. A pull
// that fails midway is reported through an error message in the stream.
func (a *Adapter) PullImage(ctx context.Context, ref string, progress func(domain.PullProgress)) error {
	reader, err := a.cli.ImagePull(ctx, ref, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	dec := json.NewDecoder(reader)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read pull progress: %w", err)
		}
		if msg.Error != nil {
			return fmt.Errorf("failed to pull image: %s", msg.Error.Message)
		}
		if msg.ErrorMessage != "" {
			return fmt.Errorf("failed to pull image: %s", msg.ErrorMessage)
		}
		if progress == nil {
			continue
		}
		p := domain.PullProgress{ID: msg.ID, Status: msg.Status}
		if msg.Progress != nil {
			p.Current, p.Total = msg.Progress.Current, msg.Progress.Total
		}
		progress(p)
	}
}

// CreateContainer creates (but does not start) a container from spec.
func (a *Adapter) CreateContainer(ctx context.Context, spec domain.ContainerSpec) (string, error) {
	exposed, bindings, err := portMaps(spec.Ports)
	if err != nil {
		return "", err
	}

	binds := make([]string, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		binds = append(binds, v.Host+":"+v.Container)
	}

	restart := container.RestartPolicyUnlessStopped
	if spec.RestartPolicy != "" {
		restart = container.RestartPolicyMode(spec.RestartPolicy)
	}
	host := &container.HostConfig{
		PortBindings:  bindings,
		Binds:         binds,
		RestartPolicy: container.RestartPolicy{Name: restart},
		Resources: container.Resources{
			Memory:   spec.MemoryBytes,
			NanoCPUs: spec.NanoCPUs,
		},
	}
	if spec.Network != "" {
		host.NetworkMode = container.NetworkMode(spec.Network)
	}

	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			Env:          spec.Env,
			ExposedPorts: exposed,
		},
		host, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return resp.ID, nil
}

func portMaps(ports []domain.PortBinding) (nat.PortSet, nat.PortMap, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range ports {
		port, err := nat.NewPort(p.Proto(), strconv.Itoa(p.Container))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port %d/%s: %w", p.Container, p.Proto(), err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: strconv.Itoa(p.Host)})
	}
	return exposed, bindings, nil
}

func (a *Adapter) StartContainer(ctx context.Context, id string) error {
	if err := a.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// StopContainer stops a running container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	timeout := int(a.stopTimeout.Seconds())
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

func (a *Adapter) RestartContainer(ctx context.Context, id string) error {
	timeout := int(a.stopTimeout.Seconds())
	if err := a.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to restart container: %w", err)
	}
	return nil
}

func (a *Adapter) RemoveContainer(ctx context.Context, id string, force bool) error {
	if err := a.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// InspectContainer reports state and, for running containers, memory usage.
func (a *Adapter) InspectContainer(ctx context.Context, id string) (domain.ContainerInfo, error) {
	c, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return domain.ContainerInfo{}, fmt.Errorf("failed to inspect container: %w", err)
	}

	var info domain.ContainerInfo
	if c.ContainerJSONBase != nil && c.State != nil {
		info.Status = c.State.Status
		info.Running = c.State.Running
		if started, err := time.Parse(time.RFC3339Nano, c.State.StartedAt); err == nil && !started.IsZero() {
			info.StartedAt = &started
		}
	}
	if c.NetworkSettings != nil {
		info.IPAddress = c.NetworkSettings.IPAddress
	}
	if !info.Running {
		return info, nil
	}

	stats, err := a.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		// Stats are best effort; the state above is still valid.
		return info, nil
	}
	defer stats.Body.Close()
	var s types.StatsJSON
	if err := json.NewDecoder(stats.Body).Decode(&s); err == nil {
		info.MemoryUsage = s.MemoryStats.Usage
		info.MemoryLimit = s.MemoryStats.Limit
	}
	return info, nil
}

// ContainerLogs returns the last tail lines of stdout and stderr, demultiplexed.
func (a *Adapter) ContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     false,
		Timestamps: true,
		Tail:       strconv.Itoa(tail),
	}
	rc, err := a.cli.ContainerLogs(ctx, id, options)
	if err != nil {
		return "", fmt.Errorf("failed to get container logs: %w", err)
	}
	defer rc.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return "", fmt.Errorf("failed to read container logs: %w", err)
	}
	return out.String(), nil
}
