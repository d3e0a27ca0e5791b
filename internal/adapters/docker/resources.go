package docker

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

// Status combines the daemon's version and info endpoints.
func (a *Adapter) Status(ctx context.Context) (domain.RuntimeStatus, error) {
	v, err := a.cli.ServerVersion(ctx)
	if err != nil {
		return domain.RuntimeStatus{}, fmt.Errorf("failed to reach docker daemon: %w", err)
	}
	info, err := a.cli.Info(ctx)
	if err != nil {
		return domain.RuntimeStatus{}, fmt.Errorf("failed to read docker info: %w", err)
	}
	return domain.RuntimeStatus{
		Version:           v.Version,
		APIVersion:        v.APIVersion,
		OS:                info.OperatingSystem,
		Containers:        info.Containers,
		ContainersRunning: info.ContainersRunning,
		ContainersStopped: info.ContainersStopped,
		Images:            info.Images,
		MemoryTotal:       info.MemTotal,
		CPUs:              info.NCPU,
	}, nil
}

func (a *Adapter) ListImages(ctx context.Context) ([]domain.Image, error) {
	images, err := a.cli.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	result := make([]domain.Image, 0, len(images))
	for _, img := range images {
		tags := img.RepoTags
		if tags == nil {
			tags = []string{}
		}
		result = append(result, domain.Image{
			ID:       img.ID,
			RepoTags: tags,
			Size:     img.Size,
			Created:  time.Unix(img.Created, 0).UTC(),
		})
	}
	return result, nil
}

func (a *Adapter) RemoveImage(ctx context.Context, id string, force bool) error {
	if _, err := a.cli.ImageRemove(ctx, id, types.ImageRemoveOptions{Force: force, PruneChildren: true}); err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

func (a *Adapter) ListNetworks(ctx context.Context) ([]domain.Network, error) {
	networks, err := a.cli.NetworkList(ctx, types.NetworkListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	result := make([]domain.Network, 0, len(networks))
	for _, n := range networks {
		result = append(result, domain.Network{
			ID:       shortID(n.ID),
			Name:     n.Name,
			Driver:   n.Driver,
			Scope:    n.Scope,
			Internal: n.Internal,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (a *Adapter) CreateNetwork(ctx context.Context, name, driver string) (string, error) {
	resp, err := a.cli.NetworkCreate(ctx, name, types.NetworkCreate{
		CheckDuplicate: true,
		Driver:         driver,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create network: %w", err)
	}
	return resp.ID, nil
}

func (a *Adapter) ListVolumes(ctx context.Context) ([]domain.Volume, error) {
	resp, err := a.cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}
	result := make([]domain.Volume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v == nil {
			continue
		}
		result = append(result, toVolume(*v))
	}
	return result, nil
}

func (a *Adapter) CreateVolume(ctx context.Context, name string) (domain.Volume, error) {
	v, err := a.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	if err != nil {
		return domain.Volume{}, fmt.Errorf("failed to create volume: %w", err)
	}
	return toVolume(v), nil
}

func toVolume(v volume.Volume) domain.Volume {
	return domain.Volume{
		Name:       v.Name,
		Driver:     v.Driver,
		Mountpoint: v.Mountpoint,
		Scope:      v.Scope,
		CreatedAt:  v.CreatedAt,
	}
}

// Exec runs cmd without a TTY, so the attached stream is multiplexed and
// stdout and stderr are merged in arrival order.
func (a *Adapter) Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error) {
	created, err := a.cli.ContainerExecCreate(ctx, id, types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return domain.ExecResult{}, fmt.Errorf("failed to create exec: %w", err)
	}

	attach, err := a.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return domain.ExecResult{}, fmt.Errorf("failed to start exec: %w", err)
	}
	defer attach.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, attach.Reader); err != nil {
		return domain.ExecResult{}, fmt.Errorf("failed to read exec output: %w", err)
	}

	inspect, err := a.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return domain.ExecResult{}, fmt.Errorf("failed to inspect exec: %w", err)
	}
	return domain.ExecResult{Output: out.String(), ExitCode: inspect.ExitCode}, nil
}
