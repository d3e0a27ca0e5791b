package ports

import (
	"context"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

// ContainerRuntime defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerRuntime interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	// PullImage pulls ref and reports each decoded progress message to
	// progress, which may be nil.
	PullImage(ctx context.Context, ref string, progress func(domain.PullProgress)) error
	CreateContainer(ctx context.Context, spec domain.ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	InspectContainer(ctx context.Context, id string) (domain.ContainerInfo, error)
	// ContainerLogs returns the last tail lines of stdout and stderr.
	ContainerLogs(ctx context.Context, id string, tail int) (string, error)
	// Exec runs cmd inside a running container and waits for it to exit.
	Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error)

	Status(ctx context.Context) (domain.RuntimeStatus, error)
	ListImages(ctx context.Context) ([]domain.Image, error)
	RemoveImage(ctx context.Context, id string, force bool) error
	ListNetworks(ctx context.Context) ([]domain.Network, error)
	// CreateNetwork returns the id of the new network.
	CreateNetwork(ctx context.Context, name, driver string) (string, error)
	ListVolumes(ctx context.Context) ([]domain.Volume, error)
	CreateVolume(ctx context.Context, name string) (domain.Volume, error)
}
