package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

var (
	networkDrivers  = map[string]bool{"bridge": true, "overlay": true, "macvlan": true, "ipvlan": true}
	restartPolicies = map[string]bool{"": true, "no": true, "always": true, "on-failure": true, "unless-stopped": true}
)

// NewContainer is an ad hoc container request, outside the catalog.
type NewContainer struct {
	Name        string                 `json:"name"`
	Image       string                 `json:"image"`
	Ports       []domain.PortBinding   `json:"ports"`
	Volumes     []domain.VolumeBinding `json:"volumes"`
	Environment []domain.EnvVar        `json:"env"`
	Network     string                 `json:"network"`
	MemoryMB    int64                  `json:"memory"`
	CPU         float64                `json:"cpus"`
	Restart     string                 `json:"restart"`
}

func (s *ContainerService) Status(ctx context.Context, sub domain.Subject) (*domain.RuntimeStatus, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	st, err := s.runtime.Status(ctx)
	if err != nil {
		return nil, domain.Upstream("docker daemon is unreachable", err, "")
	}
	return &st, nil
}

// Create creates and starts a container. The image must already be present.
// A container whose start fails is left in place for inspection.
func (s *ContainerService) Create(ctx context.Context, sub domain.Subject, req NewContainer) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	req.Image = strings.TrimSpace(req.Image)
	if req.Image == "" {
		return "", domain.Validationf("image is required")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name != "" && !domain.ValidContainerName(req.Name) {
		return "", domain.Validationf("invalid container name %q", req.Name)
	}
	if err := domain.ValidateBindings(req.Ports, req.Volumes); err != nil {
		return "", err
	}
	if req.MemoryMB < 0 || req.CPU < 0 {
		return "", domain.Validationf("memory and cpu must not be negative")
	}
	if !restartPolicies[req.Restart] {
		return "", domain.Validationf("invalid restart policy %q", req.Restart)
	}

	id, err := s.runtime.CreateContainer(ctx, domain.ContainerSpec{
		Name:          req.Name,
		Image:         req.Image,
		Ports:         req.Ports,
		Volumes:       req.Volumes,
		Env:           domain.RenderEnv(req.Environment),
		MemoryBytes:   req.MemoryMB * 1024 * 1024,
		NanoCPUs:      int64(req.CPU * 1e9),
		Network:       req.Network,
		RestartPolicy: req.Restart,
	})
	if err != nil {
		return "", domain.Upstream("failed to create container", err, "")
	}
	if err := s.runtime.StartContainer(ctx, id); err != nil {
		return id, domain.Upstream("container was created but could not be started", err, "")
	}
	s.log.Info("container created", zap.String("container", id), zap.String("image", req.Image), zap.String("by", sub.Email))
	return id, nil
}

func (s *ContainerService) Exec(ctx context.Context, sub domain.Subject, id string, cmd []string) (*domain.ExecResult, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	if len(cmd) == 0 || strings.TrimSpace(cmd[0]) == "" {
		return nil, domain.Validationf("command is required")
	}
	res, err := s.runtime.Exec(ctx, id, cmd)
	if err != nil {
		return nil, domain.Upstream("command could not be run", err, "")
	}
	s.log.Info("container exec",
		zap.String("container", id),
		zap.Strings("cmd", cmd),
		zap.Int("exit_code", res.ExitCode),
		zap.String("by", sub.Email))
	return &res, nil
}

func (s *ContainerService) Images(ctx context.Context, sub domain.Subject) ([]domain.Image, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	images, err := s.runtime.ListImages(ctx)
	if err != nil {
		return nil, domain.Upstream("failed to list images", err, "")
	}
	return images, nil
}

func (s *ContainerService) RemoveImage(ctx context.Context, sub domain.Subject, id string, force bool) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	if err := s.runtime.RemoveImage(ctx, id, force); err != nil {
		return domain.Upstream("failed to remove image", err, "")
	}
	s.log.Info("image removed", zap.String("image", id), zap.String("by", sub.Email))
	return nil
}

func (s *ContainerService) Networks(ctx context.Context, sub domain.Subject) ([]domain.Network, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	networks, err := s.runtime.ListNetworks(ctx)
	if err != nil {
		return nil, domain.Upstream("failed to list networks", err, "")
	}
	return networks, nil
}

// CreateNetwork creates a network; driver defaults to bridge.
func (s *ContainerService) CreateNetwork(ctx context.Context, sub domain.Subject, name, driver string) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if !domain.ValidContainerName(name) {
		return "", domain.Validationf("invalid network name %q", name)
	}
	if driver == "" {
		driver = "bridge"
	}
	if !networkDrivers[driver] {
		return "", domain.Validationf("unsupported network driver %q", driver)
	}
	id, err := s.runtime.CreateNetwork(ctx, name, driver)
	if err != nil {
		return "", domain.Upstream("failed to create network", err, "")
	}
	s.log.Info("network created", zap.String("network", name), zap.String("by", sub.Email))
	return id, nil
}

func (s *ContainerService) Volumes(ctx context.Context, sub domain.Subject) ([]domain.Volume, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	volumes, err := s.runtime.ListVolumes(ctx)
	if err != nil {
		return nil, domain.Upstream("failed to list volumes", err, "")
	}
	return volumes, nil
}

func (s *ContainerService) CreateVolume(ctx context.Context, sub domain.Subject, name string) (*domain.Volume, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if !domain.ValidContainerName(name) {
		return nil, domain.Validationf("invalid volume name %q", name)
	}
	v, err := s.runtime.CreateVolume(ctx, name)
	if err != nil {
		return nil, domain.Upstream("failed to create volume", err, "")
	}
	s.log.Info("volume created", zap.String("volume", name), zap.String("by", sub.Email))
	return &v, nil
}
