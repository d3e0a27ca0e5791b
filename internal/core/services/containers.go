package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

// ContainerService exposes the raw runtime to administrators, including
// containers the panel did not install.
type ContainerService struct {
	base
	runtime ports.ContainerRuntime
}

func NewContainerService(common Common, runtime ports.ContainerRuntime) *ContainerService {
	return &ContainerService{base: common.base(), runtime: runtime}
}

func (s *ContainerService) List(ctx context.Context, sub domain.Subject) ([]domain.Container, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	containers, err := s.runtime.ListContainers(ctx)
	if err != nil {
		return nil, domain.Upstream("failed to list containers", err, "")
	}
	return containers, nil
}

// Pull pulls an image, publishing progress on the docker topic.
func (s *ContainerService) Pull(ctx context.Context, sub domain.Subject, image string) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	image = strings.TrimSpace(image)
	if image == "" {
		return domain.Validationf("image is required")
	}
	if !strings.Contains(image[strings.LastIndex(image, "/")+1:], ":") {
		image += ":" + domain.DefaultTag
	}

	err := s.runtime.PullImage(ctx, image, func(p domain.PullProgress) {
		s.publish(domain.TopicDocker, domain.EventDockerPullProgress, map[string]any{
			"image":   image,
			"status":  p.Status,
			"layer":   p.ID,
			"current": p.Current,
			"total":   p.Total,
		})
	})
	if err != nil {
		s.publish(domain.TopicDocker, domain.EventDockerPullError, map[string]any{"image": image, "error": err.Error()})
		return domain.Upstream("image could not be pulled", err, "")
	}
	s.publish(domain.TopicDocker, domain.EventDockerPullComplete, map[string]any{"image": image})
	s.log.Info("image pulled", zap.String("image", image), zap.String("by", sub.Email))
	return nil
}

func (s *ContainerService) Start(ctx context.Context, sub domain.Subject, id string) error {
	return s.control(ctx, sub, id, "start", s.runtime.StartContainer)
}

func (s *ContainerService) Stop(ctx context.Context, sub domain.Subject, id string) error {
	return s.control(ctx, sub, id, "stop", s.runtime.StopContainer)
}

func (s *ContainerService) Restart(ctx context.Context, sub domain.Subject, id string) error {
	return s.control(ctx, sub, id, "restart", s.runtime.RestartContainer)
}

func (s *ContainerService) Remove(ctx context.Context, sub domain.Subject, id string, force bool) error {
	return s.control(ctx, sub, id, "remove", func(ctx context.Context, id string) error {
		return s.runtime.RemoveContainer(ctx, id, force)
	})
}

func (s *ContainerService) control(ctx context.Context, sub domain.Subject, id, verb string, fn func(context.Context, string) error) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	if err := fn(ctx, id); err != nil {
		return domain.Upstream("failed to "+verb+" container", err, "")
	}
	s.log.Info("container "+verb, zap.String("container", id), zap.String("by", sub.Email))
	return nil
}

func (s *ContainerService) Logs(ctx context.Context, sub domain.Subject, id string, tail int) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	if tail <= 0 {
		tail = DefaultLogTail
	}
	if tail > MaxLogTail {
		tail = MaxLogTail
	}
	logs, err := s.runtime.ContainerLogs(ctx, id, tail)
	if err != nil {
		return "", domain.Upstream("failed to read container logs", err, "")
	}
	return logs, nil
}

func (s *ContainerService) Inspect(ctx context.Context, sub domain.Subject, id string) (*domain.ContainerInfo, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	info, err := s.runtime.InspectContainer(ctx, id)
	if err != nil {
		return nil, domain.Upstream("failed to inspect container", err, "")
	}
	return &info, nil
}
