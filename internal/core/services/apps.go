package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

const (
	DefaultLogTail = 100
	MaxLogTail     = 5000
)

// InstallParams are the caller-supplied overrides for an install.
// A nil slice means "use the catalog default"; an empty one overrides it.
type InstallParams struct {
	ContainerName string
	DomainID      string
	Subdomain     string
	Ports         []domain.PortBinding
	Volumes       []domain.VolumeBinding
	Environment   []domain.EnvVar
	MemoryMB      int64
	CPU           float64
}

// InstallRecorder observes install outcomes ("success" or "error").
type InstallRecorder interface {
	InstallFinished(result string, elapsed time.Duration)
}

type InstanceDetail struct {
	domain.Instance
	Container *domain.ContainerInfo `json:"container,omitempty"`
}

type InstanceLogs struct {
	AppLogs       []domain.LogEntry `json:"appLogs"`
	ContainerLogs string            `json:"containerLogs"`
}

type AppServiceDeps struct {
	Common
	Catalog   ports.CatalogStore
	Instances ports.InstanceStore
	Domains   ports.DomainStore
	Runtime   ports.ContainerRuntime
	Builder   ports.BuilderService
	Recorder  InstallRecorder
}

// AppService is the container lifecycle orchestrator. It turns catalog
// entries into running containers and keeps instance records in step with
// the runtime.
type AppService struct {
	base
	catalog   ports.CatalogStore
	instances ports.InstanceStore
	domains   ports.DomainStore
	runtime   ports.ContainerRuntime
	builder   ports.BuilderService
	recorder  InstallRecorder
}

func NewAppService(deps AppServiceDeps) *AppService {
	return &AppService{
		base:      deps.Common.base(),
		catalog:   deps.Catalog,
		instances: deps.Instances,
		domains:   deps.Domains,
		runtime:   deps.Runtime,
		builder:   deps.Builder,
		recorder:  deps.Recorder,
	}
}

// Install creates an instance record and drives pull, create and start.
// On a runtime failure the instance is kept in error status and returned
// together with the error.
func (s *AppService) Install(ctx context.Context, sub domain.Subject, catalogID string, p InstallParams) (*domain.Instance, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}

	entry, err := s.catalog.GetCatalogEntry(ctx, catalogID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(p.ContainerName)
	if !domain.ValidContainerName(name) {
		return nil, domain.Validationf("invalid container name %q", p.ContainerName)
	}
	if err := domain.ValidateBindings(p.Ports, p.Volumes); err != nil {
		return nil, err
	}
	if p.MemoryMB < 0 || p.CPU < 0 {
		return nil, domain.Validationf("memory and cpu must not be negative")
	}

	// The store enforces the same uniqueness, this check only gives the
	// common case a clean error before anything is written.
	if _, err := s.instances.GetInstanceByContainerName(ctx, name); err == nil {
		return nil, domain.Conflict("container name is already in use")
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	if p.DomainID != "" {
		d, err := s.domains.GetDomain(ctx, p.DomainID)
		if err != nil {
			return nil, err
		}
		if err := Authorize(sub, d, ActionWrite); err != nil {
			return nil, err
		}
	}

	inst := s.newInstance(sub, entry, name, p)
	if err := s.instances.CreateInstance(ctx, inst); err != nil {
		return nil, err
	}

	s.publishApp(inst.ID, domain.EventInstallStart, map[string]any{"name": entry.Name})

	started := s.clock()
	containerID, err := s.provision(ctx, entry, inst)
	if err != nil {
		s.record("error", started)
		return inst, s.failInstall(ctx, sub, entry, inst, err)
	}

	inst.ContainerID = containerID
	inst.Status = domain.StatusRunning
	inst.AppendLog(s.clock(), domain.LevelInfo, "application installed successfully")
	if err := s.instances.UpdateInstance(ctx, inst); err != nil {
		return nil, err
	}
	s.record("success", started)

	s.log.Info("application installed",
		zap.String("app", entry.Name),
		zap.String("container", inst.ContainerName),
		zap.String("by", sub.Email))
	s.publishApp(inst.ID, domain.EventInstallComplete, map[string]any{"name": entry.Name})

	return inst, nil
}

func (s *AppService) newInstance(sub domain.Subject, entry *domain.CatalogEntry, name string, p InstallParams) *domain.Instance {
	now := s.clock()

	portBindings := entry.Ports
	if p.Ports != nil {
		portBindings = p.Ports
	}
	volumes := entry.Volumes
	if p.Volumes != nil {
		volumes = p.Volumes
	}
	env := entry.Environment
	if p.Environment != nil {
		env = p.Environment
	}

	memory := p.MemoryMB
	if memory == 0 {
		memory = entry.MinMemoryMB
	}
	if memory <= 0 {
		memory = domain.DefaultMemoryMB
	}
	cpu := p.CPU
	if cpu == 0 {
		cpu = entry.MinCPU
	}
	if cpu <= 0 {
		cpu = domain.DefaultCPU
	}

	return &domain.Instance{
		ID:            s.newID(),
		CatalogID:     entry.ID,
		OwnerID:       sub.ID,
		DomainID:      p.DomainID,
		Subdomain:     strings.ToLower(strings.TrimSpace(p.Subdomain)),
		ContainerName: name,
		Status:        domain.StatusInstalling,
		Ports:         append([]domain.PortBinding(nil), portBindings...),
		Volumes:       append([]domain.VolumeBinding(nil), volumes...),
		Environment:   append([]domain.EnvVar(nil), env...),
		MemoryMB:      memory,
		CPU:           cpu,
		AutoStart:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// provision runs the runtime sequence and returns the new container id.
func (s *AppService) provision(ctx context.Context, entry *domain.CatalogEntry, inst *domain.Instance) (string, error) {
	image := entry.ImageRef()

	if entry.SourceRepo != "" {
		if s.builder == nil {
			return "", fmt.Errorf("no image builder configured for %s", entry.SourceRepo)
		}
		s.step(inst, "building", "building image "+image+" from "+entry.SourceRepo)
		if _, err := s.builder.BuildImage(ctx, entry.SourceRepo, image, &progressWriter{svc: s, instanceID: inst.ID}); err != nil {
			return "", err
		}
	} else {
		s.step(inst, "pulling", "pulling image "+image)
		err := s.runtime.PullImage(ctx, image, func(pp domain.PullProgress) {
			s.publishApp(inst.ID, domain.EventInstallProgress, map[string]any{
				"step":    "pulling",
				"status":  pp.Status,
				"layer":   pp.ID,
				"current": pp.Current,
				"total":   pp.Total,
			})
		})
		if err != nil {
			return "", err
		}
	}

	s.step(inst, "creating", "creating container")
	id, err := s.runtime.CreateContainer(ctx, domain.ContainerSpec{
		Name:        inst.ContainerName,
		Image:       image,
		Ports:       inst.Ports,
		Volumes:     inst.Volumes,
		Env:         inst.RuntimeEnv(),
		MemoryBytes: inst.MemoryBytes(),
		NanoCPUs:    inst.NanoCPUs(),
	})
	if err != nil {
		return "", err
	}

	s.step(inst, "starting", "starting container")
	if err := s.runtime.StartContainer(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// failInstall records a failed install on the instance. Steps that already
// completed (a pulled image, a created container) are left in place.
func (s *AppService) failInstall(ctx context.Context, sub domain.Subject, entry *domain.CatalogEntry, inst *domain.Instance, cause error) error {
	inst.Status = domain.StatusError
	inst.AppendLog(s.clock(), domain.LevelError, cause.Error())
	if err := s.instances.UpdateInstance(ctx, inst); err != nil {
		s.log.Error("failed to record install failure",
			zap.String("instance", inst.ID), zap.Error(err))
	}

	s.log.Error("application install failed",
		zap.String("app", entry.Name),
		zap.String("container", inst.ContainerName),
		zap.String("by", sub.Email),
		zap.Error(cause))
	s.publishApp(inst.ID, domain.EventInstallError, map[string]any{"error": cause.Error()})

	return domain.Upstream("application could not be installed", cause, "")
}

func (s *AppService) Start(ctx context.Context, sub domain.Subject, id string) (*domain.Instance, error) {
	return s.transition(ctx, sub, id, "start", s.runtime.StartContainer, domain.StatusRunning, "application started")
}

func (s *AppService) Stop(ctx context.Context, sub domain.Subject, id string) (*domain.Instance, error) {
	return s.transition(ctx, sub, id, "stop", s.runtime.StopContainer, domain.StatusStopped, "application stopped")
}

func (s *AppService) Restart(ctx context.Context, sub domain.Subject, id string) (*domain.Instance, error) {
	return s.transition(ctx, sub, id, "restart", s.runtime.RestartContainer, domain.StatusRunning, "application restarted")
}

func (s *AppService) transition(
	ctx context.Context,
	sub domain.Subject,
	id, op string,
	call func(context.Context, string) error,
	status domain.InstanceStatus,
	message string,
) (*domain.Instance, error) {
	inst, err := s.instances.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, inst, ActionManage); err != nil {
		return nil, err
	}
	if inst.ContainerID == "" {
		return nil, domain.Validationf("instance %s has no container", inst.ContainerName)
	}

	if err := call(ctx, inst.ContainerID); err != nil {
		s.log.Error("container operation failed",
			zap.String("op", op),
			zap.String("container", inst.ContainerName),
			zap.Error(err))
		return nil, domain.Upstream(fmt.Sprintf("application could not %s", op), err, "")
	}

	inst.Status = status
	inst.AppendLog(s.clock(), domain.LevelInfo, message)
	if err := s.instances.UpdateInstance(ctx, inst); err != nil {
		return nil, err
	}

	s.log.Info(message, zap.String("container", inst.ContainerName), zap.String("by", sub.Email))
	s.publishApp(inst.ID, domain.EventAppStatus, map[string]any{"status": string(status)})
	return inst, nil
}

// Uninstall removes the container on a best-effort basis and always deletes
// the instance record.
func (s *AppService) Uninstall(ctx context.Context, sub domain.Subject, id string) error {
	inst, err := s.instances.GetInstance(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(sub, inst, ActionManage); err != nil {
		return err
	}

	if inst.ContainerID != "" {
		if err := s.runtime.StopContainer(ctx, inst.ContainerID); err != nil {
			s.log.Debug("stop before remove failed", zap.String("container", inst.ContainerName), zap.Error(err))
		}
		if err := s.runtime.RemoveContainer(ctx, inst.ContainerID, true); err != nil {
			s.log.Warn("failed to remove container", zap.String("container", inst.ContainerName), zap.Error(err))
		}
	}

	if err := s.instances.DeleteInstance(ctx, inst.ID); err != nil {
		return err
	}
	s.log.Info("application uninstalled", zap.String("container", inst.ContainerName), zap.String("by", sub.Email))
	return nil
}

// List returns the caller's instances (all of them for admins) with the
// status refreshed from the runtime. The refresh is not persisted.
func (s *AppService) List(ctx context.Context, sub domain.Subject) ([]domain.Instance, error) {
	if err := Authorize(sub, nil, ActionRead); err != nil {
		return nil, err
	}
	list, err := s.instances.ListInstances(ctx, ownerScope(sub))
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ContainerID == "" {
			continue
		}
		info, err := s.runtime.InspectContainer(ctx, list[i].ContainerID)
		switch {
		case err != nil:
			list[i].Status = domain.StatusError
		case info.Running:
			list[i].Status = domain.StatusRunning
		default:
			list[i].Status = domain.StatusStopped
		}
	}
	return list, nil
}

func (s *AppService) Get(ctx context.Context, sub domain.Subject, id string) (*InstanceDetail, error) {
	inst, err := s.instances.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, inst, ActionRead); err != nil {
		return nil, err
	}

	detail := &InstanceDetail{Instance: *inst}
	if inst.ContainerID != "" {
		info, err := s.runtime.InspectContainer(ctx, inst.ContainerID)
		if err != nil {
			info = domain.ContainerInfo{Status: "error"}
		}
		detail.Container = &info
	}
	return detail, nil
}

func (s *AppService) Logs(ctx context.Context, sub domain.Subject, id string, tail int) (*InstanceLogs, error) {
	inst, err := s.instances.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, inst, ActionRead); err != nil {
		return nil, err
	}

	if tail <= 0 {
		tail = DefaultLogTail
	}
	if tail > MaxLogTail {
		tail = MaxLogTail
	}

	out := &InstanceLogs{AppLogs: inst.Logs}
	if inst.ContainerID != "" {
		logs, err := s.runtime.ContainerLogs(ctx, inst.ContainerID, tail)
		if err != nil {
			s.log.Debug("container logs unavailable", zap.String("container", inst.ContainerName), zap.Error(err))
		}
		out.ContainerLogs = logs
	}
	if out.AppLogs == nil {
		out.AppLogs = []domain.LogEntry{}
	}
	return out, nil
}

// Resolve finds the running instance bound to subdomain, for the proxy.
func (s *AppService) Resolve(ctx context.Context, subdomain string) (*domain.Instance, *domain.ContainerInfo, error) {
	inst, err := s.instances.GetInstanceBySubdomain(ctx, strings.ToLower(subdomain))
	if err != nil {
		return nil, nil, err
	}
	if inst.ContainerID == "" {
		return nil, nil, domain.NotFound("running application")
	}
	info, err := s.runtime.InspectContainer(ctx, inst.ContainerID)
	if err != nil {
		return nil, nil, domain.Upstream("failed to inspect container", err, "")
	}
	if !info.Running {
		return nil, nil, domain.NotFound("running application")
	}
	return inst, &info, nil
}

func (s *AppService) step(inst *domain.Instance, step, message string) {
	s.publishApp(inst.ID, domain.EventInstallProgress, map[string]any{"step": step, "message": message})
}

func (s *AppService) publishApp(instanceID, name string, data map[string]any) {
	data["app_id"] = instanceID
	s.publish(domain.InstanceTopic(instanceID), name, data)
}

func (s *AppService) record(result string, started time.Time) {
	if s.recorder != nil {
		s.recorder.InstallFinished(result, s.clock().Sub(started))
	}
}

// progressWriter relays image build output as install progress events.
type progressWriter struct {
	svc        *AppService
	instanceID string
}

func (w *progressWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.svc.publishApp(w.instanceID, domain.EventInstallProgress, map[string]any{
				"step":    "building",
				"message": line,
			})
		}
	}
	return len(p), nil
}
