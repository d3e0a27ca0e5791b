package domain

import (
	"regexp"
	"time"
)

type InstanceStatus string

const (
	StatusInstalling InstanceStatus = "installing"
	StatusRunning    InstanceStatus = "running"
	StatusStopped    InstanceStatus = "stopped"
	StatusError      InstanceStatus = "error"
	StatusUpdating   InstanceStatus = "updating"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     LogLevel  `json:"level"`
}

const (
	DefaultMemoryMB = 512
	DefaultCPU      = 1.0
)

var containerNameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]+$`)

func ValidContainerName(name string) bool {
	return containerNameRE.MatchString(name)
}

// Instance is a concrete deployment of a catalog entry bound to one container.
// ContainerID stays empty until the runtime has created and started it.
type Instance struct {
	ID            string          `json:"id"`
	CatalogID     string          `json:"catalog_id"`
	OwnerID       string          `json:"owner_id"`
	DomainID      string          `json:"domain_id,omitempty"`
	Subdomain     string          `json:"subdomain,omitempty"`
	ContainerName string          `json:"container_name"`
	ContainerID   string          `json:"container_id,omitempty"`
	Status        InstanceStatus  `json:"status"`
	Ports         []PortBinding   `json:"ports"`
	Volumes       []VolumeBinding `json:"volumes"`
	Environment   []EnvVar        `json:"environment"`
	MemoryMB      int64           `json:"memory_mb"`
	CPU           float64         `json:"cpu"`
	AutoStart     bool            `json:"auto_start"`
	Logs          []LogEntry      `json:"logs"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i *Instance) Owner() string { return i.OwnerID }

// AppendLog adds an entry to the instance's append-only log.
func (i *Instance) AppendLog(at time.Time, level LogLevel, message string) {
	i.Logs = append(i.Logs, LogEntry{Timestamp: at, Message: message, Level: level})
}

// MemoryBytes converts the user-facing MB limit to runtime bytes.
func (i *Instance) MemoryBytes() int64 {
	return i.MemoryMB * 1024 * 1024
}

// NanoCPUs converts the user-facing vCPU limit to runtime nano-CPUs.
func (i *Instance) NanoCPUs() int64 {
	return int64(i.CPU * 1e9)
}

func (i *Instance) RuntimeEnv() []string {
	return RenderEnv(i.Environment)
}

// RenderEnv renders KEY=VALUE pairs, skipping variables without a value.
func RenderEnv(vars []EnvVar) []string {
	env := make([]string, 0, len(vars))
	for _, e := range vars {
		if e.Value != "" {
			env = append(env, e.Key+"="+e.Value)
		}
	}
	return env
}
