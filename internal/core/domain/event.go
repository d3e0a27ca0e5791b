package domain

import "time"

const (
	EventInstallStart    = "app:install:start"
	EventInstallProgress = "app:install:progress"
	EventInstallComplete = "app:install:complete"
	EventInstallError    = "app:install:error"
	EventAppStatus       = "app:status"

	EventSystemUpdateStart    = "system:update:start"
	EventSystemUpdateComplete = "system:update:complete"
	EventSystemUpdateError    = "system:update:error"

	EventDockerPullProgress = "docker:pull:progress"
	EventDockerPullComplete = "docker:pull:complete"
	EventDockerPullError    = "docker:pull:error"
)

const (
	TopicApps   = "app"
	TopicSystem = "system"
	TopicDocker = "docker"
)

// InstanceTopic is the per-instance channel for lifecycle events.
func InstanceTopic(instanceID string) string {
	return TopicApps + ":" + instanceID
}

// Event is a lifecycle or progress notification.
type Event struct {
	Name      string         `json:"event"`
	Topic     string         `json:"topic"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
