package domain

import "time"

// Container represents a container in the system (Docker, K8s, etc.)
type Container struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Status    string `json:"status"`
	State     string `json:"state"` // running, exited, etc.
	IPAddress string `json:"ip_address,omitempty"`
}

// ContainerSpec is everything the runtime needs to create a container, either
// for an installed instance or an ad hoc admin request. Resource limits are
// already in runtime units.
type ContainerSpec struct {
	Name        string
	Image       string
	Ports       []PortBinding
	Volumes     []VolumeBinding
	Env         []string
	MemoryBytes int64
	NanoCPUs    int64

	// Network is an optional user-defined network to attach to.
	Network       string
	// RestartPolicy defaults to unless-stopped.
	RestartPolicy string
}

// ContainerInfo is the live runtime view of a single container.
type ContainerInfo struct {
	Status      string     `json:"status"`
	Running     bool       `json:"running"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	MemoryUsage uint64     `json:"memory_usage"`
	MemoryLimit uint64     `json:"memory_limit"`
}

// PullProgress is one decoded message of an image pull stream.
type PullProgress struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Current int64  `json:"current,omitempty"`
	Total   int64  `json:"total,omitempty"`
}

// RuntimeStatus summarizes the container daemon.
type RuntimeStatus struct {
	Version           string `json:"version"`
	APIVersion        string `json:"api_version"`
	OS                string `json:"os"`
	Containers        int    `json:"containers"`
	ContainersRunning int    `json:"containers_running"`
	ContainersStopped int    `json:"containers_stopped"`
	Images            int    `json:"images"`
	MemoryTotal       int64  `json:"memory_total"`
	CPUs              int    `json:"cpus"`
}

type Image struct {
	ID       string    `json:"id"`
	RepoTags []string  `json:"repo_tags"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
}

type Network struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Scope    string `json:"scope"`
	Internal bool   `json:"internal"`
}

type Volume struct {
	Name       string `json:"name"`
	Driver     string `json:"driver"`
	Mountpoint string `json:"mountpoint"`
	Scope      string `json:"scope"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// ExecResult is the combined output of a finished exec session.
type ExecResult struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}
