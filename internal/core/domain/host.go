package domain

import "time"

type ServiceAction string

const (
	ActionStart   ServiceAction = "start"
	ActionStop    ServiceAction = "stop"
	ActionRestart ServiceAction = "restart"
	ActionReload  ServiceAction = "reload"
)

type HostInfo struct {
	Hostname string    `json:"hostname"`
	IP       string    `json:"ip"`
	Platform string    `json:"platform"`
	OS       string    `json:"os"`
	Arch     string    `json:"arch"`
	Uptime   uint64    `json:"uptime"`
	Load     []float64 `json:"loadavg"`
	CPUs     int       `json:"cpus"`
	Version  string    `json:"version"`
}

type UsageStat struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type HostStats struct {
	CPUPercent float64   `json:"cpu"`
	Memory     UsageStat `json:"memory"`
	Disk       UsageStat `json:"disk"`
}

type Backup struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// PackageUpdate is one upgradable host package.
type PackageUpdate struct {
	Name           string `json:"name"`
	CurrentVersion string `json:"current_version"`
	NewVersion     string `json:"new_version"`
}

type UpdateCheck struct {
	Version         string          `json:"version"`
	UpdateAvailable bool            `json:"update_available"`
	Packages        []PackageUpdate `json:"packages"`
}
