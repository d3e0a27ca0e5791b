package domain

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryWeb         Category = "web"
	CategoryDatabase    Category = "database"
	CategoryMail        Category = "mail"
	CategoryStorage     Category = "storage"
	CategoryMonitoring  Category = "monitoring"
	CategoryDevelopment Category = "development"
	CategoryOther       Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWeb, CategoryDatabase, CategoryMail, CategoryStorage,
		CategoryMonitoring, CategoryDevelopment, CategoryOther:
		return true
	}
	return false
}

const (
	DefaultTag         = "latest"
	DefaultMinMemoryMB = 256
	DefaultMinCPU      = 0.5
)

type PortBinding struct {
	Container int    `json:"container"`
	Host      int    `json:"host"`
	Protocol  string `json:"protocol,omitempty"`
}

// Proto returns the binding protocol, tcp when unset.
func (p PortBinding) Proto() string {
	if p.Protocol == "" {
		return "tcp"
	}
	return p.Protocol
}

type VolumeBinding struct {
	Container string `json:"container"`
	Host      string `json:"host"`
}

type EnvVar struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// CatalogEntry is an installable application template.
type CatalogEntry struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Description   string          `json:"description,omitempty"`
	Icon          string          `json:"icon,omitempty"`
	Category      Category        `json:"category"`
	Image         string          `json:"image"`
	Tag           string          `json:"tag"`
	SourceRepo    string          `json:"source_repo,omitempty"`
	Ports         []PortBinding   `json:"ports"`
	Volumes       []VolumeBinding `json:"volumes"`
	Environment   []EnvVar        `json:"environment"`
	MinMemoryMB   int64           `json:"min_memory_mb"`
	MinCPU        float64         `json:"min_cpu"`
	Website       string          `json:"website,omitempty"`
	Documentation string          `json:"documentation,omitempty"`
	Popular       bool            `json:"popular"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ImageRef is the image reference handed to the runtime, image:tag.
func (e CatalogEntry) ImageRef() string {
	tag := e.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return e.Image + ":" + tag
}

func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// Normalize fills defaults and lower-cases the slug.
func (e *CatalogEntry) Normalize() {
	e.Slug = NormalizeSlug(e.Slug)
	if e.Tag == "" {
		e.Tag = DefaultTag
	}
	if e.Category == "" {
		e.Category = CategoryOther
	}
	if e.MinMemoryMB <= 0 {
		e.MinMemoryMB = DefaultMinMemoryMB
	}
	if e.MinCPU <= 0 {
		e.MinCPU = DefaultMinCPU
	}
	for i := range e.Ports {
		e.Ports[i].Protocol = e.Ports[i].Proto()
	}
}

func (e CatalogEntry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return Validationf("name is required")
	}
	if e.Slug == "" {
		return Validationf("slug is required")
	}
	if strings.TrimSpace(e.Image) == "" {
		return Validationf("image is required")
	}
	if !e.Category.Valid() {
		return Validationf("invalid category %q", e.Category)
	}
	return ValidateBindings(e.Ports, e.Volumes)
}

// ValidateBindings checks port ranges, protocols and volume paths.
func ValidateBindings(ports []PortBinding, volumes []VolumeBinding) error {
	for _, p := range ports {
		if p.Container < 1 || p.Container > 65535 || p.Host < 1 || p.Host > 65535 {
			return Validationf("invalid port binding %d:%d", p.Host, p.Container)
		}
		if proto := p.Proto(); proto != "tcp" && proto != "udp" {
			return Validationf("invalid protocol %q", p.Protocol)
		}
	}
	for _, v := range volumes {
		if v.Container == "" || v.Host == "" {
			return Validationf("volume binding needs both host and container paths")
		}
	}
	return nil
}
