package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

type CatalogService struct {
	base
	store ports.CatalogStore
}

func NewCatalogService(common Common, store ports.CatalogStore) *CatalogService {
	return &CatalogService{base: common.base(), store: store}
}

func (s *CatalogService) List(ctx context.Context, filter ports.CatalogFilter) ([]domain.CatalogEntry, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, domain.Validationf("invalid category %q", filter.Category)
	}
	return s.store.ListCatalog(ctx, filter)
}

func (s *CatalogService) Get(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	return s.store.GetCatalogEntry(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, sub domain.Subject, e domain.CatalogEntry) (*domain.CatalogEntry, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetCatalogEntryBySlug(ctx, e.Slug); err == nil {
		return nil, domain.Conflict("slug is already in use")
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	now := s.clock()
	e.ID = s.newID()
	e.CreatedAt, e.UpdatedAt = now, now
	if err := s.store.CreateCatalogEntry(ctx, &e); err != nil {
		return nil, err
	}
	s.log.Info("catalog entry created", zap.String("slug", e.Slug), zap.String("by", sub.Email))
	return &e, nil
}

// CatalogUpdate lists the mutable catalog fields; nil means unchanged.
// The slug is the entry's identity and cannot be changed.
type CatalogUpdate struct {
	Name          *string                 `json:"name"`
	Description   *string                 `json:"description"`
	Icon          *string                 `json:"icon"`
	Category      *domain.Category        `json:"category"`
	Image         *string                 `json:"image"`
	Tag           *string                 `json:"tag"`
	SourceRepo    *string                 `json:"source_repo"`
	Ports         *[]domain.PortBinding   `json:"ports"`
	Volumes       *[]domain.VolumeBinding `json:"volumes"`
	Environment   *[]domain.EnvVar        `json:"environment"`
	MinMemoryMB   *int64                  `json:"min_memory_mb"`
	MinCPU        *float64                `json:"min_cpu"`
	Website       *string                 `json:"website"`
	Documentation *string                 `json:"documentation"`
	Popular       *bool                   `json:"popular"`
}

func (u CatalogUpdate) apply(e *domain.CatalogEntry) {
	set(&e.Name, u.Name)
	set(&e.Description, u.Description)
	set(&e.Icon, u.Icon)
	set(&e.Category, u.Category)
	set(&e.Image, u.Image)
	set(&e.Tag, u.Tag)
	set(&e.SourceRepo, u.SourceRepo)
	set(&e.Ports, u.Ports)
	set(&e.Volumes, u.Volumes)
	set(&e.Environment, u.Environment)
	set(&e.MinMemoryMB, u.MinMemoryMB)
	set(&e.MinCPU, u.MinCPU)
	set(&e.Website, u.Website)
	set(&e.Documentation, u.Documentation)
	set(&e.Popular, u.Popular)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (s *CatalogService) Update(ctx context.Context, sub domain.Subject, id string, u CatalogUpdate) (*domain.CatalogEntry, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	e, err := s.store.GetCatalogEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	u.apply(e)
	e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.UpdatedAt = s.clock()
	if err := s.store.UpdateCatalogEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *CatalogService) Delete(ctx context.Context, sub domain.Subject, id string) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	e, err := s.store.GetCatalogEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCatalogEntry(ctx, e.ID); err != nil {
		return err
	}
	s.log.Info("catalog entry deleted", zap.String("slug", e.Slug), zap.String("by", sub.Email))
	return nil
}

// Seed inserts the default catalog, skipping slugs that already exist.
func (s *CatalogService) Seed(ctx context.Context, sub domain.Subject) (created, skipped int, err error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return 0, 0, err
	}
	for _, e := range DefaultCatalog() {
		_, err := s.store.GetCatalogEntryBySlug(ctx, e.Slug)
		if err == nil {
			skipped++
			continue
		}
		if !domain.IsNotFound(err) {
			return created, skipped, err
		}
		e.Normalize()
		now := s.clock()
		e.ID = s.newID()
		e.CreatedAt, e.UpdatedAt = now, now
		if err := s.store.CreateCatalogEntry(ctx, &e); err != nil {
			return created, skipped, err
		}
		created++
	}
	s.log.Info("default catalog seeded", zap.Int("created", created), zap.Int("skipped", skipped))
	return created, skipped, nil
}
