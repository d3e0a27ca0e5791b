package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
	"github.com/melih/lighthouse-panel/internal/core/services"
)

// AppHandler serves the application catalog and installed instances.
type AppHandler struct {
	catalog *services.CatalogService
	apps    *services.AppService
}

func NewAppHandler(catalog *services.CatalogService, apps *services.AppService) *AppHandler {
	return &AppHandler{catalog: catalog, apps: apps}
}

func (h *AppHandler) ListCatalog(c *fiber.Ctx) error {
	entries, err := h.catalog.List(c.UserContext(), ports.CatalogFilter{
		Category: domain.Category(c.Query("category")),
		Search:   c.Query("search"),
	})
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func (h *AppHandler) GetCatalogEntry(c *fiber.Ctx) error {
	e, err := h.catalog.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(e)
}

func (h *AppHandler) CreateCatalogEntry(c *fiber.Ctx) error {
	var req domain.CatalogEntry
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := h.catalog.Create(c.UserContext(), subject(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

func (h *AppHandler) UpdateCatalogEntry(c *fiber.Ctx) error {
	var req services.CatalogUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := h.catalog.Update(c.UserContext(), subject(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(e)
}

func (h *AppHandler) DeleteCatalogEntry(c *fiber.Ctx) error {
	if err := h.catalog.Delete(c.UserContext(), subject(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Application deleted"})
}

func (h *AppHandler) SeedCatalog(c *fiber.Ctx) error {
	created, skipped, err := h.catalog.Seed(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"created": created, "skipped": skipped})
}

type installRequest struct {
	ContainerName string                 `json:"containerName"`
	DomainID      string                 `json:"domainId"`
	Subdomain     string                 `json:"subdomain"`
	Ports         []domain.PortBinding   `json:"ports"`
	Volumes       []domain.VolumeBinding `json:"volumes"`
	Environment   []domain.EnvVar        `json:"environment"`
	MemoryMB      int64                  `json:"memory"`
	CPU           float64                `json:"cpu"`
}

// Install blocks until the container is running or the install failed.
// A failed install answers 500 with the runtime's error as details.
func (h *AppHandler) Install(c *fiber.Ctx) error {
	var req installRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	inst, err := h.apps.Install(c.UserContext(), subject(c), c.Params("id"), services.InstallParams{
		ContainerName: req.ContainerName,
		DomainID:      req.DomainID,
		Subdomain:     req.Subdomain,
		Ports:         req.Ports,
		Volumes:       req.Volumes,
		Environment:   req.Environment,
		MemoryMB:      req.MemoryMB,
		CPU:           req.CPU,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(inst)
}

func (h *AppHandler) ListInstalled(c *fiber.Ctx) error {
	list, err := h.apps.List(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *AppHandler) GetInstalled(c *fiber.Ctx) error {
	detail, err := h.apps.Get(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

func (h *AppHandler) Start(c *fiber.Ctx) error {
	inst, err := h.apps.Start(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(inst)
}

func (h *AppHandler) Stop(c *fiber.Ctx) error {
	inst, err := h.apps.Stop(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(inst)
}

func (h *AppHandler) Restart(c *fiber.Ctx) error {
	inst, err := h.apps.Restart(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(inst)
}

func (h *AppHandler) Uninstall(c *fiber.Ctx) error {
	if err := h.apps.Uninstall(c.UserContext(), subject(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Application uninstalled"})
}

func (h *AppHandler) Logs(c *fiber.Ctx) error {
	logs, err := h.apps.Logs(c.UserContext(), subject(c), c.Params("id"), c.QueryInt("tail", services.DefaultLogTail))
	if err != nil {
		return err
	}
	return c.JSON(logs)
}
