package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/services"
)

type DomainHandler struct {
	domains *services.DomainService
	system  *services.SystemService
}

func NewDomainHandler(domains *services.DomainService, system *services.SystemService) *DomainHandler {
	return &DomainHandler{domains: domains, system: system}
}

func (h *DomainHandler) List(c *fiber.Ctx) error {
	list, err := h.domains.List(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *DomainHandler) Get(c *fiber.Ctx) error {
	d, err := h.domains.Get(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *DomainHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.domains.Create(c.UserContext(), subject(c), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"domain":            d,
		"verification_name": h.domains.VerificationName(d),
	})
}

func (h *DomainHandler) Update(c *fiber.Ctx) error {
	var req services.DomainUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.domains.Update(c.UserContext(), subject(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *DomainHandler) Delete(c *fiber.Ctx) error {
	if err := h.domains.Delete(c.UserContext(), subject(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Domain deleted"})
}

func (h *DomainHandler) AddRecord(c *fiber.Ctx) error {
	var req domain.DNSRecord
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.domains.AddRecord(c.UserContext(), subject(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *DomainHandler) UpdateRecord(c *fiber.Ctx) error {
	var req domain.DNSRecord
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.domains.UpdateRecord(c.UserContext(), subject(c), c.Params("id"), c.Params("recordId"), req)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *DomainHandler) DeleteRecord(c *fiber.Ctx) error {
	d, err := h.domains.DeleteRecord(c.UserContext(), subject(c), c.Params("id"), c.Params("recordId"))
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *DomainHandler) Verify(c *fiber.Ctx) error {
	d, err := h.domains.Verify(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Domain verified", "domain": d})
}

func (h *DomainHandler) IssueSSL(c *fiber.Ctx) error {
	d, err := h.system.IssueCertificate(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "SSL certificate issued", "ssl": d.SSL})
}

func (h *DomainHandler) RenewSSL(c *fiber.Ctx) error {
	d, err := h.system.RenewCertificate(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "SSL certificate renewed", "ssl": d.SSL})
}
