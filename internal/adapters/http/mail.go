package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-panel/internal/core/services"
)

type MailHandler struct {
	service *services.MailService
}

func NewMailHandler(service *services.MailService) *MailHandler {
	return &MailHandler{service: service}
}

func (h *MailHandler) List(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *MailHandler) ListByDomain(c *fiber.Ctx) error {
	list, err := h.service.ListByDomain(c.UserContext(), subject(c), c.Params("domainId"))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *MailHandler) Get(c *fiber.Ctx) error {
	m, err := h.service.Get(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(m)
}

func (h *MailHandler) Create(c *fiber.Ctx) error {
	var req services.NewMailAccount
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.service.Create(c.UserContext(), subject(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (h *MailHandler) Update(c *fiber.Ctx) error {
	var req services.MailAccountUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.service.Update(c.UserContext(), subject(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(m)
}

func (h *MailHandler) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.service.ChangePassword(c.UserContext(), subject(c), c.Params("id"), req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

func (h *MailHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), subject(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Mail account deleted"})
}

func (h *MailHandler) Stats(c *fiber.Ctx) error {
	st, err := h.service.Stats(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *MailHandler) EnableDomain(c *fiber.Ctx) error {
	res, err := h.service.EnableForDomain(c.UserContext(), subject(c), c.Params("domainId"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
