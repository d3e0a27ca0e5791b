package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/services"
)

// SystemHandler exposes the host operations. Every route is admin-only.
type SystemHandler struct {
	service *services.SystemService
}

func NewSystemHandler(service *services.SystemService) *SystemHandler {
	return &SystemHandler{service: service}
}

func (h *SystemHandler) Info(c *fiber.Ctx) error {
	info, err := h.service.Info(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(info)
}

func (h *SystemHandler) Stats(c *fiber.Ctx) error {
	st, err := h.service.Stats(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *SystemHandler) Services(c *fiber.Ctx) error {
	statuses, err := h.service.ServiceStatuses(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(statuses)
}

func (h *SystemHandler) ControlService(c *fiber.Ctx) error {
	name := c.Params("name")
	action := domain.ServiceAction(c.Params("action"))
	if err := h.service.ControlService(c.UserContext(), subject(c), name, action); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Service " + name + " " + string(action) + " completed"})
}

func (h *SystemHandler) Firewall(c *fiber.Ctx) error {
	out, err := h.service.FirewallStatus(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": out})
}

func (h *SystemHandler) AddFirewallRule(c *fiber.Ctx) error {
	var req struct {
		Port     string `json:"port"`
		Protocol string `json:"protocol"`
		Action   string `json:"action"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.service.AddFirewallRule(c.UserContext(), subject(c), services.FirewallRule{
		Port:     req.Port,
		Protocol: req.Protocol,
		Action:   req.Action,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Firewall rule added"})
}

func (h *SystemHandler) DeleteFirewallRule(c *fiber.Ctx) error {
	if err := h.service.DeleteFirewallRule(c.UserContext(), subject(c), c.Params("number")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Firewall rule deleted"})
}

func (h *SystemHandler) RenewAllCertificates(c *fiber.Ctx) error {
	out, err := h.service.RenewAllCertificates(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Certificates renewed", "output": out})
}

func (h *SystemHandler) ReloadNginx(c *fiber.Ctx) error {
	if err := h.service.ReloadNginx(c.UserContext(), subject(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Nginx reloaded"})
}

func (h *SystemHandler) CreateBackup(c *fiber.Ctx) error {
	b, err := h.service.CreateBackup(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (h *SystemHandler) ListBackups(c *fiber.Ctx) error {
	list, err := h.service.ListBackups(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *SystemHandler) Logs(c *fiber.Ctx) error {
	out, err := h.service.ReadLogs(c.UserContext(), subject(c), c.Params("type"), c.QueryInt("lines", services.DefaultLogTail))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"logs": out})
}

func (h *SystemHandler) CheckUpdates(c *fiber.Ctx) error {
	check, err := h.service.CheckUpdates(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(check)
}

func (h *SystemHandler) UpdatePackages(c *fiber.Ctx) error {
	out, err := h.service.UpdatePackages(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "System updated", "output": out})
}

func (h *SystemHandler) SelfUpdate(c *fiber.Ctx) error {
	rev, err := h.service.SelfUpdate(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Panel updated, restarting", "revision": rev})
}

func (h *SystemHandler) RestartPanel(c *fiber.Ctx) error {
	if err := h.service.RestartPanel(c.UserContext(), subject(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Panel restart scheduled"})
}

func (h *SystemHandler) Reboot(c *fiber.Ctx) error {
	if err := h.service.Reboot(c.UserContext(), subject(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Reboot scheduled"})
}
