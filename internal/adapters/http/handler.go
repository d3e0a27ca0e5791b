package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-panel/internal/core/services"
)

// ContainerHandler operates on raw runtime containers, including ones the
// panel did not install.
type ContainerHandler struct {
	service *services.ContainerService
}

func NewContainerHandler(service *services.ContainerService) *ContainerHandler {
	return &ContainerHandler{service: service}
}

func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.List(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(containers)
}

type pullRequest struct {
	Image string `json:"image"`
}

func (h *ContainerHandler) PullImage(c *fiber.Ctx) error {
	var req pullRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Image == "" {
		return badRequest("Image name is required")
	}
	if err := h.service.Pull(c.UserContext(), subject(c), req.Image); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Image pulled", "image": req.Image})
}

func (h *ContainerHandler) InspectContainer(c *fiber.Ctx) error {
	info, err := h.service.Inspect(c.UserContext(), subject(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(info)
}

func (h *ContainerHandler) StartContainer(c *fiber.Ctx) error {
	if err := h.service.Start(c.UserContext(), subject(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ContainerHandler) StopContainer(c *fiber.Ctx) error {
	if err := h.service.Stop(c.UserContext(), subject(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ContainerHandler) RestartContainer(c *fiber.Ctx) error {
	if err := h.service.Restart(c.UserContext(), subject(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ContainerHandler) RemoveContainer(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)
	if err := h.service.Remove(c.UserContext(), subject(c), c.Params("id"), force); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	logs, err := h.service.Logs(c.UserContext(), subject(c), c.Params("id"), c.QueryInt("tail", services.DefaultLogTail))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(logs)
}

func (h *ContainerHandler) Status(c *fiber.Ctx) error {
	st, err := h.service.Status(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

// CreateContainer creates and starts a container from an image already on
// the host.
func (h *ContainerHandler) CreateContainer(c *fiber.Ctx) error {
	var req services.NewContainer
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.service.Create(c.UserContext(), subject(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Container created", "id": id})
}

type execRequest struct {
	Cmd []string `json:"cmd"`
}

func (h *ContainerHandler) ExecContainer(c *fiber.Ctx) error {
	var req execRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.service.Exec(c.UserContext(), subject(c), c.Params("id"), req.Cmd)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *ContainerHandler) ListImages(c *fiber.Ctx) error {
	images, err := h.service.Images(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(images)
}

func (h *ContainerHandler) RemoveImage(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)
	if err := h.service.RemoveImage(c.UserContext(), subject(c), c.Params("id"), force); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Image removed"})
}

func (h *ContainerHandler) ListNetworks(c *fiber.Ctx) error {
	networks, err := h.service.Networks(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(networks)
}

type networkRequest struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
}

func (h *ContainerHandler) CreateNetwork(c *fiber.Ctx) error {
	var req networkRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.service.CreateNetwork(c.UserContext(), subject(c), req.Name, req.Driver)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Network created", "id": id})
}

func (h *ContainerHandler) ListVolumes(c *fiber.Ctx) error {
	volumes, err := h.service.Volumes(c.UserContext(), subject(c))
	if err != nil {
		return err
	}
	return c.JSON(volumes)
}

type volumeRequest struct {
	Name string `json:"name"`
}

func (h *ContainerHandler) CreateVolume(c *fiber.Ctx) error {
	var req volumeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.service.CreateVolume(c.UserContext(), subject(c), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}
