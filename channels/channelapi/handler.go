package channelapi

import (
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/channels/channelmanager"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// ChannelHandler expone la administración de canales por HTTP
type ChannelHandler struct {
	repo    channels.ChannelRepository
	manager *channelmanager.DefaultChannelManager
}

func NewChannelHandler(repo channels.ChannelRepository, manager *channelmanager.DefaultChannelManager) *ChannelHandler {
	return &ChannelHandler{repo: repo, manager: manager}
}

// SetupRoutes registra las rutas de administración de canales
func (h *ChannelHandler) SetupRoutes(app *fiber.App) {
	group := app.Group("/api/v1/channels")
	group.Post("/", h.CreateChannel)
	group.Get("/", h.ListChannels)
	group.Get("/:id", h.GetChannel)
	group.Delete("/:id", h.DeleteChannel)
	group.Post("/:id/test", h.TestChannel)
}

func (h *ChannelHandler) CreateChannel(c *fiber.Ctx) error {
	var req channels.CreateChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.TenantID.IsEmpty() || req.PhoneNumber == "" {
		return fiber.NewError(fiber.StatusBadRequest, "tenant_id and phone_number are required")
	}

	exists, err := h.repo.ExistsByName(c.Context(), req.Name, req.TenantID)
	if err != nil {
		return toHTTPError(err)
	}
	if exists {
		return toHTTPError(channels.ErrChannelAlreadyExists().WithDetail("name", req.Name))
	}

	now := time.Now()
	channel := channels.Channel{
		ID:          kernel.NewChannelID(uuid.NewString()),
		TenantID:    req.TenantID,
		ChatbotID:   req.ChatbotID,
		Mode:        req.Mode,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Config:      req.Config,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Registrar primero: valida la config construyendo el adapter
	if err := h.manager.RegisterChannel(c.Context(), channel); err != nil {
		return toHTTPError(err)
	}
	if err := h.repo.Save(c.Context(), channel); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(channel.ToDTO())
}

func (h *ChannelHandler) ListChannels(c *fiber.Ctx) error {
	req := channels.ListChannelsRequest{
		TenantID: kernel.NewTenantID(c.Query("tenant_id")),
		Search:   c.Query("search"),
	}
	req.Page = c.QueryInt("page", 1)
	req.PageSize = c.QueryInt("page_size", 20)

	if req.TenantID.IsEmpty() {
		return fiber.NewError(fiber.StatusBadRequest, "tenant_id is required")
	}

	resp, err := h.repo.List(c.Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(resp)
}

func (h *ChannelHandler) GetChannel(c *fiber.Ctx) error {
	tenantID := kernel.NewTenantID(c.Query("tenant_id"))
	if tenantID.IsEmpty() {
		return fiber.NewError(fiber.StatusBadRequest, "tenant_id is required")
	}

	channel, err := h.repo.FindByID(c.Context(), kernel.NewChannelID(c.Params("id")), tenantID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(channel.ToDTO())
}

func (h *ChannelHandler) DeleteChannel(c *fiber.Ctx) error {
	tenantID := kernel.NewTenantID(c.Query("tenant_id"))
	if tenantID.IsEmpty() {
		return fiber.NewError(fiber.StatusBadRequest, "tenant_id is required")
	}

	channelID := kernel.NewChannelID(c.Params("id"))
	if err := h.repo.Delete(c.Context(), channelID, tenantID); err != nil {
		return toHTTPError(err)
	}
	h.manager.UnregisterChannel(channelID)

	return c.SendStatus(fiber.StatusNoContent)
}

// TestChannel valida credenciales contra el proveedor y, si se pide, envía un
// mensaje de prueba.
func (h *ChannelHandler) TestChannel(c *fiber.Ctx) error {
	tenantID := kernel.NewTenantID(c.Query("tenant_id"))
	if tenantID.IsEmpty() {
		return fiber.NewError(fiber.StatusBadRequest, "tenant_id is required")
	}

	channelID := kernel.NewChannelID(c.Params("id"))
	channel, err := h.repo.FindByID(c.Context(), channelID, tenantID)
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.manager.RegisterChannel(c.Context(), *channel); err != nil {
		return toHTTPError(err)
	}

	adapter, err := h.manager.GetAdapter(channelID)
	if err != nil {
		return toHTTPError(err)
	}

	start := time.Now()
	if err := adapter.TestConnection(c.Context()); err != nil {
		return c.JSON(fiber.Map{
			"success":          false,
			"error":            err.Error(),
			"response_time_ms": time.Since(start).Milliseconds(),
		})
	}

	var req channels.TestChannelRequest
	if err := c.BodyParser(&req); err == nil && req.RecipientID != "" {
		message := req.Message
		if message == "" {
			message = "Mensagem de teste do PyTake ✅"
		}
		if _, err := h.manager.SendMessage(c.Context(), tenantID, channelID, channels.OutgoingMessage{
			RecipientID: req.RecipientID,
			Content:     channels.MessageContent{Type: "text", Text: message},
		}); err != nil {
			return toHTTPError(err)
		}
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"response_time_ms": time.Since(start).Milliseconds(),
	})
}

func toHTTPError(err error) error {
	switch {
	case errx.IsType(err, errx.TypeNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errx.IsType(err, errx.TypeValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errx.IsType(err, errx.TypeConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errx.IsType(err, errx.TypeBusiness):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errx.IsType(err, errx.TypeExternal):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
