package flowapi

import (
	"encoding/json"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/flow/flowexec"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// FlowHandler expone la administración de flows por HTTP. El grafo llega como
// documento del builder visual y se valida completo antes de persistir: un
// flow guardado siempre es ejecutable.
type FlowHandler struct {
	flowRepo flow.FlowRepository
	convRepo flow.ConversationRepository
	runner   *flowexec.Runner
}

func NewFlowHandler(flowRepo flow.FlowRepository, convRepo flow.ConversationRepository, runner *flowexec.Runner) *FlowHandler {
	return &FlowHandler{flowRepo: flowRepo, convRepo: convRepo, runner: runner}
}

// SetupRoutes registra las rutas de administración de flows
func (h *FlowHandler) SetupRoutes(app *fiber.App) {
	group := app.Group("/api/v1/flows")
	group.Post("/", h.CreateFlow)
	group.Get("/", h.ListFlows)
	group.Get("/:id", h.GetFlow)
	group.Put("/:id", h.UpdateFlow)
	group.Delete("/:id", h.DeleteFlow)

	conversations := app.Group("/api/v1/conversations")
	conversations.Get("/:id", h.GetConversationState)
	conversations.Post("/:id/reset", h.ResetConversation)
}

type saveFlowRequest struct {
	TenantID   kernel.TenantID  `json:"tenant_id"`
	ChatbotID  kernel.ChatbotID `json:"chatbot_id"`
	Name       string           `json:"name"`
	Graph      map[string]any   `json:"graph"`
	IsMain     bool             `json:"is_main"`
	IsFallback bool             `json:"is_fallback"`
	IsActive   bool             `json:"is_active"`
}

func (h *FlowHandler) CreateFlow(c *fiber.Ctx) error {
	f, err := h.parseAndValidate(c, kernel.NewFlowID(uuid.NewString()))
	if err != nil {
		return err
	}

	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt

	if err := h.flowRepo.Save(c.Context(), *f); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(f.ToDTO())
}

func (h *FlowHandler) UpdateFlow(c *fiber.Ctx) error {
	flowID := kernel.NewFlowID(c.Params("id"))

	existing, err := h.flowRepo.FindByID(c.Context(), flowID)
	if err != nil {
		return toHTTPError(err)
	}

	f, err := h.parseAndValidate(c, flowID)
	if err != nil {
		return err
	}
	if f.TenantID != existing.TenantID {
		return fiber.NewError(fiber.StatusForbidden, "flow belongs to another tenant")
	}

	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = time.Now()

	if err := h.flowRepo.Save(c.Context(), *f); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(f.ToDTO())
}

// parseAndValidate decodes the request, parses the graph document and runs the
// full structural plus per-node validation.
func (h *FlowHandler) parseAndValidate(c *fiber.Ctx, flowID kernel.FlowID) (*flow.Flow, error) {
	var req saveFlowRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.TenantID.IsEmpty() || req.Name == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "tenant_id and name are required")
	}

	rawGraph, err := jsonRemarshal(req.Graph)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid graph document")
	}
	doc, err := flow.ParseGraph(rawGraph)
	if err != nil {
		return nil, toHTTPError(err)
	}

	f := &flow.Flow{
		ID:         flowID,
		TenantID:   req.TenantID,
		ChatbotID:  req.ChatbotID,
		Name:       req.Name,
		Nodes:      doc.Nodes,
		Edges:      doc.Edges,
		IsMain:     req.IsMain,
		IsFallback: req.IsFallback,
		IsActive:   req.IsActive,
	}

	if err := h.runner.ValidateFlow(c.Context(), f); err != nil {
		return nil, toHTTPError(err)
	}
	return f, nil
}

func (h *FlowHandler) ListFlows(c *fiber.Ctx) error {
	req := flow.FlowListRequest{
		TenantID:  kernel.NewTenantID(c.Query("tenant_id")),
		ChatbotID: kernel.NewChatbotID(c.Query("chatbot_id")),
		Search:    c.Query("search"),
	}
	req.Page = c.QueryInt("page", 1)
	req.PageSize = c.QueryInt("page_size", 20)

	if req.TenantID.IsEmpty() {
		return fiber.NewError(fiber.StatusBadRequest, "tenant_id is required")
	}

	resp, err := h.flowRepo.List(c.Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(resp)
}

func (h *FlowHandler) GetFlow(c *fiber.Ctx) error {
	f, err := h.flowRepo.FindByID(c.Context(), kernel.NewFlowID(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(f)
}

func (h *FlowHandler) DeleteFlow(c *fiber.Ctx) error {
	tenantID := kernel.NewTenantID(c.Query("tenant_id"))
	if tenantID.IsEmpty() {
		return fiber.NewError(fiber.StatusBadRequest, "tenant_id is required")
	}

	if err := h.flowRepo.Delete(c.Context(), kernel.NewFlowID(c.Params("id")), tenantID); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *FlowHandler) GetConversationState(c *fiber.Ctx) error {
	conv, err := h.convRepo.FindByID(c.Context(), kernel.NewConversationID(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(conv.ToDTO())
}

// ResetConversation limpia el puntero: el próximo mensaje entra por el nodo
// start. Lo usan los operadores para devolver al bot una conversación atendida.
func (h *FlowHandler) ResetConversation(c *fiber.Ctx) error {
	conv, err := h.convRepo.FindByID(c.Context(), kernel.NewConversationID(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	conv.Reset()
	if err := h.convRepo.Save(c.Context(), *conv); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(conv.ToDTO())
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

func jsonRemarshal(v map[string]any) ([]byte, error) {
	return json.Marshal(v)
}
