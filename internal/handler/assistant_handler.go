package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/service"
)

const defaultHistoryLimit = 20

// AssistantHandler serves the nutrition assistant
type AssistantHandler struct {
	states *service.StateService
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(states *service.StateService) *AssistantHandler {
	return &AssistantHandler{states: states}
}

// Consult handles POST /v1/me/assistant/consult
func (h *AssistantHandler) Consult(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	result, err := h.states.Consult(c.UserContext(), userID, req.Query)
	if err != nil {
		return failErr(c, err)
	}

	// The fallback text is still returned so the client can show it
	if result.Response.Degraded {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "assistant unavailable",
			"data":    result.Response,
		})
	}

	return ok(c, fiber.Map{
		"response":   result.Response,
		"weeklyPlan": result.State.WeeklyPlan,
	})
}

// History handles GET /v1/me/assistant/history?limit=
func (h *AssistantHandler) History(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	history, err := h.states.History(c.UserContext(), userID, int64(limit))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, history)
}
