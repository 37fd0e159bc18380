package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/service"
)

// FastingHandler drives the fasting timer
type FastingHandler struct {
	states *service.StateService
	now    func() time.Time
}

// NewFastingHandler creates a new fasting handler
func NewFastingHandler(states *service.StateService) *FastingHandler {
	return &FastingHandler{
		states: states,
		now:    time.Now,
	}
}

// GetStatus handles GET /v1/me/fasting
func (h *FastingHandler) GetStatus(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.Snapshot(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.Fasting.Status(h.now()))
}

// Start handles POST /v1/me/fasting/start
func (h *FastingHandler) Start(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.StartFasting(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.Fasting.Status(h.now()))
}

// Stop handles POST /v1/me/fasting/stop
func (h *FastingHandler) Stop(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	session, state, err := h.states.StopFasting(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.Map{
		"session": session,
		"status":  state.Fasting.Status(h.now()),
	})
}

// UpdateTarget handles PUT /v1/me/fasting/target
func (h *FastingHandler) UpdateTarget(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		Hours float64 `json:"hours"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.UpdateFastingTarget(c.UserContext(), userID, req.Hours)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.Fasting.Status(h.now()))
}
