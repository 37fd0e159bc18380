package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/service"
)

// PlanHandler edits the weekly plan
type PlanHandler struct {
	states *service.StateService
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(states *service.StateService) *PlanHandler {
	return &PlanHandler{states: states}
}

// GetPlan handles GET /v1/me/plan
func (h *PlanHandler) GetPlan(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.Snapshot(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.WeeklyPlan)
}

// UpdateItem handles PUT /v1/me/plan/days/:day/meals/:meal/groups/:group/items/:item.
// A qty of 0 or less removes the entry; qty is required.
func (h *PlanHandler) UpdateItem(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	day, err := strconv.Atoi(c.Params("day"))
	if err != nil || !domain.ValidDay(day) {
		return fail(c, fiber.StatusBadRequest, "day must be between 0 and 6")
	}

	var req struct {
		Qty *float64 `json:"qty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Qty == nil {
		return fail(c, fiber.StatusBadRequest, "qty is required")
	}

	state, err := h.states.UpdatePlan(c.UserContext(), userID, day, c.Params("meal"), c.Params("group"), c.Params("item"), *req.Qty)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.WeeklyPlan.Day(day))
}

// ApplyCommands handles POST /v1/me/plan/commands
func (h *PlanHandler) ApplyCommands(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		Commands []domain.PlanCommand `json:"commands"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(req.Commands) == 0 {
		return fail(c, fiber.StatusBadRequest, "commands are required")
	}

	state, err := h.states.ApplyCommands(c.UserContext(), userID, req.Commands)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.WeeklyPlan)
}

// ReplacePlan handles PUT /v1/me/plan
func (h *PlanHandler) ReplacePlan(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		Plan domain.WeeklyPlan `json:"plan"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Plan == nil {
		return fail(c, fiber.StatusBadRequest, "plan is required")
	}

	state, err := h.states.SetWeeklyPlan(c.UserContext(), userID, req.Plan)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.WeeklyPlan)
}

// DaySummary handles GET /v1/me/plan/days/:day/summary
func (h *PlanHandler) DaySummary(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	day, err := strconv.Atoi(c.Params("day"))
	if err != nil || !domain.ValidDay(day) {
		return fail(c, fiber.StatusBadRequest, "day must be between 0 and 6")
	}

	summary, err := h.states.DaySummary(c.UserContext(), userID, day)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, summary)
}
