package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/service"
)

// StateHandler exposes the user's profile, meals and daily logs
type StateHandler struct {
	states    *service.StateService
	dashboard *service.DashboardService
}

// NewStateHandler creates a new state handler
func NewStateHandler(states *service.StateService, dashboard *service.DashboardService) *StateHandler {
	return &StateHandler{
		states:    states,
		dashboard: dashboard,
	}
}

// GetState handles GET /v1/me/state
func (h *StateHandler) GetState(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.Snapshot(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state)
}

// ResetState handles DELETE /v1/me/state
func (h *StateHandler) ResetState(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.Reset(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state)
}

// Sync handles POST /v1/me/sync
func (h *StateHandler) Sync(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.SyncNow(c.UserContext(), userID)
	if err != nil {
		return fail(c, fiber.StatusServiceUnavailable, "sync failed: "+err.Error())
	}
	return ok(c, fiber.Map{"lastSync": state.LastSync})
}

// CompleteOnboarding handles POST /v1/me/onboarding/complete
func (h *StateHandler) CompleteOnboarding(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var patch domain.ProfilePatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.CompleteOnboarding(c.UserContext(), userID, patch)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state)
}

// UpdateProfile handles PATCH /v1/me/profile
func (h *StateHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var patch domain.ProfilePatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.UpdateProfile(c.UserContext(), userID, patch)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.Map{
		"profile": state.Profile,
		"targets": state.CalculatedTargets,
	})
}

// SetTrainingIntensity handles PUT /v1/me/training-intensity
func (h *StateHandler) SetTrainingIntensity(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		Intensity domain.TrainingIntensity `json:"intensity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.SetTrainingIntensity(c.UserContext(), userID, req.Intensity)
	if err != nil {
		return failInput(c, err)
	}
	return ok(c, fiber.Map{
		"intensity": state.TrainingIntensity,
		"targets":   state.CalculatedTargets,
	})
}

// GetTargets handles GET /v1/me/targets. The optional ?intensity= previews
// another training day without saving it.
func (h *StateHandler) GetTargets(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.Snapshot(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}

	if q := c.Query("intensity"); q != "" {
		intensity := domain.TrainingIntensity(q)
		if !intensity.Valid() {
			return fail(c, fiber.StatusBadRequest, "intensity must be rest, moderate or high")
		}
		return ok(c, domain.ComputeTargets(state.Profile, intensity))
	}
	return ok(c, state.CalculatedTargets)
}

// LogWeight handles POST /v1/me/weight
func (h *StateHandler) LogWeight(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		Weight float64 `json:"weight"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.LogWeight(c.UserContext(), userID, req.Weight)
	if err != nil {
		return failErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"profile":       state.Profile,
			"weightHistory": state.WeightHistory,
			"targets":       state.CalculatedTargets,
		},
	})
}

// AddWater handles POST /v1/me/water
func (h *StateHandler) AddWater(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.AddWater(c.UserContext(), userID, req.Amount)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.Map{"waterIntake": state.WaterIntake})
}

type mealRequest struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

func mealsView(state *domain.AppState) fiber.Map {
	return fiber.Map{
		"activeMeals": state.ActiveMeals,
		"mealTimes":   state.MealTimes,
	}
}

// AddMeal handles POST /v1/me/meals
func (h *StateHandler) AddMeal(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req mealRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Name == "" {
		return fail(c, fiber.StatusBadRequest, "meal name is required")
	}

	state, err := h.states.AddMeal(c.UserContext(), userID, req.Name, req.Time)
	if err != nil {
		return failErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    mealsView(state),
	})
}

// UpdateMeal handles PUT /v1/me/meals/:name (rename and/or new time)
func (h *StateHandler) UpdateMeal(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req mealRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.UpdateMeal(c.UserContext(), userID, c.Params("name"), req.Name, req.Time)
	if err != nil {
		return failInput(c, err)
	}
	return ok(c, mealsView(state))
}

// RemoveMeal handles DELETE /v1/me/meals/:name
func (h *StateHandler) RemoveMeal(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.RemoveMeal(c.UserContext(), userID, c.Params("name"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, mealsView(state))
}

// ReorderMeal handles POST /v1/me/meals/reorder
func (h *StateHandler) ReorderMeal(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		OldIndex int `json:"oldIndex"`
		NewIndex int `json:"newIndex"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := h.states.ReorderMeal(c.UserContext(), userID, req.OldIndex, req.NewIndex)
	if err != nil {
		return failInput(c, err)
	}
	return ok(c, mealsView(state))
}

// LogConsumption handles POST /v1/me/consumption
func (h *StateHandler) LogConsumption(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var req struct {
		DayIndex    *int    `json:"dayIndex"`
		Meal        string  `json:"meal"`
		Group       string  `json:"group"`
		ItemID      string  `json:"itemId"`
		Factor      float64 `json:"factor"`
		Alternative string  `json:"alternative"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.DayIndex == nil {
		return fail(c, fiber.StatusBadRequest, "dayIndex is required")
	}
	if req.Meal == "" || req.Group == "" || req.ItemID == "" {
		return fail(c, fiber.StatusBadRequest, "meal, group and itemId are required")
	}
	day := *req.DayIndex

	ctx := c.UserContext()
	if _, err := h.states.LogConsumption(ctx, userID, day, req.Meal, req.Group, req.ItemID, req.Factor, req.Alternative); err != nil {
		return failErr(c, err)
	}

	summary, err := h.states.DaySummary(ctx, userID, day)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, summary)
}

// GetDashboard handles GET /v1/me/dashboard
func (h *StateHandler) GetDashboard(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	dash, err := h.dashboard.Get(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, dash)
}
