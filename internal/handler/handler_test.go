package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/middleware"
	"github.com/mansoorceksport/nutritico/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu     sync.Mutex
	states map[string]*domain.AppState
}

func (r *stubRepo) Save(ctx context.Context, userID string, state *domain.AppState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[userID] = state.Clone()
	return nil
}

func (r *stubRepo) Load(ctx context.Context, userID string) (*domain.AppState, error) {
	return nil, nil
}

type stubTransport struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (s *stubTransport) Complete(ctx context.Context, systemPrompt, userQuery string, images [][]byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply, s.err
}

func (s *stubTransport) set(reply string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply, s.err = reply, err
}

// newTestApp wires the handlers with an authenticated user taken from X-Test-User
func newTestApp(t *testing.T) (*fiber.App, *stubTransport) {
	t.Helper()
	transport := &stubTransport{}
	states := service.NewStateService(&stubRepo{states: map[string]*domain.AppState{}}, nil, nil, service.NewAssistantGateway(transport, nil), nil)
	t.Cleanup(states.Close)

	stateHandler := NewStateHandler(states, service.NewDashboardService(states))
	planHandler := NewPlanHandler(states)
	fastingHandler := NewFastingHandler(states)
	assistantHandler := NewAssistantHandler(states)
	foodHandler := NewFoodHandler(states, service.NewFoodLabelService(transport, nil, nil), 1)

	app := fiber.New(fiber.Config{UnescapePath: true})
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals(middleware.UserIDKey, uid)
		}
		return c.Next()
	})

	app.Get("/state", stateHandler.GetState)
	app.Patch("/profile", stateHandler.UpdateProfile)
	app.Put("/training-intensity", stateHandler.SetTrainingIntensity)
	app.Get("/targets", stateHandler.GetTargets)
	app.Post("/meals", stateHandler.AddMeal)
	app.Put("/meals/:name", stateHandler.UpdateMeal)
	app.Delete("/meals/:name", stateHandler.RemoveMeal)
	app.Post("/consumption", stateHandler.LogConsumption)
	app.Put("/plan", planHandler.ReplacePlan)
	app.Put("/plan/days/:day/meals/:meal/groups/:group/items/:item", planHandler.UpdateItem)
	app.Post("/plan/commands", planHandler.ApplyCommands)
	app.Get("/plan/days/:day/summary", planHandler.DaySummary)
	app.Post("/fasting/start", fastingHandler.Start)
	app.Put("/fasting/target", fastingHandler.UpdateTarget)
	app.Post("/assistant/consult", assistantHandler.Consult)
	app.Get("/foods", foodHandler.ListFoods)
	app.Post("/foods/scan", foodHandler.ScanFood)

	return app, transport
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "uid-1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidProfile, fiber.StatusBadRequest},
		{fmt.Errorf("%w: weight", domain.ErrInvalidProfile), fiber.StatusBadRequest},
		{domain.ErrInvalidDay, fiber.StatusBadRequest},
		{fmt.Errorf("command 1: %w", domain.ErrInvalidCommand), fiber.StatusBadRequest},
		{domain.ErrEmptyQuery, fiber.StatusBadRequest},
		{domain.ErrUnknownGroup, fiber.StatusBadRequest},
		{domain.ErrUnknownMeal, fiber.StatusNotFound},
		{domain.ErrFastingActive, fiber.StatusConflict},
		{domain.ErrDuplicateMeal, fiber.StatusConflict},
		{domain.ErrNoFoodDetected, fiber.StatusUnprocessableEntity},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestHandlers_RequireUser(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/state", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestStateHandlers(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "GET", "/state", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, _ = doJSON(t, app, "PATCH", "/profile", map[string]interface{}{"age": 0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, "PUT", "/training-intensity", map[string]string{"intensity": "high"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "high", data["intensity"])

	resp, _ = doJSON(t, app, "PUT", "/training-intensity", map[string]string{"intensity": "extreme"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, "GET", "/targets?intensity=rest", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2101, body["data"].(map[string]interface{})["calories"])

	resp, _ = doJSON(t, app, "POST", "/meals", map[string]string{"name": "Cena"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp, _ = doJSON(t, app, "POST", "/meals", map[string]string{"name": "Pre-entreno", "time": "06:00"})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, app, "PUT", "/meals/Pre-entreno", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp, _ = doJSON(t, app, "DELETE", "/meals/Brunch", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPlanHandlers(t *testing.T) {
	app, _ := newTestApp(t)
	itemPath := "/plan/days/0/meals/Desayuno/groups/Harinas/items/h1"

	resp, _ := doJSON(t, app, "PUT", itemPath, map[string]interface{}{"qty": 2})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, "PUT", "/plan/days/8/meals/Desayuno/groups/Harinas/items/h1", map[string]interface{}{"qty": 2})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, app, "GET", "/plan/days/0/summary", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	summary := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["total_count"])
	assert.EqualValues(t, 280, summary["projected"].(map[string]interface{})["calories"])

	resp, _ = doJSON(t, app, "GET", "/plan/days/x/summary", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	t.Run("missing qty keeps the entry", func(t *testing.T) {
		for _, body := range []map[string]interface{}{{}, {"quantity": 3}} {
			resp, _ := doJSON(t, app, "PUT", itemPath, body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		}

		_, body := doJSON(t, app, "GET", "/state", nil)
		plan := body["data"].(map[string]interface{})["weeklyPlan"].(map[string]interface{})
		items := plan["0"].(map[string]interface{})["Desayuno"].(map[string]interface{})["Harinas"].(map[string]interface{})
		assert.EqualValues(t, 2, items["h1"])
	})

	t.Run("encoded meal names", func(t *testing.T) {
		resp, body := doJSON(t, app, "PUT", "/plan/days/4/meals/Media%20ma%C3%B1ana/groups/Grasas/items/g1", map[string]interface{}{"qty": 1})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, body["data"], "Media mañana")
	})

	t.Run("replace takes a plan object", func(t *testing.T) {
		resp, body := doJSON(t, app, "PUT", "/plan", map[string]interface{}{
			"plan": map[string]interface{}{"2": map[string]interface{}{"Cena": map[string]interface{}{"Proteinas": map[string]float64{"p1": 1}}}},
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		plan := body["data"].(map[string]interface{})
		assert.Contains(t, plan, "2")
		assert.NotContains(t, plan, "0")

		resp, _ = doJSON(t, app, "PUT", "/plan", map[string]interface{}{"2": map[string]interface{}{}})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("raw commands are validated", func(t *testing.T) {
		resp, _ := doJSON(t, app, "POST", "/plan/commands", map[string]interface{}{
			"commands": []map[string]interface{}{
				{"dayIndex": 1, "meal": "Almuerzo", "group": "Vegetales", "itemId": "v1", "qty": 1},
				{"dayIndex": 1, "meal": "", "group": "Vegetales", "itemId": "v2", "qty": 1},
			},
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		_, body := doJSON(t, app, "GET", "/state", nil)
		plan := body["data"].(map[string]interface{})["weeklyPlan"].(map[string]interface{})
		assert.NotContains(t, plan, "1", "a rejected batch must not be partially applied")

		resp, body = doJSON(t, app, "POST", "/plan/commands", map[string]interface{}{
			"commands": []map[string]interface{}{
				{"dayIndex": 1, "meal": "Almuerzo", "group": "Vegetales", "itemId": "v1", "qty": 1},
			},
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, body["data"], "1")
	})
}

func TestLogConsumptionHandler(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/consumption", map[string]interface{}{
		"dayIndex": 3, "meal": "Cena", "group": "Proteinas", "itemId": "p1", "factor": 1,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["data"].(map[string]interface{})["day_index"])

	_, body = doJSON(t, app, "GET", "/state", nil)
	consumed := body["data"].(map[string]interface{})["consumedItems"].(map[string]interface{})
	assert.Contains(t, consumed, "3-Cena-Proteinas-p1")
	assert.NotContains(t, consumed, "0-Cena-Proteinas-p1")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing dayIndex", map[string]interface{}{"meal": "Cena", "group": "Proteinas", "itemId": "p1", "factor": 1}},
		{"legacy day field", map[string]interface{}{"day": 3, "meal": "Cena", "group": "Proteinas", "itemId": "p1", "factor": 1}},
		{"day out of range", map[string]interface{}{"dayIndex": 7, "meal": "Cena", "group": "Proteinas", "itemId": "p1", "factor": 1}},
		{"missing item", map[string]interface{}{"dayIndex": 3, "meal": "Cena", "group": "Proteinas", "factor": 1}},
		{"zero factor", map[string]interface{}{"dayIndex": 3, "meal": "Cena", "group": "Proteinas", "itemId": "p1", "factor": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, app, "POST", "/consumption", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestFastingHandlers(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "PUT", "/fasting/target", map[string]float64{"hours": 0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/fasting/start", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["data"].(map[string]interface{})["is_active"])

	resp, _ = doJSON(t, app, "POST", "/fasting/start", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAssistantConsultHandler(t *testing.T) {
	app, transport := newTestApp(t)

	transport.set(`Hecho. [PLAN_UPDATE: {"dayIndex":3,"meal":"Cena","group":"Vegetales","itemId":"v2","qty":1}]`, nil)
	resp, body := doJSON(t, app, "POST", "/assistant/consult", map[string]string{"query": "Más verdura"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Hecho.", data["response"].(map[string]interface{})["text"])
	assert.Contains(t, data["weeklyPlan"], "3")

	resp, _ = doJSON(t, app, "POST", "/assistant/consult", map[string]string{"query": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	transport.set("", errors.New("down"))
	resp, body = doJSON(t, app, "POST", "/assistant/consult", map[string]string{"query": "Hola"})
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, service.FallbackMessage, body["data"].(map[string]interface{})["text"])
}

func scanRequest(t *testing.T, group, save string, image []byte, filename, contentType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(image)
	require.NoError(t, w.WriteField("group", group))
	require.NoError(t, w.WriteField("save", save))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/foods/scan", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Test-User", "uid-1")
	return req
}

func TestScanFoodHandler(t *testing.T) {
	app, transport := newTestApp(t)
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

	transport.set(`{"name":"Queso Crema Light","calories":50,"baseAmount":30,"unit":"g","p":2,"c":1,"f":4,"fiber":0}`, nil)
	resp, err := app.Test(scanRequest(t, "Grasas", "true", png, "label.png", "image/png"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, body := doJSON(t, app, "GET", "/foods", nil)
	fats := body["data"].(map[string]interface{})["Grasas"].([]interface{})
	assert.Equal(t, "Queso Crema Light", fats[0].(map[string]interface{})["name"])

	resp, err = app.Test(scanRequest(t, "Grasas", "false", png, "label.pdf", "application/pdf"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	transport.set("No hay tabla", nil)
	resp, err = app.Test(scanRequest(t, "Grasas", "false", png, "label.png", "image/png"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = app.Test(scanRequest(t, "Dulces", "false", png, "label.png", "image/png"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
