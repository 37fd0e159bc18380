package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIdempotencyApp(t *testing.T, status int) (*fiber.App, *int, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	calls := 0
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(UserIDKey, c.Get("X-Test-User"))
		return c.Next()
	})
	app.Use(IdempotencyMiddleware(client, time.Hour))
	app.Post("/consult", func(c *fiber.Ctx) error {
		calls++
		return c.Status(status).JSON(fiber.Map{"success": status < 300, "data": calls})
	})
	return app, &calls, mr
}

func post(t *testing.T, app *fiber.App, user, correlationID string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/consult", nil)
	req.Header.Set("X-Test-User", user)
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp.Header.Get("X-Idempotent-Replay")
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	app, calls, _ := setupIdempotencyApp(t, fiber.StatusOK)

	status1, body1, replay1 := post(t, app, "u1", "abc")
	status2, body2, replay2 := post(t, app, "u1", "abc")

	assert.Equal(t, fiber.StatusOK, status1)
	assert.Equal(t, fiber.StatusOK, status2)
	assert.Equal(t, body1, body2)
	assert.Empty(t, replay1)
	assert.Equal(t, "true", replay2)
	assert.Equal(t, 1, *calls)
}

func TestIdempotency_ScopedPerUser(t *testing.T) {
	app, calls, _ := setupIdempotencyApp(t, fiber.StatusOK)

	post(t, app, "u1", "abc")
	_, _, replay := post(t, app, "u2", "abc")

	assert.Empty(t, replay)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_FailuresAreNotCached(t *testing.T) {
	app, calls, mr := setupIdempotencyApp(t, fiber.StatusServiceUnavailable)

	post(t, app, "u1", "abc")
	status, _, replay := post(t, app, "u1", "abc")

	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Empty(t, replay)
	assert.Equal(t, 2, *calls)
	assert.False(t, mr.Exists("idempotency:u1:abc"))
}

func TestIdempotency_InFlightConflict(t *testing.T) {
	app, calls, mr := setupIdempotencyApp(t, fiber.StatusOK)
	require.NoError(t, mr.Set("idempotency:u1:abc", inFlightMarker))

	status, _, _ := post(t, app, "u1", "abc")

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, 0, *calls)
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	app, calls, _ := setupIdempotencyApp(t, fiber.StatusOK)

	post(t, app, "u1", "")
	post(t, app, "u1", "")

	assert.Equal(t, 2, *calls)
}
