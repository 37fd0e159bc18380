package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	correlationHeader = "X-Correlation-ID"
	inFlightMarker    = "in-flight"
	inFlightTTL       = 2 * time.Minute
)

// IdempotencyMiddleware provides idempotency for POST/PATCH/PUT requests using X-Correlation-ID.
// A 2xx response is replayed for the same user and correlation ID within the TTL.
// A retry that arrives while the first request is still running gets 409.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Only apply to mutating methods
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(correlationHeader)
		if correlationID == "" {
			// No correlation ID = no idempotency check
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s", GetUserID(c), correlationID)
		ctx := c.UserContext()

		// Claim the key; a stored value is either a finished response or the in-flight marker
		claimed, err := redisClient.SetNX(ctx, key, inFlightMarker, inFlightTTL).Result()
		if err != nil {
			log.Printf("Warning: idempotency check failed for %s: %v", correlationID, err)
			return c.Next()
		}
		if !claimed {
			cached, err := redisClient.Get(ctx, key).Bytes()
			if err == nil && string(cached) != inFlightMarker && len(cached) > 0 {
				c.Set("X-Idempotent-Replay", "true")
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				return c.Send(cached)
			}
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   "a request with this correlation id is already in progress",
			})
		}

		handlerErr := c.Next()

		storeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		// Cache successful responses (2xx status codes); release the claim otherwise
		statusCode := c.Response().StatusCode()
		body := c.Response().Body()
		if handlerErr == nil && statusCode >= 200 && statusCode < 300 && len(body) > 0 {
			if err := redisClient.Set(storeCtx, key, body, ttl).Err(); err != nil {
				log.Printf("Warning: failed to store idempotent response %s: %v", correlationID, err)
			}
		} else {
			redisClient.Del(storeCtx, key)
		}

		return handlerErr
	}
}
