package telemetry

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "nutritico-api"

// untracedPaths are polled by load balancers and would drown the traces
var untracedPaths = map[string]bool{
	"/health": true,
}

// FiberMiddleware returns a Fiber middleware that traces HTTP requests.
// Spans are named after the matched route template and carry the
// authenticated user and correlation id once the handler chain ran.
func FiberMiddleware() fiber.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return func(c *fiber.Ctx) error {
		if untracedPaths[c.Path()] {
			return c.Next()
		}

		ctx := propagator.Extract(c.Context(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Method(), c.Path()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.url", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)
		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-ID", span.SpanContext().TraceID().String())
		}

		err := c.Next()

		statusCode := c.Response().StatusCode()
		attrs := []attribute.KeyValue{
			attribute.Int("http.status_code", statusCode),
		}
		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(fmt.Sprintf("%s %s", c.Method(), route.Path))
			attrs = append(attrs, attribute.String("http.route", route.Path))
		}
		if userID, ok := c.Locals(middleware.UserIDKey).(string); ok && userID != "" {
			attrs = append(attrs, attribute.String("enduser.id", userID))
		}
		if corrID := c.Get("X-Correlation-ID"); corrID != "" {
			attrs = append(attrs, attribute.String("nutritico.correlation_id", corrID))
		}
		span.SetAttributes(attrs...)

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case statusCode >= 400:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
		default:
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
