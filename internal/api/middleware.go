package api

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_duration_seconds",
		Help: "Duration of HTTP requests.",
	}, []string{"method", "route", "status_code"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status_code"})
)

func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", c.Response().StatusCode())

		httpDuration.WithLabelValues(c.Method(), c.Route().Path, status).Observe(duration)
		httpRequests.WithLabelValues(c.Method(), c.Route().Path, status).Inc()

		return err
	}
}

func RateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               30,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(errorBody(c, fiber.StatusTooManyRequests, "Too many requests"))
		},
	})
}

func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		return c.Status(code).JSON(errorBody(c, code, message))
	}
}

func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("X-Request-ID", requestID)
		c.Locals("requestID", requestID)

		return c.Next()
	}
}

// TokenAuth requires "Authorization: Bearer <token>". An empty token
// disables the check.
func TokenAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		want := "Bearer " + token
		if subtle.ConstantTimeCompare([]byte(c.Get(fiber.HeaderAuthorization)), []byte(want)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody(c, fiber.StatusUnauthorized, "Unauthorized"))
		}
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestID").(string)
	return id
}

func errorBody(c *fiber.Ctx, code int, message string, details ...string) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	}
}
