package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond the limiter's rate with 429. The limit is
// shared by all clients.
func RateLimit(limiter *rate.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limiter.Allow() {
			return errTooManyRequests
		}
		return c.Next()
	}
}
