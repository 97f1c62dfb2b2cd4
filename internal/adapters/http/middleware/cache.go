package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// NoStore marks console answers as private to the visitor. Every answer
// depends on the session cookie, redirects included.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		c.Set(fiber.HeaderCacheControl, "private, no-store")
		c.Vary(fiber.HeaderCookie)
		return err
	}
}
