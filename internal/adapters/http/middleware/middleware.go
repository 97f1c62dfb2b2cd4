package middleware

import (
	"errors"
	"time"

	"sacco-console/internal/config"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Setup installs the middleware every request passes through
func Setup(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		ReferrerPolicy:            "same-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		PermissionPolicy:          "geolocation=(), microphone=(), camera=()",
	}))
	app.Use(rateLimit(100, "", "Too many requests, please wait a moment"))
	app.Use(accessLog(cfg))
	app.Use(cors.New(corsConfig(cfg)))
}

func accessLog(cfg *config.Config) fiber.Handler {
	format := "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}"
	if !cfg.IsDev() {
		format += " | ${error}"
	}
	return logger.New(logger.Config{
		Format:     format + "\n",
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// corsConfig allows credentials only for an explicit origin list, since
// the console is driven by its session cookie
func corsConfig(cfg *config.Config) cors.Config {
	origins := cfg.GetAllowedOrigins()
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "Location",
		AllowCredentials: origins != "*",
	}
}

// rateLimit allows max requests per minute per client IP. Limiters with
// different scopes count separately.
func rateLimit(max int, scope, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + scope
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, message)
		},
	})
}

// AuthRateLimiter limits login and OTP submissions to 5 per minute per IP
func AuthRateLimiter() fiber.Handler {
	return rateLimit(5, "-auth", "Too many login attempts, please wait a minute")
}

// StrictRateLimiter limits password changes, onboarding and unlocks to 3
// per minute per IP
func StrictRateLimiter() fiber.Handler {
	return rateLimit(3, "-strict", "Rate limit exceeded, please wait a moment")
}

// ErrorHandler handles errors no handler turned into a response
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		return response.Error(c, code, message)
	}
}
