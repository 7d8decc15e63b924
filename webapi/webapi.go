// Package webapi provides the HTTP host for the conversion service.
// It is organized into sub-packages:
// - session: conversion session endpoints
// - currency: currency list and rate table endpoints
// - common: response envelopes, problem details and request binding
package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/fxdate/pkg/app"
	"github.com/amirasaad/fxdate/webapi/common"
	currencyweb "github.com/amirasaad/fxdate/webapi/currency"
	sessionweb "github.com/amirasaad/fxdate/webapi/session"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})
	fiberApp.Get("/swagger/*", swagger.New(swagger.Config{
		TryItOutEnabled: true,
	}))

	if a.Config != nil && a.Config.RateLimit != nil && a.Config.RateLimit.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:        a.Config.RateLimit.MaxRequests,
			Expiration: a.Config.RateLimit.Window,
			KeyGenerator: func(c *fiber.Ctx) string {
				// Behind a proxy the first X-Forwarded-For hop is the client.
				if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
					first, _, _ := strings.Cut(forwardedFor, ",")
					return strings.TrimSpace(first)
				}
				if realIP := c.Get("X-Real-IP"); realIP != "" {
					return realIP
				}
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return common.ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("fxdate API is running! 🚀")
	})
	fiberApp.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(a.Deps.Registry, promhttp.HandlerOpts{}),
	))

	currencyweb.Routes(fiberApp, a.Exchange)
	sessionweb.Routes(fiberApp, a.Sessions)
	return fiberApp
}
