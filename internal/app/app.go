// Package app assembles the fiber application: middleware, access gate
// and routes.
package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/export"
	"cvbuilder/internal/handlers"
	"cvbuilder/internal/logging"
)

// Deps carries everything the app needs. Stores are interfaces so tests
// can run the full app against in-memory fakes.
type Deps struct {
	Config   config.Config
	Users    handlers.UserStore
	CVs      handlers.CVStore
	Tokens   *auth.Manager
	Launcher export.Launcher
}

// SetupApp creates and configures a new Fiber app instance
func SetupApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               d.Config.Server.Prefork,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	RegisterMiddleware(app, d.Config)
	RegisterRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, d Deps) {
	authH := handlers.NewAuth(d.Users, d.Tokens, d.Config.Auth.CookieName)
	cvH := handlers.NewCVs(d.CVs, authH)
	exportH := handlers.NewExport(export.New(d.Launcher, d.Config))
	previewH := handlers.NewPreview(d.CVs)

	api := app.Group("/api")

	api.Post("/auth/register", authH.HandleRegister)
	api.Post("/auth/login", authH.HandleLogin)
	api.Post("/auth/logout", authH.HandleLogout)

	api.Post("/cvs", cvH.HandleSave)
	api.Get("/cvs", cvH.HandleList)
	api.Get("/cvs/:id", cvH.HandleGet)
	api.Delete("/cvs/:id", cvH.HandleDelete)

	api.Get("/presets", cvH.HandlePresets)
	api.Get("/presets/:country", cvH.HandlePresetByCountry)

	api.Post("/export/pdf", exportH.HandleExport)

	api.Get("/monitor", monitor.New())

	app.Get("/preview", previewH.HandlePreview)
}
