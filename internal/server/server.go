package server

import (
	"log"

	"ai-consult-copilot/internal/bootstrap"
	"ai-consult-copilot/internal/config"
	"ai-consult-copilot/internal/pkg/logger"
	"ai-consult-copilot/internal/pkg/serverutils"
	"ai-consult-copilot/internal/repository/memory"
	"ai-consult-copilot/internal/service"
	"ai-consult-copilot/pkg/capture"
	"ai-consult-copilot/pkg/clinicapi"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

// ErrorMappers assigns HTTP statuses to the domain errors handlers return.
func ErrorMappers() []serverutils.ErrorMapper {
	return []serverutils.ErrorMapper{
		serverutils.StatusFor(service.ErrConsultationActive, fiber.StatusConflict),
		serverutils.StatusFor(memory.ErrAlreadyRegistered, fiber.StatusConflict),
		serverutils.StatusFor(capture.ErrAlreadyCapturing, fiber.StatusConflict),
		serverutils.StatusFor(service.ErrConsultationNotFound, fiber.StatusNotFound),
		serverutils.StatusFor(logger.ErrLogNotFound, fiber.StatusNotFound),
		serverutils.StatusFor(service.ErrEmptyStaging, fiber.StatusUnprocessableEntity),
		serverutils.StatusFor(capture.ErrCaptureUnavailable, fiber.StatusServiceUnavailable),
		serverutils.StatusFor(clinicapi.ErrTransport, fiber.StatusBadGateway),
	}
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	mappers := ErrorMappers()

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
		// Param and query strings outlive the request in live consultations.
		Immutable: true,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			return serverutils.WriteError(ctx, err, mappers...)
		},
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(mappers...))

	// Routes
	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	// Before the consultation routes, which would read "ws" as a patient id.
	c.LiveHandler.RegisterRoutes(api)
	c.ConsultationController.RegisterRoutes(api)
	c.DiagnosticsController.RegisterRoutes(api)
}
