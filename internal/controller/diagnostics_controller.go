package controller

import (
	"time"

	"ai-consult-copilot/internal/dto"
	"ai-consult-copilot/internal/pkg/logger"
	"ai-consult-copilot/internal/pkg/serverutils"
	"ai-consult-copilot/internal/repository/memory"

	"github.com/gofiber/fiber/v2"
)

type IDiagnosticsController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
	Logs(ctx *fiber.Ctx) error
	LogDetail(ctx *fiber.Ctx) error
}

type diagnosticsController struct {
	logger    logger.ILogger
	registry  *memory.ConsultationRepository
	jwtSecret string
	startedAt time.Time
}

func NewDiagnosticsController(log logger.ILogger, registry *memory.ConsultationRepository, jwtSecret string) IDiagnosticsController {
	return &diagnosticsController{
		logger:    log,
		registry:  registry,
		jwtSecret: jwtSecret,
		startedAt: time.Now(),
	}
}

func (c *diagnosticsController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)

	h := r.Group("/diagnostics")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Get("logs", c.Logs)
	h.Get("logs/:id", c.LogDetail)
}

func (c *diagnosticsController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("OK", fiber.Map{
		"live_consultations": len(c.registry.List()),
		"uptime_seconds":     int(time.Since(c.startedAt).Seconds()),
	}))
}

// Logs exposes the recorded events, such as dropped uploads and failed
// safety checks, newest first.
func (c *diagnosticsController) Logs(ctx *fiber.Ctx) error {
	var query dto.LogsQuery
	if err := ctx.QueryParser(&query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query")
	}
	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}
	if query.Limit == 0 {
		query.Limit = 50
	}

	entries, err := c.logger.GetLogs(query.Level, query.Module, query.Limit, query.Offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get logs", entries))
}

func (c *diagnosticsController) LogDetail(ctx *fiber.Ctx) error {
	entry, err := c.logger.GetLogById(ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get log", entry))
}
