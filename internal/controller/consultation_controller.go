package controller

import (
	"ai-consult-copilot/internal/dto"
	"ai-consult-copilot/internal/pkg/serverutils"
	"ai-consult-copilot/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

type IConsultationController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	GetStaging(ctx *fiber.Ctx) error
	EditStaging(ctx *fiber.Ctx) error
	AcceptSuggestion(ctx *fiber.Ctx) error
	Analyze(ctx *fiber.Ctx) error
	Commit(ctx *fiber.Ctx) error
	RefreshReference(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
}

type consultationController struct {
	consultationService service.IConsultationService
	jwtSecret           string
}

func NewConsultationController(consultationService service.IConsultationService, jwtSecret string) IConsultationController {
	return &consultationController{
		consultationService: consultationService,
		jwtSecret:           jwtSecret,
	}
}

func (c *consultationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/consultations")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post(":patientId/start", c.Start)
	h.Post(":patientId/stop", c.Stop)
	h.Get(":patientId", c.Status)
	h.Get(":patientId/staging", c.GetStaging)
	h.Put(":patientId/staging", c.EditStaging)
	h.Post(":patientId/suggestions/accept", c.AcceptSuggestion)
	h.Post(":patientId/analyze", c.Analyze)
	h.Post(":patientId/commit", c.Commit)
	h.Post(":patientId/reference/refresh", c.RefreshReference)
	h.Post(":patientId/chat", c.Chat)
}

// patientParam copies the id out of the request buffer, which fasthttp reuses
// once the handler returns. Live consultations keep it for their lifetime.
func patientParam(ctx *fiber.Ctx) (string, error) {
	patientID := ctx.Params("patientId")
	if patientID == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "patient id is required")
	}
	return utils.CopyString(patientID), nil
}

func (c *consultationController) Start(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}
	operatorID, _ := ctx.Locals("user_id").(string)

	res, err := c.consultationService.Start(ctx.UserContext(), patientID, operatorID)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Consultation started", res))
}

func (c *consultationController) Stop(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.consultationService.Stop(ctx.UserContext(), patientID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Consultation stopped", res))
}

func (c *consultationController) Status(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.consultationService.Status(ctx.UserContext(), patientID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get consultation", res))
}

func (c *consultationController) GetStaging(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.consultationService.GetStaging(ctx.UserContext(), patientID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get staged note", res))
}

func (c *consultationController) EditStaging(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	var req dto.EditStagingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.consultationService.EditStaging(ctx.UserContext(), patientID, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Staged note saved", res))
}

func (c *consultationController) AcceptSuggestion(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	var req dto.AcceptSuggestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.consultationService.AcceptSuggestion(ctx.UserContext(), patientID, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Suggestion added to staged note", res))
}

func (c *consultationController) Analyze(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.consultationService.Analyze(ctx.UserContext(), patientID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Safety check "+res.Outcome, res))
}

func (c *consultationController) Commit(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.consultationService.Commit(ctx.UserContext(), patientID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Staged note committed to record", res))
}

func (c *consultationController) RefreshReference(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.consultationService.RefreshReference(ctx.UserContext(), patientID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Reference document reloaded", res))
}

func (c *consultationController) Chat(ctx *fiber.Ctx) error {
	patientID, err := patientParam(ctx)
	if err != nil {
		return err
	}

	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.consultationService.Chat(ctx.UserContext(), patientID, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success ask copilot", res))
}
