package handler

import (
	"encoding/json"

	"ai-consult-copilot/internal/pkg/logger"
	"ai-consult-copilot/internal/pkg/serverutils"
	"ai-consult-copilot/internal/service"
	internalWS "ai-consult-copilot/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
)

// LiveHandler streams consultation updates to operator screens.
type LiveHandler struct {
	consultations service.IConsultationService
	hub           *internalWS.Hub
	jwtSecret     string
	logger        logger.ILogger
}

func NewLiveHandler(consultations service.IConsultationService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *LiveHandler {
	return &LiveHandler{
		consultations: consultations,
		hub:           hub,
		jwtSecret:     jwtSecret,
		logger:        log,
	}
}

// RegisterRoutes must run before the consultation routes so "ws" is not
// taken for a patient id.
func (h *LiveHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/consultations/ws", serverutils.JwtMiddleware(h.jwtSecret), h.ServeWs)
}

// ServeWs upgrades the request and subscribes it to one patient. The first
// frame is the current consultation status.
func (h *LiveHandler) ServeWs(c *fiber.Ctx) error {
	patientID := utils.CopyString(c.Query("patient_id"))
	if patientID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "patient_id is required")
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	operatorID, _ := c.Locals("user_id").(string)

	var initial []byte
	status, err := h.consultations.Status(c.UserContext(), patientID)
	if err != nil {
		h.logger.Warn("LiveHandler", "No initial status for screen", map[string]interface{}{
			"patient_id": patientID,
			"error":      err.Error(),
		})
	} else {
		initial, _ = json.Marshal(internalWS.Message{Type: service.MessageSession, PatientID: patientID, Data: status})
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("LiveHandler", "Screen connected", map[string]interface{}{"patient_id": patientID, "operator_id": operatorID})
		internalWS.ServeWs(h.hub, conn, patientID, operatorID, initial)
		h.logger.Info("LiveHandler", "Screen disconnected", map[string]interface{}{"patient_id": patientID, "operator_id": operatorID})
	})(c)
}
