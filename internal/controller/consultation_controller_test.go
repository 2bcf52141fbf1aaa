package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-consult-copilot/internal/dto"
	"ai-consult-copilot/internal/pkg/serverutils"
	"ai-consult-copilot/internal/service"
	"ai-consult-copilot/pkg/capture"
	"ai-consult-copilot/pkg/transcript"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubConsultationService struct {
	startErr   error
	operatorID string
	edit       *dto.EditStagingRequest
	chat       *dto.ChatRequest
	// started keeps patient ids past the request, like the session registry.
	started []string
}

func (s *stubConsultationService) Start(ctx context.Context, patientID, operatorID string) (*dto.ConsultationStatusResponse, error) {
	s.operatorID = operatorID
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.started = append(s.started, patientID)
	return &dto.ConsultationStatusResponse{PatientID: patientID, Live: true}, nil
}

func (s *stubConsultationService) Stop(ctx context.Context, patientID string) (*dto.StopConsultationResponse, error) {
	return nil, service.ErrConsultationNotFound
}

func (s *stubConsultationService) Status(ctx context.Context, patientID string) (*dto.ConsultationStatusResponse, error) {
	return &dto.ConsultationStatusResponse{PatientID: patientID}, nil
}

func (s *stubConsultationService) GetStaging(ctx context.Context, patientID string) (*dto.StagingResponse, error) {
	return &dto.StagingResponse{PatientID: patientID, Content: "rascunho"}, nil
}

func (s *stubConsultationService) EditStaging(ctx context.Context, patientID string, req *dto.EditStagingRequest) (*dto.StagingResponse, error) {
	s.edit = req
	return &dto.StagingResponse{PatientID: patientID, Content: req.Content, Revision: req.BaseRevision + 1}, nil
}

func (s *stubConsultationService) AcceptSuggestion(ctx context.Context, patientID string, req *dto.AcceptSuggestionRequest) (*dto.StagingResponse, error) {
	return &dto.StagingResponse{PatientID: patientID, Content: req.Text}, nil
}

func (s *stubConsultationService) Analyze(ctx context.Context, patientID string) (*dto.AnalysisResponse, error) {
	return &dto.AnalysisResponse{PatientID: patientID, Outcome: "skipped_empty"}, nil
}

func (s *stubConsultationService) Commit(ctx context.Context, patientID string) (*dto.CommitResponse, error) {
	return nil, service.ErrEmptyStaging
}

func (s *stubConsultationService) RefreshReference(ctx context.Context, patientID string) (*dto.ReferenceResponse, error) {
	return &dto.ReferenceResponse{PatientID: patientID}, nil
}

func (s *stubConsultationService) Chat(ctx context.Context, patientID string, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	s.chat = req
	return &dto.ChatResponse{PatientID: patientID, Question: req.Question, Response: "Sem alergias registradas."}, nil
}

func (s *stubConsultationService) StopAll(ctx context.Context) {}

func (s *stubConsultationService) Settle(patientID string, sessionID uuid.UUID) {}

func (s *stubConsultationService) Accepts(patientID string, sessionID uuid.UUID) bool { return false }

func (s *stubConsultationService) ApplyTranscription(patientID string, sessionID uuid.UUID, result *transcript.TranscriptionResult) bool {
	return false
}

func newTestApp(svc service.IConsultationService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(
		serverutils.StatusFor(service.ErrConsultationActive, fiber.StatusConflict),
		serverutils.StatusFor(service.ErrConsultationNotFound, fiber.StatusNotFound),
		serverutils.StatusFor(service.ErrEmptyStaging, fiber.StatusUnprocessableEntity),
		serverutils.StatusFor(capture.ErrCaptureUnavailable, fiber.StatusServiceUnavailable),
	))
	NewConsultationController(svc, testSecret).RegisterRoutes(app.Group("/api"))
	return app
}

func signedToken(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doRequest(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestConsultationRoutes(t *testing.T) {
	svc := &stubConsultationService{}
	app := newTestApp(svc)
	token := signedToken(t, "dr-ana")

	t.Run("requires a token", func(t *testing.T) {
		status, _ := doRequest(t, app, http.MethodPost, "/api/consultations/p1/start", "", "")
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("start passes the operator", func(t *testing.T) {
		status, body := doRequest(t, app, http.MethodPost, "/api/consultations/p1/start", token, "")
		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "dr-ana", svc.operatorID)
	})

	t.Run("domain errors map to statuses", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
		}{
			{"already active", service.ErrConsultationActive, http.StatusConflict},
			{"no microphone", capture.ErrCaptureUnavailable, http.StatusServiceUnavailable},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc.startErr = tt.err
				defer func() { svc.startErr = nil }()
				status, body := doRequest(t, app, http.MethodPost, "/api/consultations/p1/start", token, "")
				assert.Equal(t, tt.status, status)
				assert.Equal(t, false, body["success"])
			})
		}

		status, _ := doRequest(t, app, http.MethodPost, "/api/consultations/p1/stop", token, "")
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = doRequest(t, app, http.MethodPost, "/api/consultations/p1/commit", token, "")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})

	t.Run("edit staging decodes the revision", func(t *testing.T) {
		status, body := doRequest(t, app, http.MethodPut, "/api/consultations/p1/staging", token, `{"content":"Nota revisada","base_revision":7}`)
		assert.Equal(t, http.StatusOK, status)
		require.NotNil(t, svc.edit)
		assert.Equal(t, int64(7), svc.edit.BaseRevision)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "Nota revisada", data["content"])
	})

	t.Run("accept suggestion validates text", func(t *testing.T) {
		status, body := doRequest(t, app, http.MethodPost, "/api/consultations/p1/suggestions/accept", token, `{"text":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.NotNil(t, body["errors"])

		status, _ = doRequest(t, app, http.MethodPost, "/api/consultations/p1/suggestions/accept", token, `{"text":"Solicitar ECG"}`)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("analyze reports the outcome", func(t *testing.T) {
		status, body := doRequest(t, app, http.MethodPost, "/api/consultations/p1/analyze", token, "")
		assert.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "skipped_empty", data["outcome"])
	})
}

func TestPatientIDOutlivesRequest(t *testing.T) {
	svc := &stubConsultationService{}
	app := newTestApp(svc)
	token := signedToken(t, "dr-ana")

	status, _ := doRequest(t, app, http.MethodPost, "/api/consultations/AAAA/start", token, "")
	require.Equal(t, http.StatusCreated, status)

	for i := 0; i < 5; i++ {
		status, _ = doRequest(t, app, http.MethodGet, "/api/consultations/ZZZZ/staging", token, "")
		require.Equal(t, http.StatusOK, status)
	}

	assert.Equal(t, []string{"AAAA"}, svc.started)
}

func TestChatRoute(t *testing.T) {
	svc := &stubConsultationService{}
	app := newTestApp(svc)
	token := signedToken(t, "dr-ana")

	status, body := doRequest(t, app, http.MethodPost, "/api/consultations/p1/chat", token, `{"question":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NotNil(t, body["errors"])

	status, body = doRequest(t, app, http.MethodPost, "/api/consultations/p1/chat", token, `{"question":"Alguma alergia?"}`)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, svc.chat)
	assert.Equal(t, "Alguma alergia?", svc.chat.Question)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Sem alergias registradas.", data["response"])
}
