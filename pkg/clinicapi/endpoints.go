package clinicapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"ai-consult-copilot/pkg/safety"
	"ai-consult-copilot/pkg/transcript"
)

type contentBody struct {
	PatientID string `json:"patient_id,omitempty"`
	Content   string `json:"content"`
}

type clinicalCheckRequest struct {
	PatientID         string `json:"patient_id"`
	Prontuario        string `json:"prontuario"`
	TranscriptPartial string `json:"transcript_partial"`
}

type chatRequest struct {
	PatientID  string `json:"patient_id"`
	Question   string `json:"question"`
	Prontuario string `json:"prontuario,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type clinicalCheckResponse struct {
	CriticalAlerts      []safety.Alert `json:"critical_alerts"`
	MissingQuestions    []string       `json:"missing_questions"`
	RecommendedConducts []string       `json:"recommended_conducts"`
}

// Transcribe uploads one finalized audio segment and returns its diarized
// transcription.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, mimeType string) (*transcript.TranscriptionResult, error) {
	const op = "transcribe"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcribe-legacy/live", &buf)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result transcript.TranscriptionResult
	if err := c.do(ctx, op, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Check implements safety.Checker against the live clinical check endpoint.
func (c *Client) Check(ctx context.Context, in safety.Request) (*safety.Analysis, error) {
	body := clinicalCheckRequest{
		PatientID:         in.PatientID,
		Prontuario:        safety.TailChars(in.ReferenceDocument, c.maxChars),
		TranscriptPartial: safety.TailChars(in.StagedNote, c.maxChars),
	}
	var resp clinicalCheckResponse
	if err := c.doJSON(ctx, "live_clinical_check", http.MethodPost, "/api/live-clinical-check", body, &resp); err != nil {
		return nil, err
	}
	return &safety.Analysis{
		Alerts:              resp.CriticalAlerts,
		MissingQuestions:    resp.MissingQuestions,
		RecommendedConducts: resp.RecommendedConducts,
	}, nil
}

// Chat asks the copilot a free-form question about the patient. reference,
// when set, is sent so the answer reflects the record as the operator sees it.
func (c *Client) Chat(ctx context.Context, patientID, question, reference string) (string, error) {
	body := chatRequest{
		PatientID:  patientID,
		Question:   question,
		Prontuario: safety.TailChars(reference, c.maxChars),
	}
	var resp chatResponse
	if err := c.doJSON(ctx, "copilot_chat", http.MethodPost, "/copilot/chat", body, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *Client) LoadStaging(ctx context.Context, patientID string) (string, error) {
	var resp contentBody
	if err := c.doJSON(ctx, "load_staging", http.MethodGet, c.patientPath(patientID, "/staging"), nil, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *Client) SaveStaging(ctx context.Context, patientID, content string) error {
	body := contentBody{PatientID: patientID, Content: content}
	return c.doJSON(ctx, "save_staging", http.MethodPost, c.patientPath(patientID, "/staging"), body, nil)
}

func (c *Client) ClearStaging(ctx context.Context, patientID string) error {
	return c.doJSON(ctx, "clear_staging", http.MethodDelete, c.patientPath(patientID, "/staging"), nil, nil)
}

// AppendToRecord appends text to the patient's permanent record. The remote
// clears its staging copy on success.
func (c *Client) AppendToRecord(ctx context.Context, patientID, content string) error {
	body := contentBody{PatientID: patientID, Content: content}
	return c.doJSON(ctx, "append_record", http.MethodPost, c.patientPath(patientID, "/prontuario/append"), body, nil)
}

// LoadRecord fetches the reference document the safety checks run against.
func (c *Client) LoadRecord(ctx context.Context, patientID string) (string, error) {
	var resp contentBody
	if err := c.doJSON(ctx, "load_record", http.MethodGet, c.patientPath(patientID, "/prontuario"), nil, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}
