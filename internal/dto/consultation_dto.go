package dto

import (
	"ai-consult-copilot/pkg/capture"
	"ai-consult-copilot/pkg/safety"
)

type EditStagingRequest struct {
	Content string `json:"content"`
	// BaseRevision is the revision the editor loaded. Appends made after it
	// are kept on top of the edited text. Zero replaces unconditionally.
	BaseRevision int64 `json:"base_revision" validate:"gte=0"`
}

type AcceptSuggestionRequest struct {
	Text string `json:"text" validate:"required"`
}

type ChatRequest struct {
	Question string `json:"question" validate:"required"`
}

type ChatResponse struct {
	PatientID string `json:"patient_id"`
	Question  string `json:"question"`
	Response  string `json:"response"`
}

type StagingResponse struct {
	PatientID string `json:"patient_id"`
	Content   string `json:"content"`
	Revision  int64  `json:"revision"`
	Live      bool   `json:"live"`
}

type ConsultationStatusResponse struct {
	PatientID        string           `json:"patient_id"`
	Live             bool             `json:"live"`
	SessionID        string           `json:"session_id,omitempty"`
	OperatorID       string           `json:"operator_id,omitempty"`
	Capture          *capture.Session `json:"capture,omitempty"`
	Transcript       string           `json:"transcript"`
	SpeakerTurns     string           `json:"speaker_turns"`
	Staging          StagingResponse  `json:"staging"`
	Analysis         *safety.Analysis `json:"analysis"`
	AnalysisInFlight bool             `json:"analysis_in_flight"`
}

// TranscriptUpdate is pushed to live screens after each transcribed segment.
type TranscriptUpdate struct {
	Transcript   string `json:"transcript"`
	SpeakerTurns string `json:"speaker_turns"`
	Segments     int    `json:"segments"`
}

type StopConsultationResponse struct {
	PatientID      string          `json:"patient_id"`
	SessionID      string          `json:"session_id"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	Segments       int             `json:"segments"`
	Staging        StagingResponse `json:"staging"`
}

type AnalysisResponse struct {
	PatientID string           `json:"patient_id"`
	Outcome   string           `json:"outcome"`
	Analysis  *safety.Analysis `json:"analysis"`
}

type CommitResponse struct {
	PatientID string          `json:"patient_id"`
	Committed int             `json:"committed_chars"`
	Staging   StagingResponse `json:"staging"`
}

type ReferenceResponse struct {
	PatientID string `json:"patient_id"`
	Chars     int    `json:"chars"`
}

type LogsQuery struct {
	Level  string `query:"level"`
	Module string `query:"module"`
	Limit  int    `query:"limit" validate:"gte=0,lte=500"`
	Offset int    `query:"offset" validate:"gte=0"`
}
