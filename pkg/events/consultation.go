package events

import "time"

const (
	ConsultationStarted = "CONSULTATION_STARTED"
	ConsultationStopped = "CONSULTATION_STOPPED"
	SafetyAlertRaised   = "SAFETY_ALERT_RAISED"
	NoteCommitted       = "NOTE_COMMITTED"
	// RecordUpdated is published by other writers of the patient record.
	RecordUpdated = "RECORD_UPDATED"
)

func NewConsultationStarted(patientID, sessionID, operatorID string) BaseEvent {
	return BaseEvent{
		Type: ConsultationStarted,
		Data: map[string]interface{}{
			"patient_id":  patientID,
			"session_id":  sessionID,
			"operator_id": operatorID,
		},
		OccurredAt: time.Now(),
	}
}

func NewConsultationStopped(patientID, sessionID string, elapsedSeconds, segments int) BaseEvent {
	return BaseEvent{
		Type: ConsultationStopped,
		Data: map[string]interface{}{
			"patient_id":      patientID,
			"session_id":      sessionID,
			"elapsed_seconds": elapsedSeconds,
			"segments":        segments,
		},
		OccurredAt: time.Now(),
	}
}

func NewSafetyAlertRaised(patientID string, titles []string) BaseEvent {
	return BaseEvent{
		Type: SafetyAlertRaised,
		Data: map[string]interface{}{
			"patient_id": patientID,
			"titles":     titles,
		},
		OccurredAt: time.Now(),
	}
}

func NewNoteCommitted(patientID string, chars int) BaseEvent {
	return BaseEvent{
		Type: NoteCommitted,
		Data: map[string]interface{}{
			"patient_id": patientID,
			"chars":      chars,
		},
		OccurredAt: time.Now(),
	}
}
