package events

import "time"

// Event defines the contract for all domain events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CONSULTATION_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// PatientID returns the "patient_id" field of the payload, if any.
func PatientID(e Event) string {
	id, _ := e.Payload()["patient_id"].(string)
	return id
}
