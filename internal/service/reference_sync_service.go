package service

import (
	"context"
	"errors"

	"ai-consult-copilot/internal/dto"
	"ai-consult-copilot/internal/pkg/logger"
	"ai-consult-copilot/pkg/events"
	pktNats "ai-consult-copilot/pkg/nats"
)

type EventSubscriber interface {
	Subscribe(ctx context.Context, durableName string, handler pktNats.EventHandler, eventTypes ...string) error
}

type ReferenceRefresher interface {
	RefreshReference(ctx context.Context, patientID string) (*dto.ReferenceResponse, error)
}

// ReferenceSyncService reloads the reference document of live consultations
// when the patient record changes, wherever the change was made.
type ReferenceSyncService struct {
	subscriber EventSubscriber
	refresher  ReferenceRefresher
	durable    string
	logger     logger.ILogger
}

func NewReferenceSyncService(sub EventSubscriber, refresher ReferenceRefresher, durableName string, log logger.ILogger) *ReferenceSyncService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ReferenceSyncService{
		subscriber: sub,
		refresher:  refresher,
		durable:    durableName,
		logger:     log,
	}
}

func (s *ReferenceSyncService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, s.durable, s.handleEvent, events.NoteCommitted, events.RecordUpdated); err != nil {
		s.logger.Error("ReferenceSync", "Failed to start reference subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("ReferenceSync", "Listening for record changes", map[string]interface{}{"durable": s.durable})
	return nil
}

func (s *ReferenceSyncService) handleEvent(ctx context.Context, event events.Event) error {
	patientID := events.PatientID(event)
	if patientID == "" {
		s.logger.Warn("ReferenceSync", "Event without patient id ignored", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	res, err := s.refresher.RefreshReference(ctx, patientID)
	switch {
	case errors.Is(err, ErrConsultationNotFound):
		return nil
	case err != nil:
		s.logger.Warn("ReferenceSync", "Failed to refresh reference document", map[string]interface{}{
			"patient_id": patientID,
			"error":      err.Error(),
		})
		return err
	}

	s.logger.Info("ReferenceSync", "Reference document refreshed", map[string]interface{}{
		"patient_id": patientID,
		"type":       event.EventType(),
		"chars":      res.Chars,
	})
	return nil
}
