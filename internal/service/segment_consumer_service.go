package service

import (
	"context"
	"sync"

	"ai-consult-copilot/internal/pkg/logger"
	"ai-consult-copilot/pkg/transcript"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const defaultUploadConcurrency = 4

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, mimeType string) (*transcript.TranscriptionResult, error)
}

// TranscriptSink receives transcriptions for the consultation that produced
// the audio.
type TranscriptSink interface {
	Accepts(patientID string, sessionID uuid.UUID) bool
	// ApplyTranscription returns false when the consultation has ended and the
	// result was discarded.
	ApplyTranscription(patientID string, sessionID uuid.UUID, result *transcript.TranscriptionResult) bool
	// Settle is called once per routed segment after it was skipped, dropped
	// or applied.
	Settle(patientID string, sessionID uuid.UUID)
}

type ISegmentConsumerService interface {
	Consume(ctx context.Context) error
	// Wait blocks until every started upload has returned.
	Wait()
}

type segmentConsumerService struct {
	subscriber  message.Subscriber
	topicName   string
	transcriber Transcriber
	sink        TranscriptSink
	slots       chan struct{}
	uploads     sync.WaitGroup
	logger      logger.ILogger
}

func NewSegmentConsumerService(
	subscriber message.Subscriber,
	topicName string,
	transcriber Transcriber,
	sink TranscriptSink,
	concurrency int,
	log logger.ILogger,
) ISegmentConsumerService {
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &segmentConsumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		transcriber: transcriber,
		sink:        sink,
		slots:       make(chan struct{}, concurrency),
		logger:      log,
	}
}

func (cs *segmentConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *segmentConsumerService) Wait() {
	cs.uploads.Wait()
}

// processMessage acks right away: uploads are fire-and-forget and a lost
// segment leaves a gap instead of blocking the ones behind it.
func (cs *segmentConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	patientID := msg.Metadata.Get(metaPatientID)
	sessionID, err := uuid.Parse(msg.Metadata.Get(metaSessionID))
	msg.Ack()
	if err != nil || patientID == "" {
		cs.logger.Error("SegmentConsumer", "Dropping segment without routing metadata", map[string]interface{}{
			"message_id": msg.UUID,
		})
		return
	}

	if !cs.sink.Accepts(patientID, sessionID) {
		cs.sink.Settle(patientID, sessionID)
		cs.logger.Debug("SegmentConsumer", "Consultation ended, segment skipped", map[string]interface{}{
			"patient_id": patientID,
			"sequence":   msg.Metadata.Get(metaSequence),
		})
		return
	}

	select {
	case cs.slots <- struct{}{}:
	case <-ctx.Done():
		cs.sink.Settle(patientID, sessionID)
		return
	}

	cs.uploads.Add(1)
	go func() {
		defer cs.uploads.Done()
		defer func() { <-cs.slots }()
		defer cs.sink.Settle(patientID, sessionID)
		cs.upload(ctx, patientID, sessionID, msg)
	}()
}

func (cs *segmentConsumerService) upload(ctx context.Context, patientID string, sessionID uuid.UUID, msg *message.Message) {
	mimeType := msg.Metadata.Get(metaMimeType)
	filename := segmentFilename(msg.Metadata.Get(metaCapturedAt), mimeType)

	result, err := cs.transcriber.Transcribe(ctx, msg.Payload, filename, mimeType)
	if err != nil {
		cs.logger.Warn("SegmentConsumer", "Segment upload failed, segment dropped", map[string]interface{}{
			"patient_id": patientID,
			"sequence":   msg.Metadata.Get(metaSequence),
			"bytes":      len(msg.Payload),
			"error":      err.Error(),
		})
		return
	}

	if !cs.sink.ApplyTranscription(patientID, sessionID, result) {
		cs.logger.Debug("SegmentConsumer", "Consultation ended, transcription discarded", map[string]interface{}{
			"patient_id": patientID,
			"sequence":   msg.Metadata.Get(metaSequence),
		})
	}
}
