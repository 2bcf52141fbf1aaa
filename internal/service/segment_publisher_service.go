package service

import (
	"strconv"
	"time"

	"ai-consult-copilot/pkg/capture"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// SegmentTopic carries finalized audio segments from the recorders to the
// uploader.
const SegmentTopic = "consultation.segments"

const (
	metaPatientID  = "patient_id"
	metaSessionID  = "session_id"
	metaSequence   = "sequence"
	metaMimeType   = "mime_type"
	metaCapturedAt = "captured_at"
)

type ISegmentPublisherService interface {
	Publish(patientID string, sessionID uuid.UUID, seg capture.Segment) error
}

type segmentPublisherService struct {
	topicName string
	publisher message.Publisher
}

func NewSegmentPublisherService(topicName string, publisher message.Publisher) ISegmentPublisherService {
	return &segmentPublisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

// Publish hands the segment to the bus. The payload is the encoded audio;
// routing data travels as metadata.
func (p *segmentPublisherService) Publish(patientID string, sessionID uuid.UUID, seg capture.Segment) error {
	msg := message.NewMessage(seg.ID.String(), seg.Data)
	msg.Metadata.Set(metaPatientID, patientID)
	msg.Metadata.Set(metaSessionID, sessionID.String())
	msg.Metadata.Set(metaSequence, strconv.Itoa(seg.Sequence))
	msg.Metadata.Set(metaMimeType, seg.MimeType)
	msg.Metadata.Set(metaCapturedAt, strconv.FormatInt(seg.CapturedAt.UnixMilli(), 10))

	return p.publisher.Publish(p.topicName, msg)
}

// segmentFilename names the upload after its capture time, falling back to
// now when the metadata is missing.
func segmentFilename(capturedAtMillis, mimeType string) string {
	ms, err := strconv.ParseInt(capturedAtMillis, 10, 64)
	if err != nil {
		ms = time.Now().UnixMilli()
	}
	return "chunk_" + strconv.FormatInt(ms, 10) + extensionFor(mimeType)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".wav"
	}
}
