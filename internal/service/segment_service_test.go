package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-consult-copilot/internal/dto"
	"ai-consult-copilot/pkg/capture"
	"ai-consult-copilot/pkg/events"
	"ai-consult-copilot/pkg/transcript"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	filename string
	mimeType string
	audio    []byte
}

type fakeTranscriber struct {
	mu      sync.Mutex
	uploads []upload
	fail    bool
	active  int
	peak    int
	delay   time.Duration
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename, mimeType string) (*transcript.TranscriptionResult, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, upload{filename, mimeType, audio})
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	if f.fail {
		return nil, errors.New("connection reset")
	}
	return &transcript.TranscriptionResult{Text: string(audio)}, nil
}

func (f *fakeTranscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type fakeSink struct {
	mu      sync.Mutex
	live    bool
	applied []string
	settled int
}

func (s *fakeSink) Accepts(patientID string, sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *fakeSink) ApplyTranscription(patientID string, sessionID uuid.UUID, result *transcript.TranscriptionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return false
	}
	s.applied = append(s.applied, result.Text)
	return true
}

func (s *fakeSink) Settle(patientID string, sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled++
}

func (s *fakeSink) settledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

func (s *fakeSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.applied...)
}

func newSegmentBus(t *testing.T, transcriber Transcriber, sink TranscriptSink, concurrency int) (ISegmentPublisherService, ISegmentConsumerService) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	t.Cleanup(func() { _ = pubSub.Close() })

	consumer := NewSegmentConsumerService(pubSub, SegmentTopic, transcriber, sink, concurrency, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Consume(ctx))

	return NewSegmentPublisherService(SegmentTopic, pubSub), consumer
}

func segmentAt(seq int, data string) capture.Segment {
	return capture.Segment{
		ID:         uuid.New(),
		Sequence:   seq,
		Data:       []byte(data),
		MimeType:   capture.MimeTypeWAV,
		CapturedAt: time.UnixMilli(1700000000000 + int64(seq)*3000),
	}
}

func TestSegmentBusUploadsAndApplies(t *testing.T) {
	transcriber := &fakeTranscriber{}
	sink := &fakeSink{live: true}
	publisher, consumer := newSegmentBus(t, transcriber, sink, 2)

	sessionID := uuid.New()
	require.NoError(t, publisher.Publish("p1", sessionID, segmentAt(0, "Bom dia")))

	require.Eventually(t, func() bool { return len(sink.texts()) == 1 }, time.Second, 5*time.Millisecond)
	consumer.Wait()

	assert.Equal(t, []string{"Bom dia"}, sink.texts())
	assert.Equal(t, 1, sink.settledCount())
	transcriber.mu.Lock()
	defer transcriber.mu.Unlock()
	assert.Equal(t, "chunk_1700000000000.wav", transcriber.uploads[0].filename)
	assert.Equal(t, "audio/wav", transcriber.uploads[0].mimeType)
}

func TestSegmentBusBoundsConcurrentUploads(t *testing.T) {
	transcriber := &fakeTranscriber{delay: 30 * time.Millisecond}
	sink := &fakeSink{live: true}
	publisher, consumer := newSegmentBus(t, transcriber, sink, 2)

	sessionID := uuid.New()
	for i := 0; i < 6; i++ {
		require.NoError(t, publisher.Publish("p1", sessionID, segmentAt(i, "x")))
	}

	require.Eventually(t, func() bool { return len(sink.texts()) == 6 }, 2*time.Second, 5*time.Millisecond)
	consumer.Wait()

	transcriber.mu.Lock()
	defer transcriber.mu.Unlock()
	assert.LessOrEqual(t, transcriber.peak, 2)
}

func TestSegmentBusDropsWork(t *testing.T) {
	t.Run("ended consultation skips the upload", func(t *testing.T) {
		transcriber := &fakeTranscriber{}
		sink := &fakeSink{live: false}
		publisher, _ := newSegmentBus(t, transcriber, sink, 1)

		require.NoError(t, publisher.Publish("p1", uuid.New(), segmentAt(0, "x")))
		require.Eventually(t, func() bool { return sink.settledCount() == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 0, transcriber.count())
	})

	t.Run("failed upload leaves a gap", func(t *testing.T) {
		transcriber := &fakeTranscriber{fail: true}
		sink := &fakeSink{live: true}
		publisher, consumer := newSegmentBus(t, transcriber, sink, 1)

		require.NoError(t, publisher.Publish("p1", uuid.New(), segmentAt(0, "x")))
		require.Eventually(t, func() bool { return transcriber.count() == 1 }, time.Second, 5*time.Millisecond)
		consumer.Wait()
		assert.Empty(t, sink.texts())
		assert.Equal(t, 1, sink.settledCount(), "a failed upload still settles")
	})
}

func TestSegmentFilename(t *testing.T) {
	assert.Equal(t, "chunk_42.wav", segmentFilename("42", "audio/wav"))
	assert.Equal(t, "chunk_42.webm", segmentFilename("42", "audio/webm"))
	assert.Regexp(t, `^chunk_\d+\.wav$`, segmentFilename("", ""))
}

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) RefreshReference(ctx context.Context, patientID string) (*dto.ReferenceResponse, error) {
	f.calls = append(f.calls, patientID)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ReferenceResponse{PatientID: patientID, Chars: 10}, nil
}

func TestReferenceSyncHandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes the live consultation", func(t *testing.T) {
		refresher := &fakeRefresher{}
		svc := NewReferenceSyncService(nil, refresher, "test", nil)
		require.NoError(t, svc.handleEvent(ctx, events.NewNoteCommitted("p1", 12)))
		assert.Equal(t, []string{"p1"}, refresher.calls)
	})

	t.Run("no live consultation is not an error", func(t *testing.T) {
		refresher := &fakeRefresher{err: ErrConsultationNotFound}
		svc := NewReferenceSyncService(nil, refresher, "test", nil)
		assert.NoError(t, svc.handleEvent(ctx, events.BaseEvent{
			Type: events.RecordUpdated,
			Data: map[string]interface{}{"patient_id": "p1"},
		}))
	})

	t.Run("remote failure is retried", func(t *testing.T) {
		refresher := &fakeRefresher{err: errors.New("timeout")}
		svc := NewReferenceSyncService(nil, refresher, "test", nil)
		assert.Error(t, svc.handleEvent(ctx, events.NewNoteCommitted("p1", 12)))
	})

	t.Run("events without patient are ignored", func(t *testing.T) {
		refresher := &fakeRefresher{}
		svc := NewReferenceSyncService(nil, refresher, "test", nil)
		assert.NoError(t, svc.handleEvent(ctx, events.BaseEvent{Type: events.RecordUpdated}))
		assert.Empty(t, refresher.calls)
	})
}
