package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"ai-consult-copilot/internal/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrCaptureUnavailable means the platform denied or lacks an audio input.
	// Starting again once the operator fixes permissions is the recovery path.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrAlreadyCapturing   = errors.New("recorder is already capturing")
)

const (
	readChunkSize       = 32 * 1024
	defaultProbeTimeout = 2 * time.Second
)

// Segment is one finalized, independently decodable unit of captured audio.
type Segment struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	Sequence   int
	Data       []byte
	MimeType   string
	Offset     time.Duration
	Duration   time.Duration
	CapturedAt time.Time
}

// Session is a snapshot of the recorder's current capture.
type Session struct {
	ID             uuid.UUID `json:"id"`
	Active         bool      `json:"active"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Segments       int       `json:"segments"`
	StartedAt      time.Time `json:"started_at"`
}

type recorderState int

const (
	stateIdle recorderState = iota
	stateCapturing
)

// Recorder keeps one microphone stream open and cuts it into fixed-length
// segments, emitting each one as soon as it is finalized.
type Recorder struct {
	source  Source
	clock   SegmentClock
	encoder Encoder
	logger  logger.ILogger

	// ProbeTimeout bounds how long Start waits for the first audio bytes.
	ProbeTimeout time.Duration
	// OnInterrupted is called when the stream ends without Stop being called.
	OnInterrupted func(err error)

	mu       sync.Mutex
	state    recorderState
	stream   io.ReadCloser
	done     chan struct{}
	session  Session
	captured atomic.Int64
	emitted  atomic.Int64
	stopping atomic.Bool
	aborted  atomic.Bool
	lastErr  error
}

func NewRecorder(source Source, clock SegmentClock, encoder Encoder, log logger.ILogger) *Recorder {
	if encoder == nil {
		encoder = WAVEncoder{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Recorder{
		source:       source,
		clock:        clock,
		encoder:      encoder,
		logger:       log,
		ProbeTimeout: defaultProbeTimeout,
	}
}

// Start acquires the input and begins segmenting. onSegment runs on the
// capture goroutine and must hand the segment off without blocking on I/O.
func (r *Recorder) Start(ctx context.Context, onSegment func(Segment)) error {
	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return ErrAlreadyCapturing
	}

	stream, err := r.source.Open(ctx)
	if err != nil {
		r.mu.Unlock()
		if errors.Is(err, ErrCaptureUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	r.state = stateCapturing
	r.stream = stream
	r.done = make(chan struct{})
	r.session = Session{ID: uuid.New(), Active: true, StartedAt: time.Now()}
	r.captured.Store(0)
	r.emitted.Store(0)
	r.stopping.Store(false)
	r.aborted.Store(false)
	r.lastErr = nil
	done := r.done
	sessionID := r.session.ID
	r.mu.Unlock()

	ready := make(chan error, 1)
	go r.run(stream, sessionID, onSegment, ready, done)

	probe := r.ProbeTimeout
	if probe <= 0 {
		probe = defaultProbeTimeout
	}
	timer := time.NewTimer(probe)
	defer timer.Stop()

	var probeErr error
	select {
	case err := <-ready:
		if err == nil {
			r.logger.Info("Recorder", "Capture started", map[string]interface{}{"session_id": sessionID})
			return nil
		}
		probeErr = err
	case <-timer.C:
		probeErr = fmt.Errorf("no audio received within %s", probe)
	case <-ctx.Done():
		probeErr = ctx.Err()
	}

	r.aborted.Store(true)
	r.stopping.Store(true)
	_ = stream.Close()
	<-done
	return fmt.Errorf("%w: %v", ErrCaptureUnavailable, probeErr)
}

// Stop finalizes the in-progress segment, releases the input and returns once
// no further segment can be emitted. Calling it on an idle recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state == stateIdle {
		r.mu.Unlock()
		return nil
	}
	stream, done := r.stream, r.done
	first := r.stopping.CompareAndSwap(false, true)
	r.mu.Unlock()

	if first {
		_ = stream.Close()
	}
	<-done

	r.logger.Info("Recorder", "Capture stopped", map[string]interface{}{
		"session_id": r.Session().ID,
		"segments":   r.emitted.Load(),
	})
	return nil
}

func (r *Recorder) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateCapturing
}

// Err returns the cause of the last unexpected stream end, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Recorder) Session() Session {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	s.ElapsedSeconds = int(r.clock.Elapsed(r.captured.Load()) / time.Second)
	s.Segments = int(r.emitted.Load())
	return s
}

func (r *Recorder) run(stream io.ReadCloser, sessionID uuid.UUID, onSegment func(Segment), ready chan<- error, done chan struct{}) {
	defer close(done)

	budget := r.clock.SegmentBytes()
	pending := make([]byte, 0, budget)
	buf := make([]byte, readChunkSize)
	var (
		started  bool
		seq      int
		segStart int64
	)

	flush := func() {
		frame := r.clock.Format.FrameSize()
		pending = pending[:len(pending)-len(pending)%frame]
		if len(pending) == 0 || r.aborted.Load() {
			return
		}
		if r.emit(sessionID, seq, pending, segStart, onSegment) {
			seq++
		}
		segStart += int64(len(pending))
		pending = pending[:0]
	}

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if !started {
				started = true
				ready <- nil
			}
			r.captured.Add(int64(n))
			chunk := buf[:n]
			for len(chunk) > 0 {
				take := min(budget-len(pending), len(chunk))
				pending = append(pending, chunk[:take]...)
				chunk = chunk[take:]
				if len(pending) == budget {
					flush()
				}
			}
		}
		if err == nil {
			continue
		}

		if !started {
			if errors.Is(err, io.EOF) {
				err = errors.New("input closed before any audio arrived")
			}
			ready <- err
			r.finish(nil)
			return
		}

		flush()
		if r.stopping.Load() {
			r.finish(nil)
			return
		}

		if errors.Is(err, io.EOF) {
			err = errors.New("input stream ended")
		}
		r.logger.Error("Recorder", "Capture interrupted", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		_ = stream.Close()
		r.finish(err)
		if r.OnInterrupted != nil {
			r.OnInterrupted(err)
		}
		return
	}
}

func (r *Recorder) emit(sessionID uuid.UUID, seq int, pcm []byte, start int64, onSegment func(Segment)) bool {
	data, err := r.encoder.Encode(pcm, r.clock.Format)
	if err != nil {
		// The audio is gone either way; keep the timeline moving.
		r.logger.Error("Recorder", "Failed to finalize segment", map[string]interface{}{
			"session_id": sessionID,
			"sequence":   seq,
			"error":      err.Error(),
		})
		return false
	}

	offset := r.clock.Elapsed(start)
	seg := Segment{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Sequence:   seq,
		Data:       data,
		MimeType:   r.encoder.MimeType(),
		Offset:     offset,
		Duration:   r.clock.Elapsed(start+int64(len(pcm))) - offset,
		CapturedAt: time.Now(),
	}
	r.emitted.Add(1)
	if onSegment != nil {
		onSegment(seg)
	}
	return true
}

func (r *Recorder) finish(err error) {
	r.mu.Lock()
	r.state = stateIdle
	r.session.Active = false
	r.lastErr = err
	r.mu.Unlock()
}
