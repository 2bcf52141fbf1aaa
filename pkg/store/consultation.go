package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ai-consult-copilot/pkg/capture"
	"ai-consult-copilot/pkg/safety"
	"ai-consult-copilot/pkg/transcript"

	"github.com/google/uuid"
)

// Consultation is the in-memory state of one live consultation.
type Consultation struct {
	PatientID  string
	SessionID  uuid.UUID
	OperatorID string
	StartedAt  time.Time

	Recorder  *capture.Recorder
	Assembler *transcript.Assembler
	Scheduler *safety.Scheduler

	// Background tracks goroutines bound to this consultation; Stop waits
	// for them before the final save.
	Background sync.WaitGroup

	pending  sync.WaitGroup
	stopping atomic.Bool
	retired  atomic.Bool
	ended   chan struct{}
	dirty   chan struct{}

	mu        sync.RWMutex
	reference string
}

func NewConsultation(patientID, operatorID string, sessionID uuid.UUID, note *transcript.Note) *Consultation {
	return &Consultation{
		PatientID:  patientID,
		SessionID:  sessionID,
		OperatorID: operatorID,
		StartedAt:  time.Now(),
		Assembler:  transcript.NewAssembler(note),
		ended:      make(chan struct{}),
		dirty:      make(chan struct{}, 1),
	}
}

func (c *Consultation) Note() *transcript.Note {
	return c.Assembler.Note()
}

// Reference is the patient record text the safety checks run against.
func (c *Consultation) Reference() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reference
}

func (c *Consultation) SetReference(doc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reference = doc
}

// BeginStop claims the stop of this consultation. Only the first caller gets
// true; the consultation stays live until Retire.
func (c *Consultation) BeginStop() bool {
	return c.stopping.CompareAndSwap(false, true)
}

// SegmentQueued counts a captured segment whose transcription has not been
// applied yet. Each call is matched by SegmentSettled.
func (c *Consultation) SegmentQueued() {
	c.pending.Add(1)
}

func (c *Consultation) SegmentSettled() {
	c.pending.Done()
}

// Drain waits until every queued segment has settled, ctx is done or timeout
// elapses. It reports whether the queue drained.
func (c *Consultation) Drain(ctx context.Context, timeout time.Duration) bool {
	drained := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(drained)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-drained:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Retire marks the consultation as ended. Results that arrive for a retired
// consultation are ignored.
func (c *Consultation) Retire() bool {
	if !c.retired.CompareAndSwap(false, true) {
		return false
	}
	close(c.ended)
	return true
}

// Ended is closed by Retire.
func (c *Consultation) Ended() <-chan struct{} {
	return c.ended
}

// MarkDirty flags the staged note as changed. Pending flags coalesce.
func (c *Consultation) MarkDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *Consultation) Dirty() <-chan struct{} {
	return c.dirty
}

func (c *Consultation) Live() bool {
	return !c.retired.Load()
}

// SafetyRequest snapshots what a safety check needs right now.
func (c *Consultation) SafetyRequest() safety.Request {
	note, _ := c.Note().Snapshot()
	return safety.Request{
		PatientID:         c.PatientID,
		ReferenceDocument: c.Reference(),
		StagedNote:        note,
	}
}
