package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"ai-consult-copilot/internal/dto"
	"ai-consult-copilot/internal/pkg/logger"
	"ai-consult-copilot/internal/repository/memory"
	"ai-consult-copilot/pkg/capture"
	"ai-consult-copilot/pkg/events"
	"ai-consult-copilot/pkg/safety"
	"ai-consult-copilot/pkg/store"
	"ai-consult-copilot/pkg/transcript"

	"github.com/google/uuid"
)

var (
	ErrConsultationActive   = errors.New("a consultation is already active for this patient")
	ErrConsultationNotFound = errors.New("no active consultation for this patient")
	ErrEmptyStaging         = errors.New("staged note is empty")
)

// Message types pushed to the operator screens of a patient.
const (
	MessageSession    = "session"
	MessageTranscript = "transcript"
	MessageStaging    = "staging"
	MessageAnalysis   = "analysis"
)

const (
	eventPublishTimeout = 5 * time.Second
	defaultDrainTimeout = 10 * time.Second
)

// StagingStore reads and writes the remote draft of a patient's note.
type StagingStore interface {
	LoadStaging(ctx context.Context, patientID string) (string, error)
	SaveStaging(ctx context.Context, patientID, content string) error
	ClearStaging(ctx context.Context, patientID string) error
}

// RecordStore is the patient's permanent record.
type RecordStore interface {
	LoadRecord(ctx context.Context, patientID string) (string, error)
	AppendToRecord(ctx context.Context, patientID, content string) error
}

// Copilot answers free-form questions about a patient.
type Copilot interface {
	Chat(ctx context.Context, patientID, question, reference string) (string, error)
}

// ClinicClient is everything a consultation needs from the clinic API
// besides transcription.
type ClinicClient interface {
	safety.Checker
	StagingStore
	RecordStore
	Copilot
}

// StagingCache mirrors the latest draft so a remote outage at start does not
// blank it.
type StagingCache interface {
	Save(ctx context.Context, patientID, content string) error
	Load(ctx context.Context, patientID string) (string, bool, error)
	Delete(ctx context.Context, patientID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Notifier pushes updates to the screens watching a patient.
type Notifier interface {
	Publish(patientID, msgType string, data interface{})
}

// RecorderFactory builds an idle recorder for a new consultation.
type RecorderFactory func() *capture.Recorder

type IConsultationService interface {
	Start(ctx context.Context, patientID, operatorID string) (*dto.ConsultationStatusResponse, error)
	Stop(ctx context.Context, patientID string) (*dto.StopConsultationResponse, error)
	Status(ctx context.Context, patientID string) (*dto.ConsultationStatusResponse, error)
	GetStaging(ctx context.Context, patientID string) (*dto.StagingResponse, error)
	EditStaging(ctx context.Context, patientID string, req *dto.EditStagingRequest) (*dto.StagingResponse, error)
	AcceptSuggestion(ctx context.Context, patientID string, req *dto.AcceptSuggestionRequest) (*dto.StagingResponse, error)
	Analyze(ctx context.Context, patientID string) (*dto.AnalysisResponse, error)
	Commit(ctx context.Context, patientID string) (*dto.CommitResponse, error)
	RefreshReference(ctx context.Context, patientID string) (*dto.ReferenceResponse, error)
	Chat(ctx context.Context, patientID string, req *dto.ChatRequest) (*dto.ChatResponse, error)
	StopAll(ctx context.Context)
	TranscriptSink
}

type ConsultationOptions struct {
	Safety        safety.Config
	SpeakerLabels transcript.SpeakerLabels
	// DrainTimeout bounds how long Stop waits for the last segments to be
	// transcribed.
	DrainTimeout time.Duration
}

type consultationService struct {
	registry    *memory.ConsultationRepository
	clinic      ClinicClient
	cache       StagingCache
	events      EventPublisher
	notifier    Notifier
	segments    ISegmentPublisherService
	newRecorder RecorderFactory
	opts        ConsultationOptions
	commitLocks sync.Map
	logger      logger.ILogger
}

// NewConsultationService wires the session orchestration. cache, publisher
// and notifier are optional.
func NewConsultationService(
	registry *memory.ConsultationRepository,
	clinic ClinicClient,
	cache StagingCache,
	publisher EventPublisher,
	notifier Notifier,
	segments ISegmentPublisherService,
	newRecorder RecorderFactory,
	opts ConsultationOptions,
	log logger.ILogger,
) IConsultationService {
	if opts.Safety.MinChars <= 0 {
		opts.Safety.MinChars = safety.DefaultConfig().MinChars
	}
	defaults := transcript.DefaultSpeakerLabels()
	if opts.SpeakerLabels.Labels == nil {
		opts.SpeakerLabels.Labels = defaults.Labels
	}
	if opts.SpeakerLabels.Default == "" {
		opts.SpeakerLabels.Default = defaults.Default
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &consultationService{
		registry:    registry,
		clinic:      clinic,
		cache:       cache,
		events:      publisher,
		notifier:    notifier,
		segments:    segments,
		newRecorder: newRecorder,
		opts:        opts,
		logger:      log,
	}
}

func (s *consultationService) Start(ctx context.Context, patientID, operatorID string) (*dto.ConsultationStatusResponse, error) {
	if _, ok := s.registry.Get(patientID); ok {
		return nil, ErrConsultationActive
	}

	staged, err := s.loadStaging(ctx, patientID)
	if err != nil {
		s.logger.Warn("ConsultationService", "Staged note unavailable, starting empty", map[string]interface{}{
			"patient_id": patientID,
			"error":      err.Error(),
		})
	}
	reference, err := s.clinic.LoadRecord(ctx, patientID)
	if err != nil {
		s.logger.Warn("ConsultationService", "Reference document unavailable", map[string]interface{}{
			"patient_id": patientID,
			"error":      err.Error(),
		})
		reference = ""
	}

	c := store.NewConsultation(patientID, operatorID, uuid.New(), transcript.NewNote(staged))
	c.SetReference(reference)
	c.Recorder = s.newRecorder()
	c.Recorder.OnInterrupted = func(err error) {
		go s.onInterrupted(c, err)
	}
	c.Scheduler = safety.NewScheduler(s.clinic, c.SafetyRequest, func(a safety.Analysis) {
		s.onAnalysis(c, a)
	}, s.opts.Safety, s.logger)

	if err := s.registry.Add(c); err != nil {
		return nil, ErrConsultationActive
	}

	// Capture and the scheduler outlive the request that started them.
	runCtx := context.WithoutCancel(ctx)
	if err := c.Recorder.Start(runCtx, func(seg capture.Segment) { s.publishSegment(c, seg) }); err != nil {
		c.Retire()
		s.registry.Remove(c)
		s.logger.Error("ConsultationService", "Failed to start capture", map[string]interface{}{
			"patient_id": patientID,
			"error":      err.Error(),
		})
		return nil, err
	}
	c.Scheduler.Start(runCtx)

	c.Background.Add(1)
	go s.syncStaging(c)

	s.logger.Info("ConsultationService", "Consultation started", map[string]interface{}{
		"patient_id":  patientID,
		"session_id":  c.SessionID.String(),
		"operator_id": operatorID,
	})
	go s.publishEvent(events.NewConsultationStarted(patientID, c.SessionID.String(), operatorID))

	status := s.liveStatus(c)
	s.notify(patientID, MessageSession, status)
	return status, nil
}

func (s *consultationService) Stop(ctx context.Context, patientID string) (*dto.StopConsultationResponse, error) {
	c, ok := s.registry.Get(patientID)
	if !ok {
		return nil, ErrConsultationNotFound
	}
	return s.stopConsultation(ctx, c)
}

func (s *consultationService) stopConsultation(ctx context.Context, c *store.Consultation) (*dto.StopConsultationResponse, error) {
	if !c.BeginStop() {
		return nil, ErrConsultationNotFound
	}

	c.Scheduler.Stop()
	if err := c.Recorder.Stop(); err != nil {
		s.logger.Warn("ConsultationService", "Recorder did not stop cleanly", map[string]interface{}{
			"patient_id": c.PatientID,
			"error":      err.Error(),
		})
	}
	// The segment flushed by Stop is transcribed before the consultation
	// stops accepting results.
	if !c.Drain(ctx, s.opts.DrainTimeout) {
		s.logger.Warn("ConsultationService", "Final segments not transcribed before stop", map[string]interface{}{
			"patient_id": c.PatientID,
			"session_id": c.SessionID.String(),
		})
	}
	c.Retire()
	c.Background.Wait()

	session := c.Recorder.Session()
	content, rev := c.Note().Snapshot()
	if err := s.saveStaging(ctx, c.PatientID, content); err != nil {
		s.logger.Warn("ConsultationService", "Failed to persist staged note on stop", map[string]interface{}{
			"patient_id": c.PatientID,
			"error":      err.Error(),
		})
	}
	s.registry.Remove(c)

	res := &dto.StopConsultationResponse{
		PatientID:      c.PatientID,
		SessionID:      c.SessionID.String(),
		ElapsedSeconds: session.ElapsedSeconds,
		Segments:       session.Segments,
		Staging:        dto.StagingResponse{PatientID: c.PatientID, Content: content, Revision: rev},
	}

	s.logger.Info("ConsultationService", "Consultation stopped", map[string]interface{}{
		"patient_id":      c.PatientID,
		"session_id":      c.SessionID.String(),
		"elapsed_seconds": session.ElapsedSeconds,
		"segments":        session.Segments,
	})
	go s.publishEvent(events.NewConsultationStopped(c.PatientID, c.SessionID.String(), session.ElapsedSeconds, session.Segments))

	s.notify(c.PatientID, MessageAnalysis, nil)
	s.notify(c.PatientID, MessageSession, &dto.ConsultationStatusResponse{
		PatientID: c.PatientID,
		Live:      false,
		Staging:   res.Staging,
	})
	return res, nil
}

func (s *consultationService) StopAll(ctx context.Context) {
	for _, c := range s.registry.List() {
		if _, err := s.stopConsultation(ctx, c); err != nil && !errors.Is(err, ErrConsultationNotFound) {
			s.logger.Error("ConsultationService", "Failed to stop consultation", map[string]interface{}{
				"patient_id": c.PatientID,
				"error":      err.Error(),
			})
		}
	}
}

func (s *consultationService) Status(ctx context.Context, patientID string) (*dto.ConsultationStatusResponse, error) {
	if c, ok := s.live(patientID); ok {
		return s.liveStatus(c), nil
	}
	staging, err := s.GetStaging(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &dto.ConsultationStatusResponse{PatientID: patientID, Staging: *staging}, nil
}

func (s *consultationService) GetStaging(ctx context.Context, patientID string) (*dto.StagingResponse, error) {
	if c, ok := s.live(patientID); ok {
		content, rev := c.Note().Snapshot()
		return &dto.StagingResponse{PatientID: patientID, Content: content, Revision: rev, Live: true}, nil
	}
	content, err := s.loadStaging(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &dto.StagingResponse{PatientID: patientID, Content: content}, nil
}

func (s *consultationService) EditStaging(ctx context.Context, patientID string, req *dto.EditStagingRequest) (*dto.StagingResponse, error) {
	if c, ok := s.live(patientID); ok {
		content, rev := c.Note().Edit(req.Content, req.BaseRevision)
		return s.stagingChanged(c, content, rev), nil
	}

	if err := s.saveStaging(ctx, patientID, req.Content); err != nil {
		return nil, err
	}
	return &dto.StagingResponse{PatientID: patientID, Content: req.Content}, nil
}

func (s *consultationService) AcceptSuggestion(ctx context.Context, patientID string, req *dto.AcceptSuggestionRequest) (*dto.StagingResponse, error) {
	if c, ok := s.live(patientID); ok {
		content, rev := c.Note().AppendBlock(req.Text)
		return s.stagingChanged(c, content, rev), nil
	}

	current, err := s.loadStaging(ctx, patientID)
	if err != nil {
		return nil, err
	}
	content, _ := transcript.NewNote(current).AppendBlock(req.Text)
	if err := s.saveStaging(ctx, patientID, content); err != nil {
		return nil, err
	}
	return &dto.StagingResponse{PatientID: patientID, Content: content}, nil
}

func (s *consultationService) Analyze(ctx context.Context, patientID string) (*dto.AnalysisResponse, error) {
	if c, ok := s.live(patientID); ok {
		analysis, outcome, err := c.Scheduler.RunNow(ctx)
		res := &dto.AnalysisResponse{PatientID: patientID, Outcome: outcome.String()}
		switch outcome {
		case safety.OutcomeIssued:
			res.Analysis = &analysis
		case safety.OutcomeSkippedEmpty, safety.OutcomeSkippedInFlight:
			if latest, ok := c.Scheduler.Latest(); ok {
				res.Analysis = &latest
			}
		case safety.OutcomeStopped:
			return nil, ErrConsultationNotFound
		default:
			return nil, err
		}
		return res, nil
	}

	staged, err := s.loadStaging(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !safety.Analyzable(staged, s.opts.Safety.MinChars) {
		return &dto.AnalysisResponse{PatientID: patientID, Outcome: safety.OutcomeSkippedEmpty.String()}, nil
	}
	reference, err := s.clinic.LoadRecord(ctx, patientID)
	if err != nil {
		return nil, err
	}
	analysis, err := s.clinic.Check(ctx, safety.Request{
		PatientID:         patientID,
		ReferenceDocument: reference,
		StagedNote:        staged,
	})
	if err != nil {
		return nil, err
	}
	return &dto.AnalysisResponse{PatientID: patientID, Outcome: safety.OutcomeIssued.String(), Analysis: analysis}, nil
}

func (s *consultationService) Commit(ctx context.Context, patientID string) (*dto.CommitResponse, error) {
	lock, _ := s.commitLocks.LoadOrStore(patientID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	var (
		res     *dto.CommitResponse
		content string
	)

	if c, ok := s.live(patientID); ok {
		content, _ = c.Note().Snapshot()
		if strings.TrimSpace(content) == "" {
			return nil, ErrEmptyStaging
		}
		if err := s.clinic.AppendToRecord(ctx, patientID, content); err != nil {
			return nil, err
		}
		remaining, newRev, released := c.Note().Release(content)
		if !released {
			s.logger.Warn("ConsultationService", "Staged note rewritten during commit, kept in full", map[string]interface{}{
				"patient_id": patientID,
			})
		}
		staging := s.stagingChanged(c, remaining, newRev)
		res = &dto.CommitResponse{PatientID: patientID, Committed: utf8.RuneCountInString(content), Staging: *staging}

		if _, err := s.refresh(ctx, c); err != nil {
			s.logger.Warn("ConsultationService", "Failed to reload reference after commit", map[string]interface{}{
				"patient_id": patientID,
				"error":      err.Error(),
			})
		}
	} else {
		var err error
		content, err = s.loadStaging(ctx, patientID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(content) == "" {
			return nil, ErrEmptyStaging
		}
		if err := s.clinic.AppendToRecord(ctx, patientID, content); err != nil {
			return nil, err
		}
		if err := s.clearStaging(ctx, patientID); err != nil {
			s.logger.Warn("ConsultationService", "Failed to clear staged note after commit", map[string]interface{}{
				"patient_id": patientID,
				"error":      err.Error(),
			})
		}
		res = &dto.CommitResponse{
			PatientID: patientID,
			Committed: utf8.RuneCountInString(content),
			Staging:   dto.StagingResponse{PatientID: patientID},
		}
	}

	s.logger.Info("ConsultationService", "Staged note committed to record", map[string]interface{}{
		"patient_id": patientID,
		"chars":      res.Committed,
	})
	go s.publishEvent(events.NewNoteCommitted(patientID, res.Committed))
	return res, nil
}

func (s *consultationService) RefreshReference(ctx context.Context, patientID string) (*dto.ReferenceResponse, error) {
	c, ok := s.live(patientID)
	if !ok {
		return nil, ErrConsultationNotFound
	}
	return s.refresh(ctx, c)
}

// Chat forwards a question to the copilot together with the reference
// document of the patient.
func (s *consultationService) Chat(ctx context.Context, patientID string, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	var reference string
	if c, ok := s.live(patientID); ok {
		reference = c.Reference()
	} else {
		doc, err := s.clinic.LoadRecord(ctx, patientID)
		if err != nil {
			s.logger.Warn("ConsultationService", "Reference document unavailable for chat", map[string]interface{}{
				"patient_id": patientID,
				"error":      err.Error(),
			})
		}
		reference = doc
	}

	answer, err := s.clinic.Chat(ctx, patientID, req.Question, reference)
	if err != nil {
		return nil, err
	}
	return &dto.ChatResponse{PatientID: patientID, Question: req.Question, Response: answer}, nil
}

func (s *consultationService) refresh(ctx context.Context, c *store.Consultation) (*dto.ReferenceResponse, error) {
	doc, err := s.clinic.LoadRecord(ctx, c.PatientID)
	if err != nil {
		return nil, err
	}
	c.SetReference(doc)
	return &dto.ReferenceResponse{PatientID: c.PatientID, Chars: utf8.RuneCountInString(doc)}, nil
}

// Accepts reports whether results for the given session are still wanted.
func (s *consultationService) Accepts(patientID string, sessionID uuid.UUID) bool {
	c, ok := s.registry.Get(patientID)
	return ok && c.SessionID == sessionID && c.Live()
}

func (s *consultationService) ApplyTranscription(patientID string, sessionID uuid.UUID, result *transcript.TranscriptionResult) bool {
	c, ok := s.registry.Get(patientID)
	if !ok || c.SessionID != sessionID || !c.Live() {
		return false
	}
	if result == nil {
		return true
	}

	u := c.Assembler.Apply(*result)
	if !u.Changed() {
		return true
	}
	if u.TextAppended {
		s.stagingChanged(c, u.Note, u.NoteRevision)
	}
	s.notify(patientID, MessageTranscript, &dto.TranscriptUpdate{
		Transcript:   u.Transcript,
		SpeakerTurns: c.Assembler.Turns(s.opts.SpeakerLabels),
		Segments:     len(c.Assembler.Segments()),
	})
	return true
}

func (s *consultationService) Settle(patientID string, sessionID uuid.UUID) {
	if c, ok := s.registry.Get(patientID); ok && c.SessionID == sessionID {
		c.SegmentSettled()
	}
}

func (s *consultationService) live(patientID string) (*store.Consultation, bool) {
	c, ok := s.registry.Get(patientID)
	if !ok || !c.Live() {
		return nil, false
	}
	return c, true
}

func (s *consultationService) liveStatus(c *store.Consultation) *dto.ConsultationStatusResponse {
	content, rev := c.Note().Snapshot()
	session := c.Recorder.Session()
	status := &dto.ConsultationStatusResponse{
		PatientID:        c.PatientID,
		Live:             c.Live(),
		SessionID:        c.SessionID.String(),
		OperatorID:       c.OperatorID,
		Capture:          &session,
		Transcript:       c.Assembler.Transcript(),
		SpeakerTurns:     c.Assembler.Turns(s.opts.SpeakerLabels),
		Staging:          dto.StagingResponse{PatientID: c.PatientID, Content: content, Revision: rev, Live: c.Live()},
		AnalysisInFlight: c.Scheduler.InFlight(),
	}
	if analysis, ok := c.Scheduler.Latest(); ok {
		status.Analysis = &analysis
	}
	return status
}

// stagingChanged schedules persistence and pushes the new draft.
func (s *consultationService) stagingChanged(c *store.Consultation, content string, rev int64) *dto.StagingResponse {
	c.MarkDirty()
	res := &dto.StagingResponse{PatientID: c.PatientID, Content: content, Revision: rev, Live: true}
	s.notify(c.PatientID, MessageStaging, res)
	return res
}

// syncStaging saves the draft whenever it changes, coalescing bursts, until
// the consultation ends. Stop performs the final save.
func (s *consultationService) syncStaging(c *store.Consultation) {
	defer c.Background.Done()
	for {
		select {
		case <-c.Ended():
			return
		case <-c.Dirty():
			content, _ := c.Note().Snapshot()
			if err := s.saveStaging(context.Background(), c.PatientID, content); err != nil {
				s.logger.Warn("ConsultationService", "Failed to persist staged note", map[string]interface{}{
					"patient_id": c.PatientID,
					"error":      err.Error(),
				})
			}
		}
	}
}

func (s *consultationService) loadStaging(ctx context.Context, patientID string) (string, error) {
	content, err := s.clinic.LoadStaging(ctx, patientID)
	if err == nil {
		s.cacheSave(ctx, patientID, content)
		return content, nil
	}
	if s.cache != nil {
		cached, found, cacheErr := s.cache.Load(ctx, patientID)
		if cacheErr == nil && found {
			s.logger.Warn("ConsultationService", "Staging endpoint unreachable, using cached draft", map[string]interface{}{
				"patient_id": patientID,
				"error":      err.Error(),
			})
			return cached, nil
		}
	}
	return "", fmt.Errorf("load staged note: %w", err)
}

// saveStaging writes the draft to the cache first so a remote failure still
// leaves a recoverable copy.
func (s *consultationService) saveStaging(ctx context.Context, patientID, content string) error {
	s.cacheSave(ctx, patientID, content)
	if err := s.clinic.SaveStaging(ctx, patientID, content); err != nil {
		return fmt.Errorf("save staged note: %w", err)
	}
	return nil
}

func (s *consultationService) clearStaging(ctx context.Context, patientID string) error {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, patientID); err != nil {
			s.logger.Warn("ConsultationService", "Failed to drop cached draft", map[string]interface{}{
				"patient_id": patientID,
				"error":      err.Error(),
			})
		}
	}
	return s.clinic.ClearStaging(ctx, patientID)
}

func (s *consultationService) cacheSave(ctx context.Context, patientID, content string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, patientID, content); err != nil {
		s.logger.Warn("ConsultationService", "Failed to mirror staged note", map[string]interface{}{
			"patient_id": patientID,
			"error":      err.Error(),
		})
	}
}

func (s *consultationService) publishSegment(c *store.Consultation, seg capture.Segment) {
	if s.segments == nil {
		return
	}
	c.SegmentQueued()
	if err := s.segments.Publish(c.PatientID, c.SessionID, seg); err != nil {
		c.SegmentSettled()
		s.logger.Error("ConsultationService", "Failed to queue segment for upload", map[string]interface{}{
			"patient_id": c.PatientID,
			"sequence":   seg.Sequence,
			"error":      err.Error(),
		})
	}
}

// onAnalysis runs while the scheduler holds its publish lock, so a
// consultation being stopped cannot receive it afterwards.
func (s *consultationService) onAnalysis(c *store.Consultation, a safety.Analysis) {
	if !c.Live() {
		return
	}
	s.notify(c.PatientID, MessageAnalysis, &a)

	red := a.Red()
	if len(red) == 0 {
		return
	}
	titles := make([]string, 0, len(red))
	for _, alert := range red {
		titles = append(titles, alert.Title)
	}
	s.logger.Warn("ConsultationService", "Red safety alert raised", map[string]interface{}{
		"patient_id": c.PatientID,
		"titles":     titles,
	})
	go s.publishEvent(events.NewSafetyAlertRaised(c.PatientID, titles))
}

func (s *consultationService) onInterrupted(c *store.Consultation, cause error) {
	s.logger.Error("ConsultationService", "Capture interrupted, ending consultation", map[string]interface{}{
		"patient_id": c.PatientID,
		"session_id": c.SessionID.String(),
		"error":      cause.Error(),
	})
	if _, err := s.stopConsultation(context.Background(), c); err != nil && !errors.Is(err, ErrConsultationNotFound) {
		s.logger.Error("ConsultationService", "Failed to end interrupted consultation", map[string]interface{}{
			"patient_id": c.PatientID,
			"error":      err.Error(),
		})
	}
}

func (s *consultationService) notify(patientID, msgType string, data interface{}) {
	if s.notifier != nil {
		s.notifier.Publish(patientID, msgType, data)
	}
}

func (s *consultationService) publishEvent(event events.Event) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("ConsultationService", "Failed to publish domain event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}
