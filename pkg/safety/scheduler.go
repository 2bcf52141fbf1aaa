package safety

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"ai-consult-copilot/internal/pkg/logger"
)

var (
	// ErrEmptyInputSkipped is not a failure: the note is too short to analyze.
	ErrEmptyInputSkipped = errors.New("staged note too short, check skipped")
	ErrInFlight          = errors.New("safety check already in flight")
	ErrStopped           = errors.New("safety scheduler stopped")
)

type Outcome int

const (
	OutcomeIssued Outcome = iota
	OutcomeSkippedEmpty
	OutcomeSkippedInFlight
	OutcomeFailed
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIssued:
		return "issued"
	case OutcomeSkippedEmpty:
		return "skipped_empty"
	case OutcomeSkippedInFlight:
		return "skipped_in_flight"
	case OutcomeFailed:
		return "failed"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Config struct {
	Interval time.Duration
	MinChars int
	Timeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		MinChars: 10,
		Timeout:  60 * time.Second,
	}
}

// Analyzable reports whether note, trimmed, has at least minChars characters.
func Analyzable(note string, minChars int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(note)) >= minChars
}

// Scheduler runs periodic safety checks for one session. At most one check is
// in flight; ticks that arrive meanwhile are dropped.
type Scheduler struct {
	checker  Checker
	snapshot func() Request
	publish  func(Analysis)
	cfg      Config
	logger   logger.ILogger

	inFlight atomic.Bool
	stopped  atomic.Bool

	// publishMu orders result delivery against Stop.
	publishMu sync.Mutex

	mu      sync.Mutex
	latest  *Analysis
	cancel  context.CancelFunc
	loop    chan struct{}
	started bool
}

func NewScheduler(checker Checker, snapshot func() Request, publish func(Analysis), cfg Config, log logger.ILogger) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = def.MinChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Scheduler{
		checker:  checker,
		snapshot: snapshot,
		publish:  publish,
		cfg:      cfg,
		logger:   log,
	}
}

// Start begins ticking every Interval until Stop or ctx is done. Calling it
// more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped.Load() {
		return
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loop = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				go s.Tick(loopCtx)
			}
		}
	}(s.loop)
}

// Tick makes one guarded attempt.
func (s *Scheduler) Tick(ctx context.Context) Outcome {
	_, outcome, err := s.attempt(ctx)
	switch outcome {
	case OutcomeSkippedInFlight:
		s.logger.Debug("SafetyScheduler", "Tick dropped, check in flight", nil)
	case OutcomeFailed:
		s.logger.Warn("SafetyScheduler", "Safety check failed", map[string]interface{}{"error": err.Error()})
	}
	return outcome
}

// RunNow runs a check immediately under the same single-flight guard.
func (s *Scheduler) RunNow(ctx context.Context) (Analysis, Outcome, error) {
	return s.attempt(ctx)
}

func (s *Scheduler) attempt(ctx context.Context) (Analysis, Outcome, error) {
	if s.stopped.Load() {
		return Analysis{}, OutcomeStopped, ErrStopped
	}

	req := s.snapshot()
	if !Analyzable(req.StagedNote, s.cfg.MinChars) {
		return Analysis{}, OutcomeSkippedEmpty, ErrEmptyInputSkipped
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return Analysis{}, OutcomeSkippedInFlight, ErrInFlight
	}
	defer s.inFlight.Store(false)

	// Stop must not abort a running call; its result is discarded instead.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	result, err := s.checker.Check(callCtx, req)
	if err != nil {
		return Analysis{}, OutcomeFailed, err
	}
	if result == nil {
		result = &Analysis{}
	}
	if result.UpdatedAt.IsZero() {
		result.UpdatedAt = time.Now()
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.stopped.Load() {
		return Analysis{}, OutcomeStopped, ErrStopped
	}
	latest := *result
	s.mu.Lock()
	s.latest = &latest
	s.mu.Unlock()

	if s.publish != nil {
		s.publish(latest)
	}
	return latest, OutcomeIssued, nil
}

func (s *Scheduler) Latest() (Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Analysis{}, false
	}
	return *s.latest, true
}

func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

// Stop cancels the timer and discards any result still in flight. Idempotent.
func (s *Scheduler) Stop() {
	s.publishMu.Lock()
	first := s.stopped.CompareAndSwap(false, true)
	s.publishMu.Unlock()
	if !first {
		return
	}

	s.mu.Lock()
	cancel, loop := s.cancel, s.loop
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-loop
	}
}
