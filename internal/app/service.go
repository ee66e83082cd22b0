// Package app provides the core ingestion service that implements the
// dependencies required by the TCP receiver and the HTTP API.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/dosewatch/internal/adapters/repository"
	"github.com/okian/dosewatch/internal/domain/adherence"
	"github.com/okian/dosewatch/internal/domain/classify"
	"github.com/okian/dosewatch/internal/domain/model"
	"github.com/okian/dosewatch/internal/domain/session"
	"github.com/okian/dosewatch/pkg/logger"
	"github.com/okian/dosewatch/pkg/metrics"
)

// Outcome describes what a single reading produced. A baseline reading
// initializes the subject's weight cache and emits no event.
type Outcome struct {
	SubjectID model.SubjectID
	Baseline  bool
	Event     model.Event
}

// Service wires the classifier, the per-subject session tracker and the
// store into the per-reading pipeline.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	sessions   *session.Tracker
	classifier *classify.Classifier

	tareGrams    float64
	windowMargin time.Duration
	now          func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. Defaults to the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWindowMargin sets the dosing-window tolerance.
func WithWindowMargin(margin time.Duration) Option {
	return func(s *Service) {
		if margin > 0 {
			s.windowMargin = margin
		}
	}
}

// WithTare sets the scale tare offset subtracted from every raw reading.
func WithTare(grams float64) Option {
	return func(s *Service) {
		if grams >= 0 {
			s.tareGrams = grams
		}
	}
}

// WithClock overrides the receipt-time source. Tests use this to pin
// classification to a known wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:     session.NewTracker(),
		windowMargin: classify.DefaultWindowMargin,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start finalizes the wiring. Safe to call once; later calls are no-ops.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.classifier = classify.New(classify.WithWindowMargin(s.windowMargin))

	s.started = true
	s.logger.Info(ctx, "ingestion service started",
		logger.Duration("windowMargin", s.windowMargin),
		logger.Float64("tareGrams", s.tareGrams),
	)
	return nil
}

// Stop shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "ingestion service stopped")
}

// ProcessReading runs one raw mass reading through the resolve, load,
// classify, score, persist, cache-update pipeline. When pinned is non-nil
// the reading is attributed to that subject; otherwise it goes to the
// latest registered one. The per-subject session lock is held across the
// whole sequence so concurrent readings for one subject serialize.
func (s *Service) ProcessReading(ctx context.Context, raw float64, pinned *model.SubjectID) (Outcome, error) {
	grams := raw - s.tareGrams
	at := s.now()

	id, err := s.resolveSubject(ctx, pinned)
	if err != nil {
		return Outcome{}, err
	}

	subject, err := s.store.LoadSubject(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("reading for subject %d: %w", id, err)
	}

	if s.sessions.SubjectChanged(id) {
		s.logger.Info(ctx, "tracking new subject", logger.Int64("subjectID", int64(id)))
	}

	sess := s.sessions.Acquire(ctx, id)
	defer sess.Release()
	metrics.UpdateSessionCount(s.sessions.Size())

	prev, hasPrev := sess.PreviousWeight()
	result := s.classifier.Classify(classify.Input{
		Grams:          grams,
		PreviousWeight: prev,
		HasPrevious:    hasPrev,
		Subject:        subject,
		At:             at,
	})

	if result.Baseline {
		sess.SetPreviousWeight(grams)
		metrics.RecordBaselineReading()
		s.logger.Info(ctx, "baseline reading",
			logger.Int64("subjectID", int64(id)),
			logger.Float64("grams", grams),
		)
		return Outcome{SubjectID: id, Baseline: true}, nil
	}

	day := at.Format(model.DayFormat)
	total, bad, err := s.store.CountTodayEvents(ctx, id, day)
	if err != nil {
		return Outcome{}, fmt.Errorf("reading for subject %d: %w", id, err)
	}
	score := adherence.Score(total, bad, result.Kind)

	event := model.NewEvent(id, at, grams, result.Kind, score, result.Pills)
	if err := s.persist(ctx, event, result.GramsPerPill); err != nil {
		return Outcome{}, err
	}

	// The cache advances only after the event is durably stored, so a
	// dropped reading gets re-derived against the same previous weight.
	sess.SetPreviousWeight(grams)

	metrics.RecordEventClassified(string(event.Kind))
	metrics.UpdateAdherenceScore(int64(id), score)
	s.logger.Info(ctx, "dose event recorded",
		logger.Int64("subjectID", int64(id)),
		logger.String("kind", string(event.Kind)),
		logger.Int("pills", event.Pills),
		logger.Int("adherenceScore", score),
		logger.Float64("grams", grams),
	)

	return Outcome{SubjectID: id, Event: event}, nil
}

func (s *Service) resolveSubject(ctx context.Context, pinned *model.SubjectID) (model.SubjectID, error) {
	if pinned != nil {
		return *pinned, nil
	}
	id, err := s.store.LatestSubjectID(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve subject: %w", err)
	}
	return id, nil
}

func (s *Service) persist(ctx context.Context, e model.Event, gramsPerPill float64) error {
	start := time.Now()
	if err := s.store.InsertEvent(ctx, e); err != nil {
		metrics.RecordStoreError(repository.OpInsertEvent)
		return fmt.Errorf("reading for subject %d: %w", e.SubjectID, err)
	}
	metrics.RecordStoreLatency(repository.OpInsertEvent, float64(time.Since(start).Milliseconds()))

	// The reference pill weight converges toward the derived grams-per-pill,
	// matching how the scale recalibrates over time.
	if err := s.store.UpdateSubject(ctx, e.SubjectID, gramsPerPill, e.AdherenceScore); err != nil {
		metrics.RecordStoreError(repository.OpUpdateSubject)
		return fmt.Errorf("reading for subject %d: %w", e.SubjectID, err)
	}
	return nil
}

// CreateSubject registers a new subject.
func (s *Service) CreateSubject(ctx context.Context, subject model.Subject) (model.SubjectID, error) {
	return s.store.CreateSubject(ctx, subject)
}

// GetSubject returns one subject snapshot.
func (s *Service) GetSubject(ctx context.Context, id model.SubjectID) (model.Subject, error) {
	return s.store.LoadSubject(ctx, id)
}

// ListSubjects returns all registered subjects.
func (s *Service) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	return s.store.ListSubjects(ctx)
}

// ListEvents returns a subject's events for one day.
func (s *Service) ListEvents(ctx context.Context, id model.SubjectID, day string) ([]model.Event, error) {
	return s.store.ListEventsByDay(ctx, id, day)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":             s.started,
		"trackedSubjects":     s.sessions.Size(),
		"windowMarginMinutes": int(s.windowMargin / time.Minute),
		"tareGrams":           s.tareGrams,
	}

	if s.started {
		metrics.UpdateSessionCount(s.sessions.Size())
	}

	return stats
}
