package triage

import (
	"context"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// SubmitResult is the outcome of submitting text for triage.
type SubmitResult struct {
	ID      string
	Skipped bool
	Reason  string
}

// Service is the business boundary for triage operations: it owns run
// lifecycle, async dispatch, and progress persistence.
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Submit accepts raw vulnerability intelligence for triage and kicks off
// an async run. The returned ID can be polled for progress and results.
func (s *Service) Submit(ctx context.Context, in *RunInput) (*SubmitResult, error) {
	if strings.TrimSpace(in.RawText) == "" {
		s.countSubmit("empty")
		return &SubmitResult{Skipped: true, Reason: "empty input"}, nil
	}

	id := ulid.Make().String()
	result := &Result{
		ID:        id,
		Status:    StatusPending,
		Input:     in.RawText,
		Model:     in.Model,
		Findings:  []Finding{},
		CreatedAt: time.Now(),
	}

	if err := s.store.Put(ctx, result); err != nil {
		s.countSubmit("store_error")
		return nil, err
	}
	s.countSubmit("accepted")

	// run async - pass only the ID to avoid sharing the Result pointer.
	go s.runTriage(context.WithoutCancel(ctx), id, in)

	return &SubmitResult{ID: id}, nil
}

// Get retrieves a triage result by ID.
func (s *Service) Get(ctx context.Context, id string) (*Result, bool, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) runTriage(ctx context.Context, id string, in *RunInput) {
	L := s.logger.With("triage_id", id)

	result, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		L.Error(ctx, err, "failed to fetch result for triage")
		return
	}

	result.Status = StatusInProgress
	if err := s.store.Put(ctx, result); err != nil {
		L.Error(ctx, err, "failed to update status to in_progress")
		return
	}

	// persist progress so pollers see it; best effort only
	onProgress := func(percent int, label string) {
		result.Progress = percent
		result.ProgressMsg = label
		if err := s.store.Put(ctx, result); err != nil {
			L.Warn(ctx, "failed to persist progress", "error", err)
		}
	}

	rr := s.engine.Run(ctx, id, in, onProgress)

	result.Status = rr.Status
	result.Model = rr.Model
	result.Identifiers = rr.Identifiers
	result.KEVHits = rr.KEVHits
	result.Findings = rr.Findings
	result.Error = rr.Error
	result.RawResponse = rr.RawResponse
	result.CompletedAt = rr.CompletedAt
	result.Duration = rr.Duration
	if result.Findings == nil {
		result.Findings = []Finding{}
	}
	result.CountLevels()

	if err := s.store.Put(ctx, result); err != nil {
		L.Error(ctx, err, "failed to persist triage result")
	}

	L.Info(ctx, "triage finished",
		"status", rr.Status,
		"duration", rr.Duration,
		"findings", len(rr.Findings),
		"p0", result.P0Count,
		"p1", result.P1Count,
	)

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, result); err != nil {
			L.Warn(ctx, "notifier send failed", "error", err)
		}
	}
}

func (s *Service) countSubmit(outcome string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(outcome).Inc()
	}
}
