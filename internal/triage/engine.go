package triage

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/warden/internal/cveid"
	"github.com/linnemanlabs/warden/internal/enrich"
	"github.com/linnemanlabs/warden/internal/kev"
)

var tracer = otel.Tracer("github.com/linnemanlabs/warden/internal/triage")

// enrichProgressCeiling is the share of the progress range spent on
// per-identifier enrichment; classification takes the rest.
const enrichProgressCeiling = 80

// ProgressFunc receives incremental progress for a run: a 0..100 percent
// and a short operator-facing label. It decouples orchestration from any
// particular presentation surface.
type ProgressFunc func(percent int, label string)

// RunInput is one triage request.
type RunInput struct {
	RawText      string
	Model        string
	EnableSearch bool
}

// RunResult is the outcome of a single engine run.
type RunResult struct {
	Status      Status
	Model       string
	Identifiers []string
	KEVHits     []string
	Findings    []Finding
	Error       string
	RawResponse string
	Duration    float64
	CompletedAt time.Time
}

// EngineHooks are optional callbacks for instrumentation.
type EngineHooks struct {
	OnLLMCall  func(duration float64, ok bool)
	OnExtract  func(strategy string, ok bool)
	OnComplete func(e *CompleteEvent)
}

// CompleteEvent summarizes a finished run for metrics.
type CompleteEvent struct {
	Status      Status
	Model       string
	Duration    float64
	Identifiers int
	KEVHits     int
	Findings    int
}

// Engine sequences one triage run end-to-end: identifier extraction,
// registry lookup, enrichment, classification, and result recovery.
// Upstream failures (feed, search) degrade into a less-informative brief;
// classifier and extraction failures are the only things that abort the
// run, and they abort to an empty finding list rather than an error.
type Engine struct {
	backend      Backend
	feed         *kev.Cache
	briefs       *enrich.Builder
	defaultModel string
	logger       log.Logger
	hooks        EngineHooks
}

// NewEngine creates a triage engine with the given dependencies.
func NewEngine(backend Backend, feed *kev.Cache, briefs *enrich.Builder, defaultModel string, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		backend:      backend,
		feed:         feed,
		briefs:       briefs,
		defaultModel: defaultModel,
		logger:       logger,
		hooks:        hooks,
	}
}

// Run executes one triage request. It never returns an error: every
// failure mode converges to a RunResult with an operator-facing Error.
func (e *Engine) Run(ctx context.Context, triageID string, in *RunInput, onProgress ProgressFunc) *RunResult {
	start := time.Now()
	progress := func(pct int, label string) {
		if onProgress != nil {
			onProgress(pct, label)
		}
	}

	model := in.Model
	if model == "" {
		model = e.defaultModel
	}

	L := e.logger.With("triage_id", triageID, "model", model)
	rr := &RunResult{Status: StatusComplete, Model: model}

	progress(0, "initializing analysis")

	rr.Identifiers = cveid.Extract(in.RawText)
	reg := e.feed.Registry(ctx)
	for _, id := range rr.Identifiers {
		if reg.Contains(id) {
			rr.KEVHits = append(rr.KEVHits, id)
		}
	}

	L.Info(ctx, "triage started",
		"identifiers", len(rr.Identifiers),
		"kev_hits", len(rr.KEVHits),
		"search_enabled", in.EnableSearch,
	)

	brief := e.briefs.Brief(ctx, in.RawText, rr.Identifiers, reg, in.EnableSearch,
		func(idx, total int, id string) {
			progress(idx*enrichProgressCeiling/total, "investigating "+id)
		})

	progress(90, "classifying with "+model)

	raw, err := e.classify(ctx, triageID, model, brief)
	if err != nil {
		L.Error(ctx, err, "classifier call failed")
		rr.Status = StatusFailed
		rr.Error = fmt.Sprintf("classifier call failed: %v", err)
		return e.finish(ctx, rr, start, progress)
	}

	findings, strategy, ok := ExtractFindings(raw)
	if e.hooks.OnExtract != nil {
		e.hooks.OnExtract(strategy, ok)
	}
	if !ok {
		L.Warn(ctx, "classifier response not recoverable as JSON", "response_bytes", len(raw))
		rr.Status = StatusFailed
		rr.Error = "classifier response was not recoverable as JSON; raw response retained"
		rr.RawResponse = raw
		return e.finish(ctx, rr, start, progress)
	}

	if forced := enforceKEVPolicy(findings, reg); forced > 0 {
		L.Warn(ctx, "classifier violated mandatory-P0 rule, corrected", "forced", forced)
	}
	rr.Findings = findings

	L.Info(ctx, "triage complete",
		"findings", len(findings),
		"extract_strategy", strategy,
	)
	return e.finish(ctx, rr, start, progress)
}

func (e *Engine) finish(_ context.Context, rr *RunResult, start time.Time, progress ProgressFunc) *RunResult {
	rr.CompletedAt = time.Now()
	rr.Duration = time.Since(start).Seconds()
	progress(100, "")

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Status:      rr.Status,
			Model:       rr.Model,
			Duration:    rr.Duration,
			Identifiers: len(rr.Identifiers),
			KEVHits:     len(rr.KEVHits),
			Findings:    len(rr.Findings),
		})
	}
	return rr
}

// classify invokes the backend under a span and surfaces its raw text.
func (e *Engine) classify(ctx context.Context, triageID, model, brief string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.classify")
	defer span.End()
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "llm.classify"),
		attribute.String("gen_ai.request.model", model),
		attribute.String("warden.triage.id", triageID),
		attribute.Int("warden.brief.bytes", len(brief)),
	)

	callStart := time.Now()
	raw, err := e.backend.Classify(ctx, &ClassifyRequest{
		Model:       model,
		System:      decisionPolicy,
		Prompt:      brief,
		Temperature: ClassifyTemperature,
		MaxTokens:   ResponseTokens,
	})
	dur := time.Since(callStart).Seconds()

	if e.hooks.OnLLMCall != nil {
		e.hooks.OnLLMCall(dur, err == nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classify failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("gen_ai.response.bytes", len(raw)))
	return raw, nil
}

// enforceKEVPolicy is a post-hoc corrective pass: any finding whose CVE is
// in the KEV registry is forced to P0 regardless of what the classifier
// returned. Returns the number of corrected findings.
func enforceKEVPolicy(findings []Finding, reg kev.Registry) int {
	forced := 0
	for i := range findings {
		if findings[i].CVE == "" || !reg.Contains(findings[i].CVE) {
			continue
		}
		if findings[i].Level != LevelP0 {
			findings[i].Level = LevelP0
			forced++
		}
	}
	return forced
}
