package triage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/warden/internal/enrich"
	"github.com/linnemanlabs/warden/internal/kev"
	"github.com/linnemanlabs/warden/internal/search"
)

// mockBackend returns a preconfigured response and records the request.
type mockBackend struct {
	mu      sync.Mutex
	raw     string
	err     error
	lastReq *ClassifyRequest
}

func (m *mockBackend) Classify(_ context.Context, req *ClassifyRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.raw, nil
}

// stubFeed implements kev.Source with a fixed registry.
type stubFeed struct {
	reg kev.Registry
}

func (s *stubFeed) Fetch(_ context.Context) (kev.Registry, error) {
	return s.reg, nil
}

// stubSearch implements search.Source with fixed results.
type stubSearch struct {
	results []search.Result
	err     error
}

func (s *stubSearch) Search(_ context.Context, _ string, _ int) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func newTestEngine(backend Backend, reg kev.Registry, hooks EngineHooks) *Engine {
	feed := kev.NewCache(&stubFeed{reg: reg}, kev.DefaultTTL, log.Nop())
	briefs := enrich.New(&stubSearch{}, 3, 0, log.Nop())
	return NewEngine(backend, feed, briefs, "deepseek-chat", log.Nop(), hooks)
}

const kevResponse = `[{"component":"X","cve":"CVE-2099-00001","level":"P0","tag":"CISA KEV","reason":"r","suggestion":"s","action_code":"a"}]`

func TestRun_EndToEndKEVHit(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{raw: kevResponse}
	engine := newTestEngine(backend, kev.Registry{"CVE-2099-00001": {}}, EngineHooks{})

	rr := engine.Run(context.Background(), "t-1", &RunInput{
		RawText:      "CVE-2099-00001 test",
		EnableSearch: false,
	}, nil)

	if rr.Status != StatusComplete {
		t.Fatalf("status = %q, want %q", rr.Status, StatusComplete)
	}
	if len(rr.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(rr.Findings))
	}
	if rr.Findings[0].Level != LevelP0 {
		t.Errorf("level = %q, want P0", rr.Findings[0].Level)
	}
	if len(rr.Identifiers) != 1 || rr.Identifiers[0] != "CVE-2099-00001" {
		t.Errorf("identifiers = %v", rr.Identifiers)
	}
	if len(rr.KEVHits) != 1 || rr.KEVHits[0] != "CVE-2099-00001" {
		t.Errorf("kev hits = %v", rr.KEVHits)
	}
	if rr.Duration <= 0 {
		t.Error("expected positive duration")
	}

	// The brief sent to the classifier must state the KEV hit and that
	// search was disabled.
	if !strings.Contains(backend.lastReq.Prompt, enrich.KEVHitMarker) {
		t.Errorf("brief missing KEV hit marker:\n%s", backend.lastReq.Prompt)
	}
	if !strings.Contains(backend.lastReq.Prompt, enrich.SearchDisabled) {
		t.Errorf("brief missing search-disabled placeholder:\n%s", backend.lastReq.Prompt)
	}
	if backend.lastReq.Temperature != ClassifyTemperature {
		t.Errorf("temperature = %v, want %v", backend.lastReq.Temperature, ClassifyTemperature)
	}
	if !strings.Contains(backend.lastReq.System, "MUST be rated P0") {
		t.Errorf("policy missing mandatory-P0 rule:\n%s", backend.lastReq.System)
	}
	if backend.lastReq.Model != "deepseek-chat" {
		t.Errorf("model = %q, want default", backend.lastReq.Model)
	}
}

func TestRun_ClassifierErrorYieldsEmptyResult(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{err: errors.New("connection refused")}
	engine := newTestEngine(backend, kev.Registry{}, EngineHooks{})

	rr := engine.Run(context.Background(), "t-1", &RunInput{RawText: "CVE-2024-0001"}, nil)

	if rr.Status != StatusFailed {
		t.Errorf("status = %q, want %q", rr.Status, StatusFailed)
	}
	if !strings.Contains(rr.Error, "connection refused") {
		t.Errorf("error = %q, want it to contain the cause", rr.Error)
	}
	if len(rr.Findings) != 0 {
		t.Errorf("findings = %v, want empty", rr.Findings)
	}
}

func TestRun_MalformedResponseRetainsRaw(t *testing.T) {
	t.Parallel()

	const prose = "Sure! Here's the analysis: nothing structured."
	backend := &mockBackend{raw: prose}
	engine := newTestEngine(backend, kev.Registry{}, EngineHooks{})

	rr := engine.Run(context.Background(), "t-1", &RunInput{RawText: "CVE-2024-0001"}, nil)

	if rr.Status != StatusFailed {
		t.Errorf("status = %q, want %q", rr.Status, StatusFailed)
	}
	if rr.RawResponse != prose {
		t.Errorf("raw response = %q, want preserved for diagnosis", rr.RawResponse)
	}
	if len(rr.Findings) != 0 {
		t.Errorf("findings = %v, want empty", rr.Findings)
	}
	if rr.Error == "" {
		t.Error("expected operator-facing error")
	}
}

func TestRun_ForcesP0OnKEVHit(t *testing.T) {
	t.Parallel()

	// Classifier violates the mandatory-P0 rule; the corrective pass
	// must override it.
	backend := &mockBackend{raw: `[{"component":"X","cve":"CVE-2099-00001","level":"P2","tag":"t","reason":"r","suggestion":"s","action_code":"a"}]`}
	engine := newTestEngine(backend, kev.Registry{"CVE-2099-00001": {}}, EngineHooks{})

	rr := engine.Run(context.Background(), "t-1", &RunInput{RawText: "CVE-2099-00001"}, nil)

	if len(rr.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(rr.Findings))
	}
	if rr.Findings[0].Level != LevelP0 {
		t.Errorf("level = %q, want forced P0", rr.Findings[0].Level)
	}
}

func TestRun_ProgressSequence(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{raw: kevResponse}
	engine := newTestEngine(backend, kev.Registry{}, EngineHooks{})

	type step struct {
		pct   int
		label string
	}
	var steps []step
	onProgress := func(pct int, label string) {
		steps = append(steps, step{pct, label})
	}

	engine.Run(context.Background(), "t-1", &RunInput{RawText: "CVE-2099-00001 and CVE-2099-00002"}, onProgress)

	if len(steps) < 4 {
		t.Fatalf("progress steps = %d, want at least 4", len(steps))
	}
	if steps[0].pct != 0 {
		t.Errorf("first step = %d, want 0", steps[0].pct)
	}
	if steps[1].pct != 0 || !strings.Contains(steps[1].label, "CVE-2099-00001") {
		t.Errorf("step[1] = %+v, want identifier progress at 0%%", steps[1])
	}
	if steps[2].pct != 40 || !strings.Contains(steps[2].label, "CVE-2099-00002") {
		t.Errorf("step[2] = %+v, want second identifier at 40%%", steps[2])
	}
	if steps[len(steps)-2].pct != 90 {
		t.Errorf("penultimate step = %+v, want 90", steps[len(steps)-2])
	}
	last := steps[len(steps)-1]
	if last.pct != 100 || last.label != "" {
		t.Errorf("last step = %+v, want cleared at 100", last)
	}
}

func TestRun_NoIdentifiersStillClassifies(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{raw: `[{"component":"internal tool","cve":"","level":"P3","tag":"t","reason":"r","suggestion":"s","action_code":"a"}]`}
	engine := newTestEngine(backend, kev.Registry{}, EngineHooks{})

	rr := engine.Run(context.Background(), "t-1", &RunInput{RawText: "vague report with no ids"}, nil)

	if rr.Status != StatusComplete {
		t.Fatalf("status = %q, want %q", rr.Status, StatusComplete)
	}
	if len(rr.Identifiers) != 0 {
		t.Errorf("identifiers = %v, want none", rr.Identifiers)
	}
	if !strings.Contains(backend.lastReq.Prompt, "No CVE identifiers detected") {
		t.Errorf("brief missing text-only fallback:\n%s", backend.lastReq.Prompt)
	}
}

func TestRun_ModelOverride(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{raw: kevResponse}
	engine := newTestEngine(backend, kev.Registry{}, EngineHooks{})

	rr := engine.Run(context.Background(), "t-1", &RunInput{RawText: "x", Model: "gpt-4o"}, nil)

	if rr.Model != "gpt-4o" {
		t.Errorf("result model = %q, want override", rr.Model)
	}
	if backend.lastReq.Model != "gpt-4o" {
		t.Errorf("request model = %q, want override", backend.lastReq.Model)
	}
}

func TestRun_HooksCalled(t *testing.T) {
	t.Parallel()

	var (
		mu          sync.Mutex
		llmCalls    int
		llmOK       bool
		extractName string
		complete    *CompleteEvent
	)
	hooks := EngineHooks{
		OnLLMCall: func(_ float64, ok bool) {
			mu.Lock()
			defer mu.Unlock()
			llmCalls++
			llmOK = ok
		},
		OnExtract: func(strategy string, _ bool) {
			mu.Lock()
			defer mu.Unlock()
			extractName = strategy
		},
		OnComplete: func(e *CompleteEvent) {
			mu.Lock()
			defer mu.Unlock()
			complete = e
		},
	}

	backend := &mockBackend{raw: kevResponse}
	engine := newTestEngine(backend, kev.Registry{"CVE-2099-00001": {}}, hooks)

	engine.Run(context.Background(), "t-1", &RunInput{RawText: "CVE-2099-00001"}, nil)

	mu.Lock()
	defer mu.Unlock()
	if llmCalls != 1 || !llmOK {
		t.Errorf("llm hook calls = %d ok=%v, want 1 successful call", llmCalls, llmOK)
	}
	if extractName != "direct" {
		t.Errorf("extract strategy = %q, want direct", extractName)
	}
	if complete == nil {
		t.Fatal("expected OnComplete to fire")
	}
	if complete.Status != StatusComplete || complete.Identifiers != 1 || complete.KEVHits != 1 || complete.Findings != 1 {
		t.Errorf("complete event = %+v", complete)
	}
}

func TestRun_CreatesClassifySpan(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	// tracer is package-level and bound at init; rebind for this test.
	prevTracer := tracer
	tracer = tp.Tracer("test")
	defer func() { tracer = prevTracer }()

	backend := &mockBackend{raw: kevResponse}
	engine := newTestEngine(backend, kev.Registry{}, EngineHooks{})
	engine.Run(context.Background(), "t-span", &RunInput{RawText: "CVE-2099-00001"}, nil)

	spans := exporter.GetSpans()
	var found bool
	for _, s := range spans {
		if s.Name != "llm.classify" {
			continue
		}
		found = true
		attrs := make(map[string]any)
		for _, a := range s.Attributes {
			attrs[string(a.Key)] = a.Value.AsInterface()
		}
		if v := attrs["warden.triage.id"]; v != "t-span" {
			t.Errorf("warden.triage.id = %v, want t-span", v)
		}
		if v := attrs["gen_ai.request.model"]; v != "deepseek-chat" {
			t.Errorf("gen_ai.request.model = %v", v)
		}
	}
	if !found {
		t.Error("expected llm.classify span")
	}
}
