// Package triageapi exposes the HTTP invocation surface for triage:
// submitting raw intelligence, polling progress and results, and
// downloading the rendered HTML report.
package triageapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/warden/internal/report"
	"github.com/linnemanlabs/warden/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Submit(ctx context.Context, in *triage.RunInput) (*triage.SubmitResult, error)
	Get(ctx context.Context, id string) (*triage.Result, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger        log.Logger
	svc           TriageService
	renderer      *report.Renderer
	searchDefault bool
}

// New creates a new API handler. searchDefault is used when a request
// omits the enable_search flag.
func New(logger log.Logger, svc TriageService, renderer *report.Renderer, searchDefault bool) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if renderer == nil {
		renderer = report.New()
	}
	return &API{
		logger:        logger,
		svc:           svc,
		renderer:      renderer,
		searchDefault: searchDefault,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triage", a.handleSubmit)
		r.Get("/triage/{id}", a.handleGetTriage)
		r.Get("/triage/{id}/report", a.handleGetReport)
	})
}

// submitRequest is the POST /triage payload.
type submitRequest struct {
	Text         string `json:"text"`
	Model        string `json:"model,omitempty"`
	EnableSearch *bool  `json:"enable_search,omitempty"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	enableSearch := a.searchDefault
	if req.EnableSearch != nil {
		enableSearch = *req.EnableSearch
	}

	sr, err := a.svc.Submit(r.Context(), &triage.RunInput{
		RawText:      req.Text,
		Model:        req.Model,
		EnableSearch: enableSearch,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to submit triage")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if sr.Skipped {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, sr.Reason), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": sr.ID})
}

func (a *API) handleGetTriage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("warden.triage.id", id))

	result, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get triage result", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("warden.triage.status", string(result.Status)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (a *API) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get triage result", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	if result.Status != triage.StatusComplete && result.Status != triage.StatusFailed {
		http.Error(w, `{"error":"triage still running"}`, http.StatusConflict)
		return
	}

	now := time.Now()
	html := a.renderer.Render(result, now)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="report_%s.html"`, now.Format("2006-01-02")))
	_, _ = w.Write([]byte(html))
}
