// Package report renders a triage result into a standalone HTML document
// suitable for download and offline review.
package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/linnemanlabs/warden/internal/triage"
)

//go:embed template.html
var templateHTML string

// Renderer turns finding lists into HTML reports. Rendering failure is
// local and non-fatal: the structured data stays available and the
// document body is replaced by an inline diagnostic.
type Renderer struct {
	tmpl    *template.Template
	initErr error
}

// reportData is the template input.
type reportData struct {
	GeneratedAt string
	Findings    []triage.Finding
	P0Count     int
	P1Count     int
	Total       int
}

// New parses the embedded template.
func New() *Renderer {
	tmpl, err := template.New("report").Parse(templateHTML)
	return &Renderer{tmpl: tmpl, initErr: err}
}

// Render produces the HTML report for a result at the given generation
// time. It never fails: template problems yield an inline error document.
func (r *Renderer) Render(result *triage.Result, generatedAt time.Time) string {
	if r.initErr != nil {
		return inlineError(fmt.Sprintf("report template unavailable: %v", r.initErr))
	}

	data := reportData{
		GeneratedAt: generatedAt.Format("2006-01-02 15:04"),
		Findings:    result.Findings,
		P0Count:     result.P0Count,
		P1Count:     result.P1Count,
		Total:       len(result.Findings),
	}

	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, data); err != nil {
		return inlineError(fmt.Sprintf("report rendering failed: %v", err))
	}
	return sb.String()
}

func inlineError(msg string) string {
	var sb strings.Builder
	_ = template.Must(template.New("err").Parse(
		`<div style="color:red">{{.}}</div>`)).Execute(&sb, msg)
	return sb.String()
}
