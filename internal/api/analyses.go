package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/analyzer"
	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/types"
)

type analyzeRequest struct {
	ContactID       string `json:"contactId"`
	PromptID        string `json:"promptId"`
	PromptType      string `json:"promptType"`
	IncludeWhatsApp *bool  `json:"includeWhatsApp"`
	IncludeSMS      *bool  `json:"includeSMS"`
	IncludeCalls    *bool  `json:"includeCalls"`
}

func (rt *Router) handleAnalyzeContact(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "analyze-contact")

	var body analyzeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, log, err)
		return
	}
	if body.ContactID == "" {
		writeError(w, log, apperr.Validation("contactId is required"))
		return
	}
	rt.runAnalysis(w, r, log, body)
}

// handleReanalyze is the same orchestration with the contact id taken from
// the path. A direct call into the analyzer, never a request replay through
// the router.
func (rt *Router) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "reanalyze")

	var body analyzeRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, log, err)
			return
		}
	}
	body.ContactID = r.PathValue("contactId")
	rt.runAnalysis(w, r, log, body)
}

func (rt *Router) runAnalysis(w http.ResponseWriter, r *http.Request, log *logrus.Entry, body analyzeRequest) {
	promptType := types.PromptType(body.PromptType)
	if body.PromptType != "" && !promptType.Valid() {
		writeError(w, log, apperr.Validation("invalid promptType %q", body.PromptType))
		return
	}

	analysis, err := rt.deps.Analyzer.Analyze(r.Context(), analyzer.Request{
		ContactID:       body.ContactID,
		PromptID:        body.PromptID,
		PromptType:      promptType,
		IncludeWhatsApp: body.IncludeWhatsApp,
		IncludeSMS:      body.IncludeSMS,
		IncludeCalls:    body.IncludeCalls,
	})
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeSuccess(w, map[string]any{"analysis": analysis})
}

func (rt *Router) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "list-analyses")

	analyses, err := rt.deps.Analyses.ListAnalyses(r.PathValue("contactId"))
	if err != nil {
		writeError(w, log, err)
		return
	}
	if analyses == nil {
		analyses = []types.Analysis{}
	}
	writeSuccess(w, map[string]any{"analyses": analyses, "total": len(analyses)})
}

func (rt *Router) handleLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "latest-analysis")

	analysis, err := rt.deps.Analyses.LatestAnalysis(r.PathValue("contactId"))
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeSuccess(w, map[string]any{"analysis": analysis})
}
