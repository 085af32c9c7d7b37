package api

import (
	"context"
	"net/http"

	"contact-insights-go/internal/analyzer"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/opportunity"
	"contact-insights-go/internal/transcription"
	"contact-insights-go/internal/types"
)

// AnalysisRunner drives one contact analysis end to end.
type AnalysisRunner interface {
	Analyze(ctx context.Context, req analyzer.Request) (types.Analysis, error)
}

// PromptStore is the versioned prompt CRUD surface.
type PromptStore interface {
	CreatePrompt(content string, settings types.PromptSettings, createdBy string, promptType types.PromptType) (types.Prompt, error)
	RestorePrompt(id string) (types.Prompt, error)
	DeletePrompt(id string) error
	GetActivePrompt(promptType types.PromptType) (types.Prompt, error)
	ListPromptHistory(promptType types.PromptType) ([]types.Prompt, error)
}

// AnalysisReader serves persisted analyses.
type AnalysisReader interface {
	ListAnalyses(contactID string) ([]types.Analysis, error)
	LatestAnalysis(contactID string) (types.Analysis, error)
}

// OpportunityLister runs the enrichment pipeline.
type OpportunityLister interface {
	List(ctx context.Context, filters opportunity.Filters, limit int) (opportunity.Result, error)
}

// CRMReader is the thin pass-through slice of the CRM adapter.
type CRMReader interface {
	GetContact(ctx context.Context, contactID string) (types.Contact, error)
	SearchContacts(ctx context.Context, query string, limit int) ([]types.Contact, error)
	ListConversations(ctx context.Context, contactID string) ([]types.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]types.Message, error)
	ListPipelines(ctx context.Context) ([]types.Pipeline, error)
}

// Deps wires the router's collaborators; tests substitute fakes.
type Deps struct {
	Analyzer      AnalysisRunner
	Prompts       PromptStore
	Analyses      AnalysisReader
	Opportunities OpportunityLister
	CRM           CRMReader
	Recordings    transcription.RecordingFetcher
	STT           transcription.Transcriber
}

// Router owns the HTTP surface.
type Router struct {
	mux  *http.ServeMux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	r := &Router{mux: http.NewServeMux(), deps: deps}
	r.setupRoutes()
	return r
}

func (rt *Router) setupRoutes() {
	rt.mux.HandleFunc("GET /healthz", rt.handleHealth)

	rt.mux.HandleFunc("POST /api/analyze-contact", rt.handleAnalyzeContact)
	rt.mux.HandleFunc("POST /api/analyses/{contactId}/reanalyze", rt.handleReanalyze)
	rt.mux.HandleFunc("GET /api/analyses/{contactId}", rt.handleListAnalyses)
	rt.mux.HandleFunc("GET /api/analyses/{contactId}/latest", rt.handleLatestAnalysis)

	rt.mux.HandleFunc("GET /api/opportunities", rt.handleListOpportunities)
	rt.mux.HandleFunc("GET /api/opportunities/export", rt.handleExportOpportunities)
	rt.mux.HandleFunc("GET /api/pipelines", rt.handleListPipelines)

	rt.mux.HandleFunc("GET /api/contacts", rt.handleSearchContacts)
	rt.mux.HandleFunc("GET /api/contacts/{id}", rt.handleGetContact)
	rt.mux.HandleFunc("GET /api/contacts/{id}/conversations", rt.handleListConversations)
	rt.mux.HandleFunc("GET /api/conversations/{id}/messages", rt.handleListMessages)

	rt.mux.HandleFunc("POST /api/transcribe", rt.handleTranscribe)

	rt.mux.HandleFunc("POST /api/prompts", rt.handleCreatePrompt)
	rt.mux.HandleFunc("POST /api/prompts/{id}/restore", rt.handleRestorePrompt)
	rt.mux.HandleFunc("DELETE /api/prompts/{id}", rt.handleDeletePrompt)
	rt.mux.HandleFunc("GET /api/prompts/history", rt.handlePromptHistory)
	rt.mux.HandleFunc("GET /api/prompts/active", rt.handleActivePrompt)
}

// ServeHTTP applies CORS (the dashboard runs on another origin) then routes.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	logger.New().WithRequest(r).Debug("health check")
	writeSuccess(w, map[string]any{"status": "ok"})
}
