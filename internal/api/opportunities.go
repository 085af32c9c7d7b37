package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/export"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/opportunity"
	"contact-insights-go/internal/types"
)

func opportunityQuery(r *http.Request) (opportunity.Filters, int, error) {
	q := r.URL.Query()
	filters := opportunity.Filters{
		PipelineID: q.Get("pipelineId"),
		StageID:    q.Get("pipelineStageId"),
		Status:     q.Get("status"),
	}
	// Older dashboard builds send stageId.
	if filters.StageID == "" {
		filters.StageID = q.Get("stageId")
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filters, 0, apperr.Validation("invalid limit %q", raw)
		}
		limit = n
	}
	return filters, limit, nil
}

func (rt *Router) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "list-opportunities")

	filters, limit, err := opportunityQuery(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	res, err := rt.deps.Opportunities.List(r.Context(), filters, limit)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if res.Opportunities == nil {
		res.Opportunities = []types.Opportunity{}
	}
	writeSuccess(w, map[string]any{
		"opportunities": res.Opportunities,
		"total":         res.Total,
		"returned":      res.Returned,
		"optimized":     res.Optimized,
	})
}

func (rt *Router) handleExportOpportunities(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "export-opportunities")

	filters, limit, err := opportunityQuery(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	res, err := rt.deps.Opportunities.List(r.Context(), filters, limit)
	if err != nil {
		writeError(w, log, err)
		return
	}

	filename := fmt.Sprintf("opportunities-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.Opportunities(w, res.Opportunities); err != nil {
		log.WithField("error", err.Error()).Error("xlsx export failed")
	}
}

func (rt *Router) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "list-pipelines")

	pipelines, err := rt.deps.CRM.ListPipelines(r.Context())
	if err != nil {
		writeError(w, log, err)
		return
	}
	if pipelines == nil {
		pipelines = []types.Pipeline{}
	}
	writeSuccess(w, map[string]any{"pipelines": pipelines, "total": len(pipelines)})
}
