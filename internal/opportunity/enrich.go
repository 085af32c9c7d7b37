package opportunity

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/crm"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/types"
)

// searchPageSize is what we ask the search endpoint for per page; the
// upstream caps it there anyway.
const searchPageSize = 100

// maxSearchPages is a hard stop on cursor walking. The upstream cursor
// contract is undocumented and has looped before.
const maxSearchPages = 50

// CRMService is the slice of the CRM adapter the enrichment pipeline needs.
type CRMService interface {
	ListPipelines(ctx context.Context) ([]types.Pipeline, error)
	SearchOpportunities(ctx context.Context, cursor string, limit int) (crm.OpportunityPage, error)
	PipelineOpportunities(ctx context.Context, pipelineID string) ([]types.Opportunity, error)
	GetContact(ctx context.Context, contactID string) (types.Contact, error)
}

// AnalysisChecker reports whether a contact already has a persisted analysis.
type AnalysisChecker interface {
	HasAnalysis(contactID string) (bool, error)
}

// Filters are applied client-side after accumulation; upstream filtering by
// pipeline/stage is unreliable.
type Filters struct {
	PipelineID string
	StageID    string
	Status     string
}

// Result is the enriched listing plus its accounting.
type Result struct {
	Opportunities []types.Opportunity
	Total         int
	Returned      int
	// Optimized is true when the early-exit heuristic stopped paging before
	// the cursor was exhausted; Total may under-count in that case.
	Optimized bool
}

// Enricher pages the opportunity search, filters, and enriches each result
// with contact details and analysis flags.
type Enricher struct {
	crm       CRMService
	analyses  AnalysisChecker
	batchSize int
	log       *logrus.Entry
}

func NewEnricher(crmSvc CRMService, analyses AnalysisChecker, batchSize int) *Enricher {
	if batchSize < 1 {
		batchSize = 4
	}
	return &Enricher{
		crm:       crmSvc,
		analyses:  analyses,
		batchSize: batchSize,
		log:       logger.Component("opportunity"),
	}
}

// List produces up to limit enriched opportunities matching the filters.
func (e *Enricher) List(ctx context.Context, filters Filters, limit int) (Result, error) {
	if limit <= 0 {
		limit = 100
	}

	pipelines, err := e.crm.ListPipelines(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(pipelines) == 0 {
		return Result{}, nil
	}
	pipelineNames := make(map[string]string, len(pipelines))
	for _, p := range pipelines {
		pipelineNames[p.ID] = p.Name
	}

	accumulated, optimized, err := e.collect(ctx, filters, limit)
	if err != nil {
		e.log.WithField("error", err.Error()).Warn("opportunity search failed, falling back to per-pipeline listing")
		accumulated = e.collectFromPipelines(ctx, pipelines)
		optimized = false
	}

	filtered := applyFilters(accumulated, filters)
	total := len(filtered)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	e.enrichBatches(ctx, filtered)
	for i := range filtered {
		filtered[i].PipelineName = pipelineNames[filtered[i].PipelineID]
	}

	return Result{
		Opportunities: filtered,
		Total:         total,
		Returned:      len(filtered),
		Optimized:     optimized,
	}, nil
}

// collect walks the search cursor. When a pipeline filter is active and the
// filtered accumulation already holds 2x the requested limit, paging stops
// early: bounded latency traded for a possible under-count of Total.
func (e *Enricher) collect(ctx context.Context, filters Filters, limit int) (accumulated []types.Opportunity, optimized bool, err error) {
	cursor := ""
	for page := 0; page < maxSearchPages; page++ {
		res, err := e.crm.SearchOpportunities(ctx, cursor, searchPageSize)
		if err != nil {
			if page == 0 {
				return nil, false, err
			}
			// Later-page failure: keep what we have rather than drop the
			// whole listing.
			e.log.WithFields(logrus.Fields{"page": page, "error": err.Error()}).Warn("search page failed, stopping pagination")
			return accumulated, false, nil
		}
		accumulated = append(accumulated, res.Opportunities...)

		if filters.PipelineID != "" && len(applyFilters(accumulated, filters)) >= 2*limit {
			return accumulated, true, nil
		}
		if !res.HasMore || res.NextCursor == "" || res.NextCursor == cursor {
			return accumulated, false, nil
		}
		cursor = res.NextCursor
	}
	return accumulated, false, nil
}

// collectFromPipelines is the fallback when the search endpoint is down: each
// pipeline's embedded opportunity list, flattened. Per-pipeline failure is a
// degraded listing, not an error.
func (e *Enricher) collectFromPipelines(ctx context.Context, pipelines []types.Pipeline) []types.Opportunity {
	var out []types.Opportunity
	for _, p := range pipelines {
		opps, err := e.crm.PipelineOpportunities(ctx, p.ID)
		if err != nil {
			e.log.WithFields(logrus.Fields{"pipeline_id": p.ID, "error": err.Error()}).Warn("pipeline fallback fetch failed")
			continue
		}
		out = append(out, opps...)
	}
	return out
}

func applyFilters(opps []types.Opportunity, f Filters) []types.Opportunity {
	out := make([]types.Opportunity, 0, len(opps))
	for _, o := range opps {
		if f.PipelineID != "" && o.PipelineID != f.PipelineID {
			continue
		}
		if f.StageID != "" && o.StageID != f.StageID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	return out
}

// enrichBatches resolves contact details and analysis flags with a fixed
// concurrency width. Unbounded fan-out against the CRM invites rate limiting.
func (e *Enricher) enrichBatches(ctx context.Context, opps []types.Opportunity) {
	sem := make(chan struct{}, e.batchSize)
	var wg sync.WaitGroup
	for i := range opps {
		wg.Add(1)
		go func(o *types.Opportunity) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			e.enrichOne(ctx, o)
		}(&opps[i])
	}
	wg.Wait()
}

// enrichOne fills in contact details (only when the embedded summary lacks
// email or phone) and the hasAnalysis flag. Any failure degrades to an
// unknown-contact stub; it never fails the batch.
func (e *Enricher) enrichOne(ctx context.Context, o *types.Opportunity) {
	if o.Contact.ID == "" {
		o.Contact.Name = "Unknown"
		o.HasAnalysis = false
		return
	}
	if o.Contact.Email == "" || o.Contact.Phone == "" {
		contact, err := e.crm.GetContact(ctx, o.Contact.ID)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"opportunity_id": o.ID,
				"contact_id":     o.Contact.ID,
				"error":          err.Error(),
			}).Warn("contact enrichment failed, using stub")
			if o.Contact.Name == "" {
				o.Contact.Name = "Unknown"
			}
			o.HasAnalysis = false
			return
		}
		o.Contact.Name = contact.DisplayName()
		o.Contact.Email = contact.Email
		o.Contact.Phone = contact.Phone
	}

	has, err := e.analyses.HasAnalysis(o.Contact.ID)
	if err != nil {
		e.log.WithFields(logrus.Fields{"contact_id": o.Contact.ID, "error": err.Error()}).Warn("analysis flag lookup failed")
		has = false
	}
	o.HasAnalysis = has
}
