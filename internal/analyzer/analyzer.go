package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/assembler"
	"contact-insights-go/internal/llm"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/timeline"
	"contact-insights-go/internal/types"
)

// ContactService fetches contact records from the upstream CRM.
type ContactService interface {
	GetContact(ctx context.Context, contactID string) (types.Contact, error)
}

// TimelineBuilder produces the merged communication timeline.
type TimelineBuilder interface {
	Build(ctx context.Context, contactID string, filters timeline.Filters, language string) (timeline.Timeline, error)
}

// ModelService runs one prompt through the language model.
type ModelService interface {
	Chat(ctx context.Context, prompt, model string) (llm.Completion, error)
}

// PromptStore resolves the prompt driving a run.
type PromptStore interface {
	GetPrompt(id string) (types.Prompt, error)
	GetActivePrompt(promptType types.PromptType) (types.Prompt, error)
}

// AnalysisStore persists completed runs.
type AnalysisStore interface {
	InsertAnalysis(a types.Analysis) error
}

// ContactCache mirrors fetched contacts locally. Best-effort; a cache write
// failure never fails a run.
type ContactCache interface {
	UpsertContact(c types.Contact) error
}

// Request selects the contact, the prompt, and the channel filters for one
// analysis run. Nil inclusion flags fall back to the resolved prompt's
// settings. Re-analysis is this same request with an explicit prompt id or
// type; there is no separate re-analysis path.
type Request struct {
	ContactID       string
	PromptID        string
	PromptType      types.PromptType
	IncludeWhatsApp *bool
	IncludeSMS      *bool
	IncludeCalls    *bool
}

// Analyzer drives the linear pipeline: resolve prompt, fetch contact, build
// timeline, assemble context, invoke model, persist. Failures in any step end
// the run; only per-call transcription losses inside the timeline builder are
// tolerated.
type Analyzer struct {
	contacts ContactService
	builder  TimelineBuilder
	model    ModelService
	prompts  PromptStore
	analyses AnalysisStore
	cache    ContactCache
	log      *logrus.Entry
}

func New(contacts ContactService, builder TimelineBuilder, model ModelService, prompts PromptStore, analyses AnalysisStore, cache ContactCache) *Analyzer {
	return &Analyzer{
		contacts: contacts,
		builder:  builder,
		model:    model,
		prompts:  prompts,
		analyses: analyses,
		cache:    cache,
		log:      logger.Component("analyzer"),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, req Request) (types.Analysis, error) {
	log := a.log.WithField("contact_id", req.ContactID)
	start := time.Now()

	prompt, err := a.selectPrompt(req)
	if err != nil {
		return types.Analysis{}, err
	}
	log = log.WithFields(logrus.Fields{"prompt_id": prompt.ID, "prompt_version": prompt.Version, "prompt_type": prompt.Type})

	contact, err := a.contacts.GetContact(ctx, req.ContactID)
	if err != nil {
		return types.Analysis{}, err
	}
	if a.cache != nil {
		if err := a.cache.UpsertContact(contact); err != nil {
			log.WithField("error", err.Error()).Warn("contact cache refresh failed")
		}
	}

	filters := timeline.Filters{
		IncludeCalls:    resolveFlag(req.IncludeCalls, prompt.Settings.IncludeCalls),
		IncludeSMS:      resolveFlag(req.IncludeSMS, prompt.Settings.IncludeSMS),
		IncludeWhatsApp: resolveFlag(req.IncludeWhatsApp, prompt.Settings.IncludeWhatsApp),
	}
	language := prompt.Settings.Language
	if language == "" {
		language = "es"
	}

	tl, err := a.builder.Build(ctx, req.ContactID, filters, language)
	if err != nil {
		return types.Analysis{}, err
	}
	log.WithFields(logrus.Fields{
		"timeline_entries": len(tl.Entries),
		"transcriptions":   len(tl.Transcriptions),
	}).Info("timeline assembled")

	input := assembler.Render(prompt.Content, contact, tl, prompt.Settings)

	completion, err := a.model.Chat(ctx, input, prompt.Settings.Model)
	if err != nil {
		return types.Analysis{}, err
	}

	now := time.Now().UTC()
	analysis := types.Analysis{
		ID:             uuid.New().String(),
		ContactID:      contact.ID,
		ContactName:    contact.DisplayName(),
		PromptID:       prompt.ID,
		PromptVersion:  prompt.Version,
		PromptType:     prompt.Type,
		AnalysisText:   completion.Text,
		Transcriptions: tl.Transcriptions,
		Metadata: types.AnalysisMetadata{
			TotalMessages: len(tl.Entries),
			TotalCalls:    tl.TotalCalls(),
			AnalyzedAt:    now,
			InputTokens:   completion.InputTokens,
			OutputTokens:  completion.OutputTokens,
		},
		CreatedAt: now,
	}
	if err := a.analyses.InsertAnalysis(analysis); err != nil {
		// Distinct failure: the analysis was computed but not saved.
		return types.Analysis{}, err
	}

	log.WithFields(logrus.Fields{
		"analysis_id": analysis.ID,
		"took_ms":     time.Since(start).Milliseconds(),
	}).Info("analysis persisted")
	return analysis, nil
}

func (a *Analyzer) selectPrompt(req Request) (types.Prompt, error) {
	if req.PromptID != "" {
		return a.prompts.GetPrompt(req.PromptID)
	}
	promptType := req.PromptType
	if promptType == "" {
		promptType = types.PromptSetter
	}
	return a.prompts.GetActivePrompt(promptType)
}

func resolveFlag(override *bool, fallback bool) bool {
	if override != nil {
		return *override
	}
	return fallback
}
