package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/llm"
	"contact-insights-go/internal/timeline"
	"contact-insights-go/internal/types"
)

type fakeContacts struct {
	contact types.Contact
	err     error
}

func (f *fakeContacts) GetContact(context.Context, string) (types.Contact, error) {
	return f.contact, f.err
}

type fakeBuilder struct {
	timeline    timeline.Timeline
	err         error
	gotFilters  timeline.Filters
	gotLanguage string
}

func (f *fakeBuilder) Build(_ context.Context, _ string, filters timeline.Filters, language string) (timeline.Timeline, error) {
	f.gotFilters = filters
	f.gotLanguage = language
	return f.timeline, f.err
}

type fakeModel struct {
	completion llm.Completion
	err        error
	gotPrompt  string
	gotModel   string
	calls      int
}

func (f *fakeModel) Chat(_ context.Context, prompt, model string) (llm.Completion, error) {
	f.calls++
	f.gotPrompt = prompt
	f.gotModel = model
	return f.completion, f.err
}

type fakePrompts struct {
	byID   map[string]types.Prompt
	active map[types.PromptType]types.Prompt
}

func (f *fakePrompts) GetPrompt(id string) (types.Prompt, error) {
	p, ok := f.byID[id]
	if !ok {
		return types.Prompt{}, apperr.NotFound("prompt", id)
	}
	return p, nil
}

func (f *fakePrompts) GetActivePrompt(pt types.PromptType) (types.Prompt, error) {
	p, ok := f.active[pt]
	if !ok {
		return types.Prompt{}, &apperr.NoActivePromptError{PromptType: string(pt)}
	}
	return p, nil
}

type fakeAnalyses struct {
	inserted []types.Analysis
	err      error
}

func (f *fakeAnalyses) InsertAnalysis(a types.Analysis) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, a)
	return nil
}

type fakeCache struct {
	upserts int
	err     error
}

func (f *fakeCache) UpsertContact(types.Contact) error {
	f.upserts++
	return f.err
}

func activePrompt() types.Prompt {
	return types.Prompt{
		ID:       "p1",
		Version:  3,
		Type:     types.PromptSetter,
		Content:  "Resume: {history}",
		Settings: types.DefaultPromptSettings(),
		IsActive: true,
	}
}

func newTestAnalyzer(contacts *fakeContacts, builder *fakeBuilder, model *fakeModel, prompts *fakePrompts, analyses *fakeAnalyses, cache *fakeCache) *Analyzer {
	if cache == nil {
		return New(contacts, builder, model, prompts, analyses, nil)
	}
	return New(contacts, builder, model, prompts, analyses, cache)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	ts := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	builder := &fakeBuilder{
		timeline: timeline.Timeline{
			Entries: []types.Message{
				{ID: "sms1", Type: types.MessageSMS, Body: "buenas", Timestamp: ts},
				{ID: "call1", Type: types.MessageCall, Body: "hola", Timestamp: ts.Add(time.Minute)},
			},
			Transcriptions: []types.Transcription{
				{MessageID: "call1", Text: "hola", Duration: 20, Language: "es", Timestamp: ts.Add(time.Minute)},
			},
		},
	}
	model := &fakeModel{completion: llm.Completion{Text: "análisis generado", InputTokens: 50, OutputTokens: 25}}
	analyses := &fakeAnalyses{}
	cache := &fakeCache{}
	a := newTestAnalyzer(
		&fakeContacts{contact: types.Contact{ID: "c1", FirstName: "Ana", LastName: "García"}},
		builder, model,
		&fakePrompts{active: map[types.PromptType]types.Prompt{types.PromptSetter: activePrompt()}},
		analyses, cache,
	)

	got, err := a.Analyze(context.Background(), Request{ContactID: "c1"})
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "c1", got.ContactID)
	assert.Equal(t, "Ana García", got.ContactName)
	assert.Equal(t, "p1", got.PromptID)
	assert.Equal(t, 3, got.PromptVersion)
	assert.Equal(t, types.PromptSetter, got.PromptType)
	assert.Equal(t, "análisis generado", got.AnalysisText)
	assert.Equal(t, 2, got.Metadata.TotalMessages)
	assert.Equal(t, 1, got.Metadata.TotalCalls)
	assert.Equal(t, 50, got.Metadata.InputTokens)

	require.Len(t, analyses.inserted, 1)
	assert.Equal(t, got.ID, analyses.inserted[0].ID)
	assert.Equal(t, 1, cache.upserts)

	assert.Contains(t, model.gotPrompt, "Resume: {history}")
	assert.Contains(t, model.gotPrompt, "hola")
	assert.Equal(t, "es", builder.gotLanguage)
}

func TestAnalyzeNoActivePrompt(t *testing.T) {
	a := newTestAnalyzer(&fakeContacts{}, &fakeBuilder{}, &fakeModel{},
		&fakePrompts{active: map[types.PromptType]types.Prompt{}}, &fakeAnalyses{}, nil)

	_, err := a.Analyze(context.Background(), Request{ContactID: "c1", PromptType: types.PromptCloser})
	var noActive *apperr.NoActivePromptError
	require.ErrorAs(t, err, &noActive)
	assert.Equal(t, "closer", noActive.PromptType)
	assert.True(t, apperr.IsValidation(err))
}

func TestAnalyzeDefaultsToSetterType(t *testing.T) {
	model := &fakeModel{completion: llm.Completion{Text: "ok"}}
	a := newTestAnalyzer(&fakeContacts{contact: types.Contact{ID: "c1"}}, &fakeBuilder{}, model,
		&fakePrompts{active: map[types.PromptType]types.Prompt{types.PromptSetter: activePrompt()}},
		&fakeAnalyses{}, nil)

	got, err := a.Analyze(context.Background(), Request{ContactID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, types.PromptSetter, got.PromptType)
}

func TestAnalyzeByExplicitPromptID(t *testing.T) {
	closer := activePrompt()
	closer.ID = "p9"
	closer.Type = types.PromptCloser
	closer.Settings.Model = "gpt-4o-mini"

	model := &fakeModel{completion: llm.Completion{Text: "ok"}}
	a := newTestAnalyzer(&fakeContacts{contact: types.Contact{ID: "c1"}}, &fakeBuilder{}, model,
		&fakePrompts{byID: map[string]types.Prompt{"p9": closer}}, &fakeAnalyses{}, nil)

	got, err := a.Analyze(context.Background(), Request{ContactID: "c1", PromptID: "p9"})
	require.NoError(t, err)
	assert.Equal(t, "p9", got.PromptID)
	assert.Equal(t, "gpt-4o-mini", model.gotModel, "prompt settings pick the model")
}

func TestAnalyzeContactFetchFailureIsFatal(t *testing.T) {
	a := newTestAnalyzer(&fakeContacts{err: apperr.Upstream("crm", 502, "bad gateway")},
		&fakeBuilder{}, &fakeModel{},
		&fakePrompts{active: map[types.PromptType]types.Prompt{types.PromptSetter: activePrompt()}},
		&fakeAnalyses{}, nil)

	_, err := a.Analyze(context.Background(), Request{ContactID: "c1"})
	var ue *apperr.UpstreamError
	assert.ErrorAs(t, err, &ue)
}

func TestAnalyzePersistenceFailureIsDistinct(t *testing.T) {
	model := &fakeModel{completion: llm.Completion{Text: "ok"}}
	analyses := &fakeAnalyses{err: apperr.Persistence("insert analysis", errors.New("disk full"))}
	a := newTestAnalyzer(&fakeContacts{contact: types.Contact{ID: "c1"}}, &fakeBuilder{}, model,
		&fakePrompts{active: map[types.PromptType]types.Prompt{types.PromptSetter: activePrompt()}},
		analyses, nil)

	_, err := a.Analyze(context.Background(), Request{ContactID: "c1"})
	var pe *apperr.PersistenceError
	assert.ErrorAs(t, err, &pe, "computed-but-not-saved must surface as PersistenceError")
	assert.Equal(t, 1, model.calls, "model was invoked before the write failed")
}

func TestAnalyzeRequestFlagsOverridePromptSettings(t *testing.T) {
	builder := &fakeBuilder{}
	model := &fakeModel{completion: llm.Completion{Text: "ok"}}
	no := false
	a := newTestAnalyzer(&fakeContacts{contact: types.Contact{ID: "c1"}}, builder, model,
		&fakePrompts{active: map[types.PromptType]types.Prompt{types.PromptSetter: activePrompt()}},
		&fakeAnalyses{}, nil)

	_, err := a.Analyze(context.Background(), Request{ContactID: "c1", IncludeCalls: &no})
	require.NoError(t, err)
	assert.False(t, builder.gotFilters.IncludeCalls)
	assert.True(t, builder.gotFilters.IncludeSMS, "unset flags fall back to prompt settings")
}

func TestAnalyzeCacheFailureIsNotFatal(t *testing.T) {
	model := &fakeModel{completion: llm.Completion{Text: "ok"}}
	cache := &fakeCache{err: errors.New("cache write failed")}
	a := newTestAnalyzer(&fakeContacts{contact: types.Contact{ID: "c1"}}, &fakeBuilder{}, model,
		&fakePrompts{active: map[types.PromptType]types.Prompt{types.PromptSetter: activePrompt()}},
		&fakeAnalyses{}, cache)

	_, err := a.Analyze(context.Background(), Request{ContactID: "c1"})
	assert.NoError(t, err)
}
