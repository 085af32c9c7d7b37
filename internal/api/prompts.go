package api

import (
	"net/http"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/types"
)

type createPromptRequest struct {
	Content    string                `json:"content"`
	Settings   *types.PromptSettings `json:"settings"`
	CreatedBy  string                `json:"createdBy"`
	PromptType string                `json:"promptType"`
}

func (rt *Router) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "create-prompt")

	var body createPromptRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, log, err)
		return
	}
	if body.Content == "" {
		writeError(w, log, apperr.Validation("content is required"))
		return
	}
	promptType := types.PromptType(body.PromptType)
	if body.PromptType == "" {
		promptType = types.PromptSetter
	} else if !promptType.Valid() {
		writeError(w, log, apperr.Validation("invalid promptType %q", body.PromptType))
		return
	}
	settings := types.DefaultPromptSettings()
	if body.Settings != nil {
		settings = *body.Settings
	}

	prompt, err := rt.deps.Prompts.CreatePrompt(body.Content, settings, body.CreatedBy, promptType)
	if err != nil {
		writeError(w, log, err)
		return
	}
	log.WithField("prompt_id", prompt.ID).WithField("version", prompt.Version).Info("prompt created")
	writeSuccess(w, map[string]any{"prompt": prompt})
}

func (rt *Router) handleRestorePrompt(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "restore-prompt")

	prompt, err := rt.deps.Prompts.RestorePrompt(r.PathValue("id"))
	if err != nil {
		writeError(w, log, err)
		return
	}
	log.WithField("prompt_id", prompt.ID).Info("prompt restored")
	writeSuccess(w, map[string]any{"prompt": prompt})
}

func (rt *Router) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "delete-prompt")

	id := r.PathValue("id")
	if err := rt.deps.Prompts.DeletePrompt(id); err != nil {
		writeError(w, log, err)
		return
	}
	log.WithField("prompt_id", id).Info("prompt deleted")
	writeSuccess(w, map[string]any{"deleted": id})
}

func (rt *Router) handlePromptHistory(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "prompt-history")

	promptType, err := promptTypeQuery(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	prompts, err := rt.deps.Prompts.ListPromptHistory(promptType)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if prompts == nil {
		prompts = []types.Prompt{}
	}
	writeSuccess(w, map[string]any{"prompts": prompts, "total": len(prompts)})
}

func (rt *Router) handleActivePrompt(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "active-prompt")

	promptType, err := promptTypeQuery(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if promptType == "" {
		promptType = types.PromptSetter
	}
	prompt, err := rt.deps.Prompts.GetActivePrompt(promptType)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeSuccess(w, map[string]any{"prompt": prompt})
}

func promptTypeQuery(r *http.Request) (types.PromptType, error) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		return "", nil
	}
	promptType := types.PromptType(raw)
	if !promptType.Valid() {
		return "", apperr.Validation("invalid prompt type %q", raw)
	}
	return promptType, nil
}
