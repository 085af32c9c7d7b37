package api

import (
	"net/http"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/transcription"
)

type transcribeRequest struct {
	MessageID string `json:"messageId"`
	Language  string `json:"language"`
}

// handleTranscribe transcribes one call recording on demand. Unlike the
// analysis pipeline, a failure here is the whole request's failure.
func (rt *Router) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "transcribe")

	var body transcribeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, log, err)
		return
	}
	if body.MessageID == "" {
		writeError(w, log, apperr.Validation("messageId is required"))
		return
	}
	language := body.Language
	if language == "" {
		language = "es"
	}

	audio, err := rt.deps.Recordings.GetRecording(r.Context(), body.MessageID)
	if err != nil {
		writeError(w, log, err)
		return
	}
	res, err := rt.deps.STT.Transcribe(r.Context(), audio, language)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if res.Segments == nil {
		res.Segments = []transcription.Segment{}
	}
	writeSuccess(w, map[string]any{
		"transcription": res.Text,
		"language":      res.Language,
		"duration":      res.Duration,
		"segments":      res.Segments,
	})
}
