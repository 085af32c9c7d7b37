package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/apperr"
)

// Every endpoint answers with the same envelope: {success:true, ...payload}
// or {success:false, error, details?}. The status taxonomy is deliberately
// coarse (400 validation, 404 not found, 500 everything else) for dashboard
// compatibility.

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithField("error", err.Error()).Error("failed to write response")
	}
}

func writeSuccess(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsValidation(err):
		status = http.StatusBadRequest
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	}

	body := map[string]any{"success": false, "error": err.Error()}
	var ue *apperr.UpstreamError
	if errors.As(err, &ue) && ue.Body != "" {
		body["details"] = ue.Body
	}

	if status >= 500 {
		log.WithField("error", err.Error()).Error("request failed")
	} else {
		log.WithField("error", err.Error()).Warn("request rejected")
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return apperr.Validation("request body required")
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apperr.Validation("invalid JSON body: %v", err)
	}
	return nil
}
