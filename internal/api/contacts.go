package api

import (
	"net/http"
	"strconv"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/types"
)

func (rt *Router) handleSearchContacts(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "search-contacts")

	q := r.URL.Query()
	limit := 20
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, log, apperr.Validation("invalid limit %q", raw))
			return
		}
		limit = n
	}
	contacts, err := rt.deps.CRM.SearchContacts(r.Context(), q.Get("query"), limit)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if contacts == nil {
		contacts = []types.Contact{}
	}
	writeSuccess(w, map[string]any{"contacts": contacts, "total": len(contacts)})
}

func (rt *Router) handleGetContact(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "get-contact")

	contact, err := rt.deps.CRM.GetContact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeSuccess(w, map[string]any{"contact": contact})
}

func (rt *Router) handleListConversations(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "list-conversations")

	conversations, err := rt.deps.CRM.ListConversations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, log, err)
		return
	}
	if conversations == nil {
		conversations = []types.Conversation{}
	}
	writeSuccess(w, map[string]any{"conversations": conversations, "total": len(conversations)})
}

func (rt *Router) handleListMessages(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "list-messages")

	messages, err := rt.deps.CRM.ListMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, log, err)
		return
	}
	if messages == nil {
		messages = []types.Message{}
	}
	writeSuccess(w, map[string]any{"messages": messages, "total": len(messages)})
}
