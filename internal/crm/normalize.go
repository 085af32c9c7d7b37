package crm

import (
	"encoding/json"
	"time"

	"contact-insights-go/internal/types"
)

// The upstream API is not shape-stable: the same endpoint answers with fields
// nested one level deeper depending on tenant and API revision, custom fields
// arrive as either a map or a key/value array, and the pipeline fallback uses
// different field names than the search endpoint. Everything shape-dependent
// is normalized here so the rest of the service sees one model.

type rawContact struct {
	ID           string          `json:"id"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Tags         []string        `json:"tags"`
	Source       string          `json:"source"`
	CustomFields json.RawMessage `json:"customFields"`
}

func (r rawContact) normalize() types.Contact {
	return types.Contact{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		Tags:         r.Tags,
		Source:       r.Source,
		CustomFields: normalizeCustomFields(r.CustomFields),
	}
}

// normalizeCustomFields accepts both shapes the upstream emits: a flat
// string map, or an array of {id, key, value} objects.
func normalizeCustomFields(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		if len(asMap) == 0 {
			return nil
		}
		return asMap
	}
	var asList []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &asList); err == nil && len(asList) > 0 {
		out := make(map[string]string, len(asList))
		for _, f := range asList {
			k := f.Key
			if k == "" {
				k = f.ID
			}
			if k != "" {
				out[k] = f.Value
			}
		}
		return out
	}
	return nil
}

type contactEnvelope struct {
	Contact rawContact `json:"contact"`
}

func (e contactEnvelope) normalize() types.Contact { return e.Contact.normalize() }

type contactListEnvelope struct {
	Contacts []rawContact `json:"contacts"`
}

type conversationListEnvelope struct {
	Conversations []struct {
		ID        string `json:"id"`
		ContactID string `json:"contactId"`
	} `json:"conversations"`
}

type rawMessage struct {
	ID        string `json:"id"`
	Type      string `json:"messageType"`
	AltType   string `json:"type"`
	Body      string `json:"body"`
	Direction string `json:"direction"`
	DateAdded string `json:"dateAdded"`
}

func (r rawMessage) normalize(conversationID string) types.Message {
	typeField := r.Type
	if typeField == "" {
		typeField = r.AltType
	}
	dir := types.DirectionInbound
	if r.Direction == "outbound" {
		dir = types.DirectionOutbound
	}
	return types.Message{
		ID:             r.ID,
		ConversationID: conversationID,
		Type:           types.ClassifyMessageType(typeField),
		Body:           r.Body,
		Direction:      dir,
		Timestamp:      parseUpstreamTime(r.DateAdded),
	}
}

// messageListEnvelope handles both message shapes: the documented
// {messages: {messages: [...], lastMessageId, nextPage}} and the flat
// {messages: [...]} some tenants return.
type messageListEnvelope struct {
	Messages json.RawMessage `json:"messages"`
}

func (e messageListEnvelope) normalize(conversationID string) (msgs []types.Message, nextCursor string, hasMore bool) {
	if len(e.Messages) == 0 {
		return nil, "", false
	}
	var nested struct {
		Messages      []rawMessage `json:"messages"`
		LastMessageID string       `json:"lastMessageId"`
		NextPage      bool         `json:"nextPage"`
	}
	if err := json.Unmarshal(e.Messages, &nested); err == nil && nested.Messages != nil {
		for _, rm := range nested.Messages {
			msgs = append(msgs, rm.normalize(conversationID))
		}
		return msgs, nested.LastMessageID, nested.NextPage
	}
	var flat []rawMessage
	if err := json.Unmarshal(e.Messages, &flat); err == nil {
		for _, rm := range flat {
			msgs = append(msgs, rm.normalize(conversationID))
		}
	}
	return msgs, "", false
}

type rawOpportunityContact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type rawOpportunity struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	PipelineID         string                `json:"pipelineId"`
	StageID            string                `json:"pipelineStageId"`
	Status             string                `json:"status"`
	MonetaryValue      float64               `json:"monetaryValue"`
	AssignedTo         string                `json:"assignedTo"`
	Contact            rawOpportunityContact `json:"contact"`
	CreatedAt          string                `json:"createdAt"`
	LastStatusChangeAt string                `json:"lastStatusChangeAt"`
}

func (r rawOpportunity) normalize() types.Opportunity {
	return types.Opportunity{
		ID:            r.ID,
		Name:          r.Name,
		PipelineID:    r.PipelineID,
		StageID:       r.StageID,
		Status:        r.Status,
		MonetaryValue: r.MonetaryValue,
		AssignedTo:    r.AssignedTo,
		Contact: types.OpportunityContact{
			ID:    r.Contact.ID,
			Name:  r.Contact.Name,
			Email: r.Contact.Email,
			Phone: r.Contact.Phone,
		},
		CreatedAt:          parseUpstreamTime(r.CreatedAt),
		LastStatusChangeAt: parseUpstreamTime(r.LastStatusChangeAt),
	}
}

type opportunitySearchEnvelope struct {
	Opportunities []rawOpportunity `json:"opportunities"`
	Meta          struct {
		Total        int    `json:"total"`
		NextPageURL  string `json:"nextPageUrl"`
		StartAfterID string `json:"startAfterId"`
	} `json:"meta"`
}

func (e opportunitySearchEnvelope) normalize() OpportunityPage {
	page := OpportunityPage{Total: e.Meta.Total}
	for _, ro := range e.Opportunities {
		page.Opportunities = append(page.Opportunities, ro.normalize())
	}
	page.NextCursor = e.Meta.StartAfterID
	page.HasMore = e.Meta.StartAfterID != "" || e.Meta.NextPageURL != ""
	return page
}

// rawPipeline covers both the pipeline list (stages only) and the pipeline
// detail fallback, whose embedded opportunities use flat contact fields and
// "stageId"/"value" instead of the search endpoint's names.
type rawPipeline struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Stages        []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"stages"`
	Opportunities []struct {
		ID           string  `json:"id"`
		Name         string  `json:"name"`
		StageID      string  `json:"stageId"`
		Status       string  `json:"status"`
		Value        float64 `json:"value"`
		ContactID    string  `json:"contactId"`
		ContactName  string  `json:"contactName"`
		ContactEmail string  `json:"contactEmail"`
		ContactPhone string  `json:"contactPhone"`
		CreatedAt    string  `json:"createdAt"`
	} `json:"opportunities"`
}

func (r rawPipeline) normalize() types.Pipeline {
	p := types.Pipeline{ID: r.ID, Name: r.Name}
	for _, s := range r.Stages {
		p.Stages = append(p.Stages, types.PipelineStage{ID: s.ID, Name: s.Name})
	}
	return p
}

func (r rawPipeline) normalizeOpportunities() []types.Opportunity {
	out := make([]types.Opportunity, 0, len(r.Opportunities))
	for _, ro := range r.Opportunities {
		out = append(out, types.Opportunity{
			ID:            ro.ID,
			Name:          ro.Name,
			PipelineID:    r.ID,
			PipelineName:  r.Name,
			StageID:       ro.StageID,
			Status:        ro.Status,
			MonetaryValue: ro.Value,
			Contact: types.OpportunityContact{
				ID:    ro.ContactID,
				Name:  ro.ContactName,
				Email: ro.ContactEmail,
				Phone: ro.ContactPhone,
			},
			CreatedAt: parseUpstreamTime(ro.CreatedAt),
		})
	}
	return out
}

type pipelineListEnvelope struct {
	Pipelines []rawPipeline `json:"pipelines"`
}

type pipelineEnvelope struct {
	Pipeline rawPipeline `json:"pipeline"`
}

// parseUpstreamTime accepts the couple of timestamp layouts the upstream
// mixes. Zero time on failure; callers treat that as "unknown".
func parseUpstreamTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
