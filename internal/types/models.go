package types

import (
	"strings"
	"time"
)

// MessageType is the communication channel of a single message.
type MessageType string

const (
	MessageCall     MessageType = "CALL"
	MessageSMS      MessageType = "SMS"
	MessageWhatsApp MessageType = "WHATSAPP"
)

// ClassifyMessageType maps the upstream's free-form type string onto our
// channel enum. Unrecognized or empty types are treated as WhatsApp, which is
// what the upstream emits for most chat traffic.
func ClassifyMessageType(raw string) MessageType {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "CALL"):
		return MessageCall
	case strings.Contains(upper, "SMS"):
		return MessageSMS
	default:
		return MessageWhatsApp
	}
}

// Contact mirrors an upstream CRM contact. Read-only on our side.
type Contact struct {
	ID           string            `json:"id"`
	FirstName    string            `json:"firstName,omitempty"`
	LastName     string            `json:"lastName,omitempty"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Source       string            `json:"source,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
	LastSynced   time.Time         `json:"lastSynced,omitzero"`
}

// DisplayName is first+last trimmed; falls back to email, then id.
func (c Contact) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name != "" {
		return name
	}
	if c.Email != "" {
		return c.Email
	}
	return c.ID
}

// Conversation groups the messages exchanged with one contact over one
// thread. Never persisted locally; fetched on demand.
type Conversation struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId"`
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Message is one communication event. Body is empty for calls until the
// recording has been transcribed.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId,omitempty"`
	Type           MessageType      `json:"type"`
	Body           string           `json:"body,omitempty"`
	Direction      MessageDirection `json:"direction"`
	Timestamp      time.Time        `json:"dateAdded"`
}

// Transcription is the speech-to-text result for one call message. Ephemeral
// unless attached to a persisted Analysis.
type Transcription struct {
	MessageID string    `json:"messageId"`
	Text      string    `json:"text"`
	Duration  float64   `json:"duration"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// PromptType selects which of the two independent prompt version sequences a
// prompt belongs to.
type PromptType string

const (
	PromptSetter PromptType = "setter"
	PromptCloser PromptType = "closer"
)

func (t PromptType) Valid() bool {
	return t == PromptSetter || t == PromptCloser
}

// PromptSettings control what context is assembled and which model runs it.
type PromptSettings struct {
	IncludeContactInfo bool   `json:"includeContactInfo"`
	IncludeWhatsApp    bool   `json:"includeWhatsApp"`
	IncludeSMS         bool   `json:"includeSMS"`
	IncludeCalls       bool   `json:"includeCalls"`
	Model              string `json:"model,omitempty"`
	Language           string `json:"language,omitempty"`
}

// DefaultPromptSettings: include everything, Spanish transcription hint.
func DefaultPromptSettings() PromptSettings {
	return PromptSettings{
		IncludeContactInfo: true,
		IncludeWhatsApp:    true,
		IncludeSMS:         true,
		IncludeCalls:       true,
		Language:           "es",
	}
}

// Prompt is one version of a user-authored analysis template. Version numbers
// are scoped per type and never reused.
type Prompt struct {
	ID        string         `json:"id"`
	Version   int            `json:"version"`
	Type      PromptType     `json:"promptType"`
	Content   string         `json:"content"`
	Settings  PromptSettings `json:"settings"`
	CreatedBy string         `json:"createdBy,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	IsActive  bool           `json:"isActive"`
}

// AnalysisMetadata records what the pipeline actually processed in one run.
type AnalysisMetadata struct {
	TotalMessages int       `json:"totalMessages"`
	TotalCalls    int       `json:"totalCalls"`
	AnalyzedAt    time.Time `json:"analyzedAt"`
	InputTokens   int       `json:"inputTokens,omitempty"`
	OutputTokens  int       `json:"outputTokens,omitempty"`
}

// Analysis is one immutable persisted pipeline result. Multiple analyses may
// exist per contact; latest = max CreatedAt.
type Analysis struct {
	ID             string           `json:"id"`
	ContactID      string           `json:"contactId"`
	ContactName    string           `json:"contactName"`
	PromptID       string           `json:"promptId"`
	PromptVersion  int              `json:"promptVersion"`
	PromptType     PromptType       `json:"promptType"`
	AnalysisText   string           `json:"analysisText"`
	Transcriptions []Transcription  `json:"transcriptions"`
	Metadata       AnalysisMetadata `json:"metadata"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// PipelineStage is one stage within a sales pipeline.
type PipelineStage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Pipeline is an upstream sales pipeline definition.
type Pipeline struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Stages []PipelineStage `json:"stages,omitempty"`
}

// OpportunityContact is the contact summary embedded in an opportunity search
// result. May lack email/phone, in which case enrichment resolves the full
// contact record.
type OpportunityContact struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Opportunity is one enriched sales opportunity.
type Opportunity struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	PipelineID         string             `json:"pipelineId"`
	PipelineName       string             `json:"pipelineName,omitempty"`
	StageID            string             `json:"pipelineStageId,omitempty"`
	Status             string             `json:"status,omitempty"`
	MonetaryValue      float64            `json:"monetaryValue,omitempty"`
	AssignedTo         string             `json:"assignedTo,omitempty"`
	Contact            OpportunityContact `json:"contact"`
	HasAnalysis        bool               `json:"hasAnalysis"`
	CreatedAt          time.Time          `json:"createdAt,omitzero"`
	LastStatusChangeAt time.Time          `json:"lastStatusChangeAt,omitzero"`
}
