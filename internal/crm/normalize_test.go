package crm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-insights-go/internal/types"
)

func TestMessageEnvelopeNestedShape(t *testing.T) {
	payload := []byte(`{
		"messages": {
			"messages": [
				{"id": "m1", "messageType": "TYPE_CALL", "direction": "inbound", "dateAdded": "2026-02-01T12:00:00Z"},
				{"id": "m2", "type": "TYPE_SMS", "body": "hola", "direction": "outbound", "dateAdded": "2026-02-01T12:05:00Z"}
			],
			"lastMessageId": "m2",
			"nextPage": true
		}
	}`)
	var env messageListEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))

	msgs, cursor, hasMore := env.normalize("conv1")
	require.Len(t, msgs, 2)
	assert.Equal(t, types.MessageCall, msgs[0].Type)
	assert.Equal(t, types.DirectionInbound, msgs[0].Direction)
	assert.Equal(t, types.MessageSMS, msgs[1].Type)
	assert.Equal(t, "conv1", msgs[1].ConversationID)
	assert.Equal(t, "m2", cursor)
	assert.True(t, hasMore)
}

func TestMessageEnvelopeFlatShape(t *testing.T) {
	payload := []byte(`{
		"messages": [
			{"id": "m1", "messageType": "SMS", "body": "hey", "direction": "outbound", "dateAdded": "2026-02-01T09:00:00Z"}
		]
	}`)
	var env messageListEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))

	msgs, cursor, hasMore := env.normalize("conv1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Empty(t, cursor)
	assert.False(t, hasMore)
}

func TestUnknownMessageTypeDefaultsToWhatsApp(t *testing.T) {
	for _, raw := range []string{"", "TYPE_UNKNOWN", "Email"} {
		assert.Equal(t, types.MessageWhatsApp, types.ClassifyMessageType(raw), "raw=%q", raw)
	}
	assert.Equal(t, types.MessageCall, types.ClassifyMessageType("TYPE_PHONE_CALL"))
	assert.Equal(t, types.MessageSMS, types.ClassifyMessageType("TYPE_SMS"))
}

func TestCustomFieldsMapShape(t *testing.T) {
	fields := normalizeCustomFields(json.RawMessage(`{"budget": "high"}`))
	assert.Equal(t, map[string]string{"budget": "high"}, fields)
}

func TestCustomFieldsArrayShape(t *testing.T) {
	fields := normalizeCustomFields(json.RawMessage(`[
		{"id": "f1", "key": "budget", "value": "high"},
		{"id": "f2", "value": "warm"}
	]`))
	assert.Equal(t, "high", fields["budget"])
	assert.Equal(t, "warm", fields["f2"], "fields without a key fall back to the id")
}

func TestOpportunitySearchEnvelope(t *testing.T) {
	payload := []byte(`{
		"opportunities": [
			{"id": "o1", "name": "Deal", "pipelineId": "pl1", "pipelineStageId": "s1",
			 "status": "open", "monetaryValue": 1500,
			 "contact": {"id": "c1", "name": "Ana", "email": "a@b.com"},
			 "createdAt": "2026-01-15T10:00:00Z"}
		],
		"meta": {"total": 42, "startAfterId": "o1"}
	}`)
	var env opportunitySearchEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))

	page := env.normalize()
	require.Len(t, page.Opportunities, 1)
	assert.Equal(t, 42, page.Total)
	assert.True(t, page.HasMore)
	assert.Equal(t, "o1", page.NextCursor)
	assert.Equal(t, 1500.0, page.Opportunities[0].MonetaryValue)
	assert.Equal(t, "c1", page.Opportunities[0].Contact.ID)
}

func TestPipelineFallbackNormalization(t *testing.T) {
	payload := []byte(`{
		"pipeline": {
			"id": "pl1", "name": "Ventas",
			"stages": [{"id": "s1", "name": "Nuevo"}],
			"opportunities": [
				{"id": "o1", "name": "Deal", "stageId": "s1", "status": "open", "value": 900,
				 "contactId": "c1", "contactName": "Ana", "contactEmail": "a@b.com", "contactPhone": "+34"}
			]
		}
	}`)
	var env pipelineEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))

	opps := env.Pipeline.normalizeOpportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, "pl1", opps[0].PipelineID)
	assert.Equal(t, "Ventas", opps[0].PipelineName)
	assert.Equal(t, "s1", opps[0].StageID)
	assert.Equal(t, 900.0, opps[0].MonetaryValue)
	assert.Equal(t, types.OpportunityContact{ID: "c1", Name: "Ana", Email: "a@b.com", Phone: "+34"}, opps[0].Contact)
}

func TestParseUpstreamTimeLayouts(t *testing.T) {
	want := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2026-02-01T12:00:00Z",
		"2026-02-01T12:00:00.000Z",
		"2026-02-01 12:00:00",
	} {
		assert.Equal(t, want, parseUpstreamTime(s), "layout %q", s)
	}
	assert.True(t, parseUpstreamTime("not a date").IsZero())
	assert.True(t, parseUpstreamTime("").IsZero())
}
