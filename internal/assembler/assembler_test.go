package assembler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-insights-go/internal/timeline"
	"contact-insights-go/internal/types"
)

func sampleContact() types.Contact {
	return types.Contact{
		ID:        "c1",
		FirstName: "Ana",
		LastName:  "García",
		Email:     "ana@example.com",
		Phone:     "+34600000000",
		Tags:      []string{"vip", "madrid"},
	}
}

func sampleTimeline() timeline.Timeline {
	return timeline.Timeline{
		Entries: []types.Message{
			{
				ID:        "m1",
				Type:      types.MessageSMS,
				Direction: types.DirectionInbound,
				Body:      "hola, quiero información",
				Timestamp: time.Date(2026, 2, 1, 12, 30, 0, 0, time.UTC),
			},
			{
				ID:        "m2",
				Type:      types.MessageCall,
				Direction: types.DirectionOutbound,
				Body:      "transcripción de la llamada",
				Timestamp: time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	settings := types.DefaultPromptSettings()
	first := Render("Resume: {history}", sampleContact(), sampleTimeline(), settings)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Render("Resume: {history}", sampleContact(), sampleTimeline(), settings))
	}
}

func TestRenderStartsWithTemplate(t *testing.T) {
	out := Render("Eres un analista de ventas.", sampleContact(), sampleTimeline(), types.DefaultPromptSettings())
	assert.True(t, strings.HasPrefix(out, "Eres un analista de ventas."))
}

func TestContactSectionToggled(t *testing.T) {
	settings := types.DefaultPromptSettings()

	withInfo := RenderContext(sampleContact(), sampleTimeline(), settings)
	assert.Contains(t, withInfo, "INFORMACIÓN DEL CONTACTO:")
	assert.Contains(t, withInfo, "Nombre: Ana García")
	assert.Contains(t, withInfo, "Etiquetas: vip, madrid")

	settings.IncludeContactInfo = false
	withoutInfo := RenderContext(sampleContact(), sampleTimeline(), settings)
	assert.NotContains(t, withoutInfo, "INFORMACIÓN DEL CONTACTO:")
	assert.Contains(t, withoutInfo, "HISTORIAL DE COMUNICACIONES:")
}

func TestHistorySectionOmittedWhenTimelineEmpty(t *testing.T) {
	out := RenderContext(sampleContact(), timeline.Timeline{}, types.DefaultPromptSettings())
	assert.NotContains(t, out, "HISTORIAL DE COMUNICACIONES:")
	assert.Contains(t, out, "INFORMACIÓN DEL CONTACTO:")
}

func TestHistoryLineFormat(t *testing.T) {
	out := RenderContext(sampleContact(), sampleTimeline(), types.DefaultPromptSettings())
	lines := strings.Split(out, "\n")

	var smsLine, callLine string
	for _, l := range lines {
		if strings.Contains(l, "SMS") {
			smsLine = l
		}
		if strings.Contains(l, "CALL") {
			callLine = l
		}
	}
	require.NotEmpty(t, smsLine)
	require.NotEmpty(t, callLine)
	assert.Equal(t, "[01/02/2026 12:30] SMS - ENTRANTE: hola, quiero información", smsLine)
	assert.Equal(t, "[02/02/2026 09:00] CALL - SALIENTE: transcripción de la llamada", callLine)
}

func TestRenderEmptyContext(t *testing.T) {
	settings := types.DefaultPromptSettings()
	settings.IncludeContactInfo = false
	out := Render("template only", sampleContact(), timeline.Timeline{}, settings)
	assert.Equal(t, "template only", out)
}
