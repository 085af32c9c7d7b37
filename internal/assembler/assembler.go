package assembler

import (
	"fmt"
	"strings"

	"contact-insights-go/internal/timeline"
	"contact-insights-go/internal/types"
)

// Pure string assembly of the model input. No clock, no network: the same
// (contact, timeline, settings, template) always renders byte-identical text.

const sectionSeparator = "\n\n---\n\n"

const timestampLayout = "02/01/2006 15:04"

// Render produces the final model input: the prompt template content followed
// by the rendered context block.
func Render(template string, contact types.Contact, tl timeline.Timeline, settings types.PromptSettings) string {
	context := RenderContext(contact, tl, settings)
	if context == "" {
		return template
	}
	return template + sectionSeparator + context
}

// RenderContext renders the contact-info section (when enabled) and the
// communication-history section (when the timeline is non-empty).
func RenderContext(contact types.Contact, tl timeline.Timeline, settings types.PromptSettings) string {
	var sections []string

	if settings.IncludeContactInfo {
		sections = append(sections, renderContact(contact))
	}
	if len(tl.Entries) > 0 {
		sections = append(sections, renderHistory(tl))
	}
	return strings.Join(sections, sectionSeparator)
}

func renderContact(c types.Contact) string {
	var b strings.Builder
	b.WriteString("INFORMACIÓN DEL CONTACTO:\n")
	fmt.Fprintf(&b, "Nombre: %s\n", c.DisplayName())
	if c.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", c.Email)
	}
	if c.Phone != "" {
		fmt.Fprintf(&b, "Teléfono: %s\n", c.Phone)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(&b, "Etiquetas: %s\n", strings.Join(c.Tags, ", "))
	}
	if c.Source != "" {
		fmt.Fprintf(&b, "Origen: %s\n", c.Source)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistory(tl timeline.Timeline) string {
	var b strings.Builder
	b.WriteString("HISTORIAL DE COMUNICACIONES:\n")
	for _, e := range tl.Entries {
		direction := "ENTRANTE"
		if e.Direction == types.DirectionOutbound {
			direction = "SALIENTE"
		}
		fmt.Fprintf(&b, "[%s] %s - %s: %s\n",
			e.Timestamp.UTC().Format(timestampLayout), e.Type, direction, e.Body)
	}
	return strings.TrimRight(b.String(), "\n")
}
