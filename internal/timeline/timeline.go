package timeline

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/types"
)

// fetchWidth bounds how many conversations are fetched at once. Deliberate
// backpressure against the upstream API, not a tuning knob.
const fetchWidth = 4

// ConversationService lists a contact's conversations and their messages.
type ConversationService interface {
	ListConversations(ctx context.Context, contactID string) ([]types.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]types.Message, error)
}

// TranscriptionStep produces a transcript for one call message.
type TranscriptionStep interface {
	TranscribeMessage(ctx context.Context, msg types.Message, language string) (types.Transcription, error)
}

// Filters are the caller-selected channel inclusion flags.
type Filters struct {
	IncludeCalls    bool
	IncludeSMS      bool
	IncludeWhatsApp bool
}

func (f Filters) includes(t types.MessageType) bool {
	switch t {
	case types.MessageCall:
		return f.IncludeCalls
	case types.MessageSMS:
		return f.IncludeSMS
	default:
		return f.IncludeWhatsApp
	}
}

// Timeline is the chronologically merged, channel-filtered communication
// history of one contact, plus the transcripts produced while building it.
type Timeline struct {
	Entries        []types.Message
	Transcriptions []types.Transcription
}

// TotalCalls counts entries that survived as calls, which by construction is
// the number of successful transcriptions.
func (t Timeline) TotalCalls() int { return len(t.Transcriptions) }

// Builder assembles timelines. Call messages are transcribed through the
// step; a message whose transcription fails is dropped from the timeline
// (logged), never fatal to the run.
type Builder struct {
	conversations ConversationService
	transcriber   TranscriptionStep
	log           *logrus.Entry
}

func NewBuilder(conversations ConversationService, transcriber TranscriptionStep) *Builder {
	return &Builder{
		conversations: conversations,
		transcriber:   transcriber,
		log:           logger.Component("timeline"),
	}
}

// Build fetches all messages across a contact's conversations and merges them
// into one ascending timeline. language is the transcription hint from the
// active prompt's settings.
func (b *Builder) Build(ctx context.Context, contactID string, filters Filters, language string) (Timeline, error) {
	convs, err := b.conversations.ListConversations(ctx, contactID)
	if err != nil {
		return Timeline{}, err
	}

	merged, err := b.fetchAll(ctx, convs)
	if err != nil {
		return Timeline{}, err
	}
	return b.assemble(ctx, merged, filters, language), nil
}

// fetchAll pulls every conversation's messages with bounded parallelism,
// preserving conversation order in the merged slice. Each sub-sequence keeps
// its upstream fetch order; chronology is restored by the final stable sort.
func (b *Builder) fetchAll(ctx context.Context, convs []types.Conversation) ([]types.Message, error) {
	results := make([][]types.Message, len(convs))
	errs := make([]error, len(convs))

	sem := make(chan struct{}, fetchWidth)
	var wg sync.WaitGroup
	for i, conv := range convs {
		wg.Add(1)
		go func(i int, conv types.Conversation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			msgs, err := b.conversations.ListMessages(ctx, conv.ID)
			results[i], errs[i] = msgs, err
		}(i, conv)
	}
	wg.Wait()

	var merged []types.Message
	for i := range convs {
		if errs[i] != nil {
			// Conversation fetch failure is fatal to the run, unlike
			// per-call transcription failure.
			return nil, errs[i]
		}
		merged = append(merged, results[i]...)
	}
	return merged, nil
}

func (b *Builder) assemble(ctx context.Context, msgs []types.Message, filters Filters, language string) Timeline {
	var tl Timeline
	for _, msg := range msgs {
		if !filters.includes(msg.Type) {
			continue
		}
		if msg.Type == types.MessageCall {
			tr, err := b.transcriber.TranscribeMessage(ctx, msg, language)
			if err != nil {
				b.log.WithFields(logrus.Fields{
					"message_id": msg.ID,
					"error":      err.Error(),
				}).Warn("dropping call from timeline, transcription failed")
				continue
			}
			msg.Body = tr.Text
			tl.Transcriptions = append(tl.Transcriptions, tr)
		}
		tl.Entries = append(tl.Entries, msg)
	}

	// Stable: equal timestamps keep encounter order.
	sort.SliceStable(tl.Entries, func(i, j int) bool {
		return tl.Entries[i].Timestamp.Before(tl.Entries[j].Timestamp)
	})
	return tl
}
