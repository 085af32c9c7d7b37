package transcription

import (
	"context"

	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/types"
)

// RecordingFetcher downloads the raw audio of a call message.
type RecordingFetcher interface {
	GetRecording(ctx context.Context, messageID string) ([]byte, error)
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Result, error)
}

// Step is the per-call transcription step of the analysis pipeline: download
// the recording, submit it for transcription, attach the source message's
// timestamp. Errors are returned to the caller, which treats them as "no
// transcript for this message" — they must never abort the surrounding run.
type Step struct {
	recordings RecordingFetcher
	stt        Transcriber
}

func NewStep(recordings RecordingFetcher, stt Transcriber) *Step {
	return &Step{recordings: recordings, stt: stt}
}

func (s *Step) TranscribeMessage(ctx context.Context, msg types.Message, language string) (types.Transcription, error) {
	log := logger.Component("transcription").WithField("message_id", msg.ID)

	audio, err := s.recordings.GetRecording(ctx, msg.ID)
	if err != nil {
		log.WithField("error", err.Error()).Warn("recording download failed")
		return types.Transcription{}, err
	}
	res, err := s.stt.Transcribe(ctx, audio, language)
	if err != nil {
		log.WithField("error", err.Error()).Warn("transcription failed")
		return types.Transcription{}, err
	}
	return types.Transcription{
		MessageID: msg.ID,
		Text:      res.Text,
		Duration:  res.Duration,
		Language:  res.Language,
		Timestamp: msg.Timestamp,
	}, nil
}
