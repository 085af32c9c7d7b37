package store

import (
	"database/sql"
	"errors"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/types"
)

const insertAnalysisSQL = `
INSERT INTO analyses (
	id, contact_id, contact_name, prompt_id, prompt_version, prompt_type,
	analysis_text, total_messages, total_calls, input_tokens, output_tokens,
	analyzed_at_utc, created_at_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertAnalysisTranscriptionSQL = `
INSERT INTO analysis_transcriptions (analysis_id, message_id, text, duration, language, timestamp_utc)
VALUES (?, ?, ?, ?, ?, ?)`

const selectAnalysisColumns = `
	id, contact_id, contact_name, prompt_id, prompt_version, prompt_type,
	analysis_text, total_messages, total_calls, input_tokens, output_tokens,
	analyzed_at_utc, created_at_utc`

// InsertAnalysis persists one immutable analysis with its transcriptions in a
// single transaction.
func (s *Store) InsertAnalysis(a types.Analysis) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Persistence("insert analysis", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(insertAnalysisSQL,
		a.ID, a.ContactID, a.ContactName, a.PromptID, a.PromptVersion, string(a.PromptType),
		a.AnalysisText, a.Metadata.TotalMessages, a.Metadata.TotalCalls,
		a.Metadata.InputTokens, a.Metadata.OutputTokens,
		formatTime(a.Metadata.AnalyzedAt), formatTime(a.CreatedAt))
	if err != nil {
		return apperr.Persistence("insert analysis", err)
	}
	for _, tr := range a.Transcriptions {
		_, err = tx.Exec(insertAnalysisTranscriptionSQL,
			a.ID, tr.MessageID, tr.Text, tr.Duration, tr.Language, formatTime(tr.Timestamp))
		if err != nil {
			return apperr.Persistence("insert analysis", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence("insert analysis", err)
	}
	return nil
}

// ListAnalyses returns the full history for a contact, newest first.
func (s *Store) ListAnalyses(contactID string) ([]types.Analysis, error) {
	rows, err := s.db.Query(`SELECT `+selectAnalysisColumns+` FROM analyses WHERE contact_id = ? ORDER BY created_at_utc DESC`, contactID)
	if err != nil {
		return nil, apperr.Persistence("list analyses", err)
	}
	defer rows.Close()

	var out []types.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, apperr.Persistence("list analyses", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list analyses", err)
	}
	for i := range out {
		if err := s.loadTranscriptions(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LatestAnalysis returns the most recent analysis for a contact.
func (s *Store) LatestAnalysis(contactID string) (types.Analysis, error) {
	row := s.db.QueryRow(`SELECT `+selectAnalysisColumns+` FROM analyses WHERE contact_id = ? ORDER BY created_at_utc DESC LIMIT 1`, contactID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Analysis{}, apperr.NotFound("analysis", contactID)
	}
	if err != nil {
		return types.Analysis{}, apperr.Persistence("latest analysis", err)
	}
	if err := s.loadTranscriptions(&a); err != nil {
		return types.Analysis{}, err
	}
	return a, nil
}

// HasAnalysis reports whether any analysis exists for a contact.
func (s *Store) HasAnalysis(contactID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM analyses WHERE contact_id = ?`, contactID).Scan(&n)
	if err != nil {
		return false, apperr.Persistence("has analysis", err)
	}
	return n > 0, nil
}

func (s *Store) loadTranscriptions(a *types.Analysis) error {
	rows, err := s.db.Query(`SELECT message_id, text, duration, language, timestamp_utc
		FROM analysis_transcriptions WHERE analysis_id = ? ORDER BY timestamp_utc`, a.ID)
	if err != nil {
		return apperr.Persistence("load transcriptions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tr types.Transcription
		var ts string
		if err := rows.Scan(&tr.MessageID, &tr.Text, &tr.Duration, &tr.Language, &ts); err != nil {
			return apperr.Persistence("load transcriptions", err)
		}
		tr.Timestamp = parseTime(ts)
		a.Transcriptions = append(a.Transcriptions, tr)
	}
	return rows.Err()
}

func scanAnalysis(row rowScanner) (types.Analysis, error) {
	var a types.Analysis
	var promptType, analyzedAt, createdAt string
	err := row.Scan(&a.ID, &a.ContactID, &a.ContactName, &a.PromptID, &a.PromptVersion, &promptType,
		&a.AnalysisText, &a.Metadata.TotalMessages, &a.Metadata.TotalCalls,
		&a.Metadata.InputTokens, &a.Metadata.OutputTokens, &analyzedAt, &createdAt)
	if err != nil {
		return types.Analysis{}, err
	}
	a.PromptType = types.PromptType(promptType)
	a.Metadata.AnalyzedAt = parseTime(analyzedAt)
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}
