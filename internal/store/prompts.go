package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/types"
)

// Prompt operations. The single invariant everything here protects: at most
// one prompt per type has is_active=1 at any moment. Every mutation that can
// change activation runs deactivate-then-activate inside one transaction.

const insertPromptSQL = `
INSERT INTO prompts (id, prompt_type, version, content, settings_json, created_by, created_at_utc, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, 1)`

const deactivateTypeSQL = `UPDATE prompts SET is_active = 0 WHERE prompt_type = ? AND is_active = 1`

const selectPromptColumns = `id, prompt_type, version, content, settings_json, created_by, created_at_utc, is_active`

// CreatePrompt inserts the next version for the given type and activates it.
// Version = 1 + max existing version of that type; versions are never reused,
// even after deletions.
func (s *Store) CreatePrompt(content string, settings types.PromptSettings, createdBy string, promptType types.PromptType) (types.Prompt, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return types.Prompt{}, apperr.Persistence("create prompt", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return types.Prompt{}, apperr.Persistence("create prompt", err)
	}
	defer tx.Rollback()

	var maxVersion int
	err = tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM prompts WHERE prompt_type = ?`, string(promptType)).Scan(&maxVersion)
	if err != nil {
		return types.Prompt{}, apperr.Persistence("create prompt", err)
	}

	p := types.Prompt{
		ID:        uuid.New().String(),
		Version:   maxVersion + 1,
		Type:      promptType,
		Content:   content,
		Settings:  settings,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}

	if _, err := tx.Exec(deactivateTypeSQL, string(promptType)); err != nil {
		return types.Prompt{}, apperr.Persistence("create prompt", err)
	}
	_, err = tx.Exec(insertPromptSQL, p.ID, string(p.Type), p.Version, p.Content, string(settingsJSON), p.CreatedBy, formatTime(p.CreatedAt))
	if err != nil {
		return types.Prompt{}, apperr.Persistence("create prompt", err)
	}
	if err := tx.Commit(); err != nil {
		return types.Prompt{}, apperr.Persistence("create prompt", err)
	}
	return p, nil
}

// RestorePrompt re-activates an older version, deactivating whichever prompt
// of the same type is currently active.
func (s *Store) RestorePrompt(id string) (types.Prompt, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return types.Prompt{}, apperr.Persistence("restore prompt", err)
	}
	defer tx.Rollback()

	p, err := scanPrompt(tx.QueryRow(`SELECT `+selectPromptColumns+` FROM prompts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Prompt{}, apperr.NotFound("prompt", id)
	}
	if err != nil {
		return types.Prompt{}, apperr.Persistence("restore prompt", err)
	}

	if _, err := tx.Exec(deactivateTypeSQL, string(p.Type)); err != nil {
		return types.Prompt{}, apperr.Persistence("restore prompt", err)
	}
	if _, err := tx.Exec(`UPDATE prompts SET is_active = 1 WHERE id = ?`, id); err != nil {
		return types.Prompt{}, apperr.Persistence("restore prompt", err)
	}
	if err := tx.Commit(); err != nil {
		return types.Prompt{}, apperr.Persistence("restore prompt", err)
	}
	p.IsActive = true
	return p, nil
}

// DeletePrompt removes a version. Deleting the active prompt promotes the
// highest remaining version of that type, if any remain.
func (s *Store) DeletePrompt(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Persistence("delete prompt", err)
	}
	defer tx.Rollback()

	var promptType string
	var wasActive bool
	err = tx.QueryRow(`SELECT prompt_type, is_active FROM prompts WHERE id = ?`, id).Scan(&promptType, &wasActive)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("prompt", id)
	}
	if err != nil {
		return apperr.Persistence("delete prompt", err)
	}

	if _, err := tx.Exec(`DELETE FROM prompts WHERE id = ?`, id); err != nil {
		return apperr.Persistence("delete prompt", err)
	}
	if wasActive {
		_, err = tx.Exec(`UPDATE prompts SET is_active = 1
			WHERE id = (SELECT id FROM prompts WHERE prompt_type = ? ORDER BY version DESC LIMIT 1)`, promptType)
		if err != nil {
			return apperr.Persistence("delete prompt", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence("delete prompt", err)
	}
	return nil
}

// GetActivePrompt returns the single active prompt of a type, or
// NoActivePromptError.
func (s *Store) GetActivePrompt(promptType types.PromptType) (types.Prompt, error) {
	row := s.db.QueryRow(`SELECT `+selectPromptColumns+` FROM prompts WHERE prompt_type = ? AND is_active = 1`, string(promptType))
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Prompt{}, &apperr.NoActivePromptError{PromptType: string(promptType)}
	}
	if err != nil {
		return types.Prompt{}, apperr.Persistence("get active prompt", err)
	}
	return p, nil
}

// GetPrompt returns one prompt by id.
func (s *Store) GetPrompt(id string) (types.Prompt, error) {
	row := s.db.QueryRow(`SELECT `+selectPromptColumns+` FROM prompts WHERE id = ?`, id)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Prompt{}, apperr.NotFound("prompt", id)
	}
	if err != nil {
		return types.Prompt{}, apperr.Persistence("get prompt", err)
	}
	return p, nil
}

// ListPromptHistory lists versions newest-first, optionally filtered by type.
func (s *Store) ListPromptHistory(promptType types.PromptType) ([]types.Prompt, error) {
	query := `SELECT ` + selectPromptColumns + ` FROM prompts`
	args := []any{}
	if promptType != "" {
		query += ` WHERE prompt_type = ?`
		args = append(args, string(promptType))
	}
	query += ` ORDER BY prompt_type, version DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Persistence("list prompts", err)
	}
	defer rows.Close()

	var out []types.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, apperr.Persistence("list prompts", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (types.Prompt, error) {
	var p types.Prompt
	var promptType, settingsJSON, createdAt string
	if err := row.Scan(&p.ID, &promptType, &p.Version, &p.Content, &settingsJSON, &p.CreatedBy, &createdAt, &p.IsActive); err != nil {
		return types.Prompt{}, err
	}
	p.Type = types.PromptType(promptType)
	p.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(settingsJSON), &p.Settings); err != nil {
		return types.Prompt{}, err
	}
	return p, nil
}
