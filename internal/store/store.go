package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createPromptsTableSQL = `
CREATE TABLE IF NOT EXISTS prompts (
	id TEXT PRIMARY KEY,
	prompt_type TEXT NOT NULL,
	version INTEGER NOT NULL,
	content TEXT NOT NULL,
	settings_json TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_at_utc TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 0,
	UNIQUE (prompt_type, version)
)`

const createAnalysesTableSQL = `
CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL,
	contact_name TEXT NOT NULL,
	prompt_id TEXT NOT NULL,
	prompt_version INTEGER NOT NULL,
	prompt_type TEXT NOT NULL,
	analysis_text TEXT NOT NULL,
	total_messages INTEGER NOT NULL,
	total_calls INTEGER NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	analyzed_at_utc TEXT NOT NULL,
	created_at_utc TEXT NOT NULL
)`

const createTranscriptionsTableSQL = `
CREATE TABLE IF NOT EXISTS analysis_transcriptions (
	analysis_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	text TEXT NOT NULL,
	duration REAL NOT NULL,
	language TEXT NOT NULL,
	timestamp_utc TEXT NOT NULL,
	PRIMARY KEY (analysis_id, message_id)
)`

const createContactsCacheTableSQL = `
CREATE TABLE IF NOT EXISTS contacts_cache (
	contact_id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	tags_json TEXT NOT NULL DEFAULT '[]',
	source TEXT NOT NULL DEFAULT '',
	custom_fields_json TEXT NOT NULL DEFAULT '{}',
	last_synced_utc TEXT NOT NULL
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_prompts_type_active ON prompts(prompt_type, is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_contact_created ON analyses(contact_id, created_at_utc)`,
	`CREATE INDEX IF NOT EXISTS idx_transcriptions_analysis ON analysis_transcriptions(analysis_id)`,
}

// Store is the sqlite-backed home of the only entities this system owns:
// prompts, analyses and the contact read-through cache.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		createPromptsTableSQL,
		createAnalysesTableSQL,
		createTranscriptionsTableSQL,
		createContactsCacheTableSQL,
	}
	stmts = append(stmts, createIndexesSQL...)
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
