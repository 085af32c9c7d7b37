package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/types"
)

const upsertContactSQL = `
INSERT INTO contacts_cache (contact_id, first_name, last_name, email, phone, tags_json, source, custom_fields_json, last_synced_utc)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(contact_id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	email = excluded.email,
	phone = excluded.phone,
	tags_json = excluded.tags_json,
	source = excluded.source,
	custom_fields_json = excluded.custom_fields_json,
	last_synced_utc = excluded.last_synced_utc`

// UpsertContact refreshes the read-through cache entry for a contact.
// Idempotent; keyed by upstream contact id.
func (s *Store) UpsertContact(c types.Contact) error {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return apperr.Persistence("upsert contact", err)
	}
	fields, err := json.Marshal(c.CustomFields)
	if err != nil {
		return apperr.Persistence("upsert contact", err)
	}
	_, err = s.db.Exec(upsertContactSQL,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone,
		string(tags), c.Source, string(fields), formatTime(time.Now()))
	if err != nil {
		return apperr.Persistence("upsert contact", err)
	}
	return nil
}

// CachedContact returns the cache entry for a contact id, or NotFoundError.
func (s *Store) CachedContact(contactID string) (types.Contact, error) {
	row := s.db.QueryRow(`SELECT contact_id, first_name, last_name, email, phone, tags_json, source, custom_fields_json, last_synced_utc
		FROM contacts_cache WHERE contact_id = ?`, contactID)
	var c types.Contact
	var tagsJSON, fieldsJSON, synced string
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &tagsJSON, &c.Source, &fieldsJSON, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Contact{}, apperr.NotFound("contact", contactID)
	}
	if err != nil {
		return types.Contact{}, apperr.Persistence("get cached contact", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return types.Contact{}, apperr.Persistence("get cached contact", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &c.CustomFields); err != nil {
		return types.Contact{}, apperr.Persistence("get cached contact", err)
	}
	c.LastSynced = parseTime(synced)
	return c, nil
}
