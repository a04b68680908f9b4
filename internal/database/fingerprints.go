package database

import (
	"database/sql"
	"encoding/json"
	"errors"
)

// RecordFingerprint performs the atomic check-and-upsert for a topic key.
// A conditional insert decides duplicate status: if the insert lands, the
// topic is new; if the key already exists, the sighting is recorded on the
// existing row and the topic is a duplicate.
func (db *DB) RecordFingerprint(key, title, link, sourceLabel string) (bool, error) {
	sources, err := json.Marshal([]string{sourceLabel})
	if err != nil {
		return false, err
	}

	result, err := db.conn.Exec(
		`INSERT INTO topic_fingerprints (key, sources, last_title, last_link)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		key, string(sources), title, link,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		// Fresh insert: first sighting of this topic.
		return false, nil
	}

	// Repeat sighting: touch last_seen_at and merge the source label.
	existing, err := db.GetFingerprint(key)
	if err != nil || existing == nil {
		return true, err
	}
	labels := existing.Sources
	found := false
	for _, l := range labels {
		if l == sourceLabel {
			found = true
			break
		}
	}
	if !found {
		labels = append(labels, sourceLabel)
	}
	merged, err := json.Marshal(labels)
	if err != nil {
		return true, err
	}

	_, err = db.conn.Exec(
		`UPDATE topic_fingerprints
		SET last_seen_at = datetime('now'), sources = ?, last_title = ?, last_link = ?
		WHERE key = ?`,
		string(merged), title, link, key,
	)
	return true, err
}

// GetFingerprint returns the fingerprint record for a key, or nil when unseen.
func (db *DB) GetFingerprint(key string) (*TopicFingerprint, error) {
	row := db.conn.QueryRow(
		`SELECT key, first_seen_at, last_seen_at, sources, last_title, last_link
		FROM topic_fingerprints WHERE key = ?`, key,
	)

	var fp TopicFingerprint
	var sources *string
	err := row.Scan(&fp.Key, &fp.FirstSeenAt, &fp.LastSeenAt, &sources, &fp.LastTitle, &fp.LastLink)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sources != nil {
		json.Unmarshal([]byte(*sources), &fp.Sources)
	}
	return &fp, nil
}
