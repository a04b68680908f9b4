package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertItem inserts a source item. Returns the ID on success, 0 if the raw
// link is already known.
func (db *DB) InsertItem(link, title string, summary, body, source, category *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO source_items (link, title, summary, body, source, category)
		VALUES (?, ?, ?, ?, ?, ?)`,
		link, title, summary, body, source, category,
	)
	if err != nil {
		// Duplicate link constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetItem returns a single source item by ID.
func (db *DB) GetItem(id int64) (*SourceItem, error) {
	rows, err := db.conn.Query(itemSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("item %d not found", id)
	}
	return &items[0], nil
}

// GetItemsByStatus returns a bounded page of items in the given status,
// oldest first.
func (db *DB) GetItemsByStatus(status string, limit int) ([]SourceItem, error) {
	rows, err := db.conn.Query(
		itemSelect+" WHERE status = ? ORDER BY captured_at ASC, id ASC LIMIT ?",
		status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// TransitionItem moves an item from one status to another. Returns false when
// the item is no longer in the expected status, meaning another run owns it.
func (db *DB) TransitionItem(id int64, from, to string) (bool, error) {
	result, err := db.conn.Exec(
		"UPDATE source_items SET status = ? WHERE id = ? AND status = ?",
		to, id, from,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetItemError records a failure reason and moves the item to failed.
func (db *DB) SetItemError(id int64, reason string) error {
	_, err := db.conn.Exec(
		"UPDATE source_items SET status = ?, error = ? WHERE id = ?",
		StatusFailed, reason, id,
	)
	return err
}

// SetItemFingerprint stores the computed fingerprint key on the item.
func (db *DB) SetItemFingerprint(id int64, key string) error {
	_, err := db.conn.Exec(
		"UPDATE source_items SET fingerprint = ? WHERE id = ?", key, id,
	)
	return err
}

// SetItemGenerated stores the rewrite output on the item and clears any
// previous error.
func (db *DB) SetItemGenerated(id int64, gen *GeneratedPayload) error {
	keywords, err := json.Marshal(gen.Keywords)
	if err != nil {
		return fmt.Errorf("marshaling keywords: %w", err)
	}
	strict := 0
	if gen.Strict {
		strict = 1
	}
	_, err = db.conn.Exec(
		`UPDATE source_items SET gen_title = ?, gen_summary = ?, gen_body_html = ?,
		gen_keywords = ?, gen_similarity = ?, gen_strict = ?, gen_word_count = ?, error = NULL
		WHERE id = ?`,
		gen.Title, gen.Summary, gen.BodyHTML, string(keywords),
		gen.Similarity, strict, gen.WordCount, id,
	)
	return err
}

const itemSelect = `SELECT id, link, title, summary, body, source, category,
	captured_at, status, error, fingerprint,
	gen_title, gen_summary, gen_body_html, gen_keywords,
	gen_similarity, gen_strict, gen_word_count
	FROM source_items`

func scanItems(rows *sql.Rows) ([]SourceItem, error) {
	var items []SourceItem
	for rows.Next() {
		var it SourceItem
		var genTitle, genSummary, genBodyHTML, genKeywords *string
		var genSimilarity *float64
		var genStrict, genWordCount *int

		err := rows.Scan(
			&it.ID, &it.Link, &it.Title, &it.Summary, &it.Body, &it.Source,
			&it.Category, &it.CapturedAt, &it.Status, &it.Error, &it.Fingerprint,
			&genTitle, &genSummary, &genBodyHTML, &genKeywords,
			&genSimilarity, &genStrict, &genWordCount,
		)
		if err != nil {
			return nil, err
		}

		if genTitle != nil && genBodyHTML != nil {
			gen := &GeneratedPayload{
				Title:    *genTitle,
				BodyHTML: *genBodyHTML,
			}
			if genSummary != nil {
				gen.Summary = *genSummary
			}
			if genKeywords != nil {
				json.Unmarshal([]byte(*genKeywords), &gen.Keywords)
			}
			if genSimilarity != nil {
				gen.Similarity = *genSimilarity
			}
			if genStrict != nil {
				gen.Strict = *genStrict == 1
			}
			if genWordCount != nil {
				gen.WordCount = *genWordCount
			}
			it.Generated = gen
		}

		items = append(items, it)
	}
	return items, rows.Err()
}

// GetStats returns aggregate statistics across all tables.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{ByStatus: make(map[string]int)}

	rows, err := db.conn.Query("SELECT status, COUNT(*) FROM source_items GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.TotalItems += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM topic_fingerprints").Scan(&stats.Fingerprints); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM image_assets").Scan(&stats.Assets); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM drafts").Scan(&stats.Drafts); err != nil {
		return nil, err
	}

	return stats, nil
}
