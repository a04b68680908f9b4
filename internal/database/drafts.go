package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// InsertDraft creates a draft record. Each source item can produce at most
// one draft; re-inserting for the same item returns the existing draft ID.
func (db *DB) InsertDraft(d *Draft) (string, error) {
	if existing, err := db.GetDraftForItem(d.ItemID); err != nil {
		return "", err
	} else if existing != nil {
		return existing.ID, nil
	}

	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}

	tags, err := json.Marshal(d.Tags)
	if err != nil {
		return "", fmt.Errorf("marshaling tags: %w", err)
	}
	areas, err := json.Marshal(d.GeoAreas)
	if err != nil {
		return "", fmt.Errorf("marshaling geo areas: %w", err)
	}
	strict := 0
	if d.Strict {
		strict = 1
	}

	_, err = db.conn.Exec(
		`INSERT INTO drafts (id, item_id, title, slug, summary, body_html, category,
		tags, image_public_id, image_url, image_tier, image_alt,
		meta_title, meta_description, geo_mode, geo_areas,
		source_url, source_label, similarity, originality_strict, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.ItemID, d.Title, d.Slug, d.Summary, d.BodyHTML, d.Category,
		string(tags), d.ImagePublicID, d.ImageURL, d.ImageTier, d.ImageAlt,
		d.MetaTitle, d.MetaDescription, d.GeoMode, string(areas),
		d.SourceURL, d.SourceLabel, d.Similarity, strict, d.WordCount,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetDraftForItem returns the draft produced from a source item, or nil.
func (db *DB) GetDraftForItem(itemID int64) (*Draft, error) {
	rows, err := db.conn.Query(draftSelect+" WHERE item_id = ?", itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts, err := scanDrafts(rows)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, nil
	}
	return &drafts[0], nil
}

// ListDrafts returns a page of drafts, newest first.
func (db *DB) ListDrafts(limit, offset int) ([]Draft, error) {
	rows, err := db.conn.Query(
		draftSelect+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrafts(rows)
}

const draftSelect = `SELECT id, item_id, title, slug, summary, body_html, category,
	tags, image_public_id, image_url, image_tier, image_alt,
	meta_title, meta_description, geo_mode, geo_areas,
	source_url, source_label, similarity, originality_strict, word_count, created_at
	FROM drafts`

func scanDrafts(rows *sql.Rows) ([]Draft, error) {
	var drafts []Draft
	for rows.Next() {
		var d Draft
		var tags, areas *string
		var strict int
		err := rows.Scan(
			&d.ID, &d.ItemID, &d.Title, &d.Slug, &d.Summary, &d.BodyHTML, &d.Category,
			&tags, &d.ImagePublicID, &d.ImageURL, &d.ImageTier, &d.ImageAlt,
			&d.MetaTitle, &d.MetaDescription, &d.GeoMode, &areas,
			&d.SourceURL, &d.SourceLabel, &d.Similarity, &strict, &d.WordCount, &d.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if tags != nil {
			json.Unmarshal([]byte(*tags), &d.Tags)
		}
		if areas != nil {
			json.Unmarshal([]byte(*areas), &d.GeoAreas)
		}
		d.Strict = strict == 1
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
