package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Tags are stored as a JSON array; the LIKE filters below match the quoted
// token inside that array.

// InsertAsset adds or replaces a catalog entry keyed by public ID.
func (db *DB) InsertAsset(publicID, url string, tags []string, category string, priority int) (int64, error) {
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, fmt.Errorf("marshaling tags: %w", err)
	}
	result, err := db.conn.Exec(
		`INSERT INTO image_assets (public_id, url, tags, category, priority)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(public_id) DO UPDATE SET
			url = excluded.url, tags = excluded.tags,
			category = excluded.category, priority = excluded.priority`,
		publicID, url, string(tagJSON), category, priority,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// AssetsMatchingTags returns up to limit assets carrying at least one of the
// given tags, highest priority and newest first.
func (db *DB) AssetsMatchingTags(tags []string, limit int) ([]ImageAsset, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	or := sq.Or{}
	for _, tag := range tags {
		or = append(or, sq.Like{"tags": `%"` + tag + `"%`})
	}

	query := sq.Select("id", "public_id", "url", "tags", "category", "priority", "created_at").
		From("image_assets").
		Where(or).
		OrderBy("priority DESC", "created_at DESC").
		Limit(uint64(limit))

	return db.queryAssets(query)
}

// AssetsByCategory returns assets in a category, highest priority first.
func (db *DB) AssetsByCategory(category string, limit int) ([]ImageAsset, error) {
	query := sq.Select("id", "public_id", "url", "tags", "category", "priority", "created_at").
		From("image_assets").
		Where(sq.Eq{"category": category}).
		OrderBy("priority DESC", "created_at DESC").
		Limit(uint64(limit))

	return db.queryAssets(query)
}

// AssetsWithTag returns assets carrying one exact tag, highest priority first.
func (db *DB) AssetsWithTag(tag string, limit int) ([]ImageAsset, error) {
	query := sq.Select("id", "public_id", "url", "tags", "category", "priority", "created_at").
		From("image_assets").
		Where(sq.Like{"tags": `%"` + tag + `"%`}).
		OrderBy("priority DESC", "created_at DESC").
		Limit(uint64(limit))

	return db.queryAssets(query)
}

// ListAssets returns a page of the catalog, newest first.
func (db *DB) ListAssets(limit, offset int) ([]ImageAsset, error) {
	query := sq.Select("id", "public_id", "url", "tags", "category", "priority", "created_at").
		From("image_assets").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	return db.queryAssets(query)
}

func (db *DB) queryAssets(query sq.SelectBuilder) ([]ImageAsset, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building asset query: %w", err)
	}

	rows, err := db.conn.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssets(rows)
}

func scanAssets(rows *sql.Rows) ([]ImageAsset, error) {
	var assets []ImageAsset
	for rows.Next() {
		var a ImageAsset
		var tags *string
		if err := rows.Scan(&a.ID, &a.PublicID, &a.URL, &tags, &a.Category, &a.Priority, &a.CreatedAt); err != nil {
			return nil, err
		}
		if tags != nil {
			json.Unmarshal([]byte(*tags), &a.Tags)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
