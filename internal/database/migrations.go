package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS source_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    link TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    summary TEXT,
    body TEXT,
    source TEXT,
    category TEXT,
    captured_at TEXT DEFAULT (datetime('now')),
    status TEXT NOT NULL DEFAULT 'new',
    error TEXT,
    fingerprint TEXT,
    gen_title TEXT,
    gen_summary TEXT,
    gen_body_html TEXT,
    gen_keywords TEXT,
    gen_similarity REAL,
    gen_strict INTEGER,
    gen_word_count INTEGER
);

CREATE TABLE IF NOT EXISTS topic_fingerprints (
    key TEXT PRIMARY KEY,
    first_seen_at TEXT DEFAULT (datetime('now')),
    last_seen_at TEXT DEFAULT (datetime('now')),
    sources TEXT,
    last_title TEXT,
    last_link TEXT
);

CREATE TABLE IF NOT EXISTS image_assets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    public_id TEXT UNIQUE NOT NULL,
    url TEXT NOT NULL,
    tags TEXT,
    category TEXT,
    priority INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS drafts (
    id TEXT PRIMARY KEY,
    item_id INTEGER UNIQUE NOT NULL REFERENCES source_items(id),
    title TEXT NOT NULL,
    slug TEXT NOT NULL,
    summary TEXT,
    body_html TEXT NOT NULL,
    category TEXT,
    tags TEXT,
    image_public_id TEXT,
    image_url TEXT,
    image_tier INTEGER,
    image_alt TEXT,
    meta_title TEXT,
    meta_description TEXT,
    geo_mode TEXT DEFAULT 'global',
    geo_areas TEXT,
    source_url TEXT,
    source_label TEXT,
    similarity REAL,
    originality_strict INTEGER DEFAULT 1,
    word_count INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_source_items_status ON source_items(status);
CREATE INDEX IF NOT EXISTS idx_source_items_fingerprint ON source_items(fingerprint);
CREATE INDEX IF NOT EXISTS idx_image_assets_category ON image_assets(category);
CREATE INDEX IF NOT EXISTS idx_drafts_item ON drafts(item_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
