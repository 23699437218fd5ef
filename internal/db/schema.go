package db

import "fmt"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	telegram_id  INTEGER NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	username     TEXT,
	is_banned    INTEGER NOT NULL DEFAULT 0,
	role         TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'admin')),
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id              INTEGER NOT NULL REFERENCES users(id),
	type                  TEXT NOT NULL CHECK (type IN ('lost', 'found')),
	category              TEXT NOT NULL,
	title                 TEXT NOT NULL,
	description           TEXT,
	location              TEXT NOT NULL,
	location_detail       TEXT,
	occurred_at           DATETIME NOT NULL,
	state                 TEXT NOT NULL DEFAULT 'active' CHECK (state IN ('active', 'claimed', 'expired', 'deleted')),
	verification_question TEXT,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS photos (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id    INTEGER NOT NULL REFERENCES items(id),
	file_id    TEXT NOT NULL,
	phash      TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id     INTEGER NOT NULL REFERENCES items(id),
	claimant_id INTEGER NOT NULL REFERENCES users(id),
	message     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS matches (
	source_item_id    INTEGER NOT NULL REFERENCES items(id),
	candidate_item_id INTEGER NOT NULL REFERENCES items(id),
	score             INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	PRIMARY KEY (source_item_id, candidate_item_id)
);

CREATE TABLE IF NOT EXISTS conversation_states (
	user_id    INTEGER PRIMARY KEY REFERENCES users(id),
	state      TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_match ON items(type, state, category, occurred_at);
CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);
CREATE INDEX IF NOT EXISTS idx_photos_item ON photos(item_id);
`

// migrations run in order after the schema. Each must be idempotent;
// append new ones at the end.
var migrations = []string{
	// At most one pending claim per (item, claimant) pair.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_pending ON claims(item_id, claimant_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_states_updated ON conversation_states(updated_at)`,
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
