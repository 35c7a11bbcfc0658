package storage

import (
	"database/sql"
	"fmt"
)

// schemaVersion is bumped whenever the schema below changes shape.
const schemaVersion = 1

// schema defines every table the corpus store owns. Principles cascade from
// thinkers; arms and provenance cascade from decisions/principles so that
// deleting a thinker at import time removes its whole subtree (spec.md §3).
const schema = `
CREATE TABLE IF NOT EXISTS schema_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS thinkers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL,
	background TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS principles (
	id               TEXT PRIMARY KEY,
	thinker_id       TEXT NOT NULL REFERENCES thinkers(id) ON DELETE CASCADE,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL,
	falsification    TEXT NOT NULL,
	anti_pattern     TEXT,
	application_rule TEXT,
	default_stance   TEXT NOT NULL DEFAULT 'neutral',
	domain_tags      TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_principles_thinker ON principles(thinker_id);

CREATE VIRTUAL TABLE IF NOT EXISTS principle_fts USING fts5(
	id UNINDEXED,
	name,
	description,
	domain_tags,
	content='principles',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS principle_fts_insert AFTER INSERT ON principles BEGIN
	INSERT INTO principle_fts(rowid, id, name, description, domain_tags)
	VALUES (new.rowid, new.id, new.name, new.description, new.domain_tags);
END;

CREATE TRIGGER IF NOT EXISTS principle_fts_update AFTER UPDATE ON principles BEGIN
	INSERT INTO principle_fts(principle_fts, rowid, id, name, description, domain_tags)
	VALUES ('delete', old.rowid, old.id, old.name, old.description, old.domain_tags);
	INSERT INTO principle_fts(rowid, id, name, description, domain_tags)
	VALUES (new.rowid, new.id, new.name, new.description, new.domain_tags);
END;

CREATE TRIGGER IF NOT EXISTS principle_fts_delete AFTER DELETE ON principles BEGIN
	INSERT INTO principle_fts(principle_fts, rowid, id, name, description, domain_tags)
	VALUES ('delete', old.rowid, old.id, old.name, old.description, old.domain_tags);
END;

CREATE TABLE IF NOT EXISTS principle_embeddings (
	principle_id TEXT PRIMARY KEY REFERENCES principles(id) ON DELETE CASCADE,
	dims         INTEGER NOT NULL,
	vector       BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id                  TEXT PRIMARY KEY,
	question            TEXT NOT NULL,
	domain              TEXT,
	counsel_json        TEXT NOT NULL,
	outcome             TEXT NOT NULL DEFAULT 'pending',
	outcome_notes       TEXT,
	outcome_recorded_at TIMESTAMP,
	created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);

CREATE TABLE IF NOT EXISTS thompson_arms (
	principle_id TEXT PRIMARY KEY REFERENCES principles(id) ON DELETE CASCADE,
	alpha        REAL NOT NULL DEFAULT 1.0,
	beta         REAL NOT NULL DEFAULT 1.0,
	pulls        INTEGER NOT NULL DEFAULT 0,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS contextual_arms (
	principle_id TEXT NOT NULL REFERENCES principles(id) ON DELETE CASCADE,
	domain       TEXT NOT NULL,
	alpha        REAL NOT NULL DEFAULT 1.0,
	beta         REAL NOT NULL DEFAULT 1.0,
	pulls        INTEGER NOT NULL DEFAULT 0,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(principle_id, domain)
);

CREATE TABLE IF NOT EXISTS provenance (
	decision_id   TEXT PRIMARY KEY REFERENCES decisions(id) ON DELETE CASCADE,
	agent_pubkey  TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	previous_hash TEXT NOT NULL,
	signature     TEXT NOT NULL
);
`

// configureSQLite applies the pragma set the corpus store runs under: WAL
// journaling (readers on other connections see the last committed snapshot
// during a write), a bounded page cache, and foreign key enforcement for the cascade deletes
// thinkers/principles/decisions rely on.
func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("storage: failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("storage: initialize schema: %w", err)
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO schema_metadata (key, value) VALUES ('version', ?)`, fmt.Sprintf("%d", schemaVersion))
	if err != nil {
		return fmt.Errorf("storage: record schema version: %w", err)
	}
	return nil
}
