package store

import "fmt"

// migrate creates all tables if they don't exist.
func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                 TEXT PRIMARY KEY,
			created_at         TEXT NOT NULL,
			reference_date     TEXT NOT NULL,
			text_hash          TEXT NOT NULL,
			text_bytes         INTEGER NOT NULL,
			anchor_count       INTEGER NOT NULL DEFAULT 0,
			conflict_count     INTEGER NOT NULL DEFAULT 0,
			overall_confidence REAL NOT NULL DEFAULT 0,
			processing_ms      INTEGER NOT NULL DEFAULT 0,
			result_json        TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS anchors (
			id               TEXT PRIMARY KEY,
			run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tier             TEXT NOT NULL,
			date             TEXT,
			category         TEXT NOT NULL,
			rule             TEXT NOT NULL,
			raw_text         TEXT NOT NULL,
			merged_count     INTEGER NOT NULL DEFAULT 1,
			hierarchy_score  REAL NOT NULL DEFAULT 0,
			final_confidence REAL NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS conflicts (
			id       TEXT PRIMARY KEY,
			run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			type     TEXT NOT NULL,
			severity REAL NOT NULL DEFAULT 0,
			anchor_a TEXT NOT NULL,
			anchor_b TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_anchors_run ON anchors(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conflicts_run ON conflicts(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
