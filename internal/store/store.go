// Package store persists analysis runs to SQLite for history queries and
// auditability. Each run keeps a summary row, its extracted anchors, its
// conflicts, and the full result JSON.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jinhwalab/chartline/internal/pipeline"
	"github.com/jinhwalab/chartline/internal/rank"
)

// RunSummary is one row of the run history listing.
type RunSummary struct {
	ID                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	ReferenceDate     time.Time `json:"reference_date"`
	TextBytes         int       `json:"text_bytes"`
	AnchorCount       int       `json:"anchor_count"`
	ConflictCount     int       `json:"conflict_count"`
	OverallConfidence float64   `json:"overall_confidence"`
	ProcessingMS      int64     `json:"processing_ms"`
}

// Run is a stored run with its full result payload.
type Run struct {
	RunSummary
	TextHash string           `json:"text_hash"`
	Result   *pipeline.Result `json:"result"`
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and applies
// the schema. Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult records a completed analysis run. The source text itself is not
// stored, only its hash and length.
func (s *Store) SaveResult(ctx context.Context, text string, res *pipeline.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	anchorCount := countAnchors(res)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, reference_date, text_hash, text_bytes,
			anchor_count, conflict_count, overall_confidence, processing_ms, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID,
		time.Now().UTC().Format(time.RFC3339),
		res.ReferenceDate.Format("2006-01-02"),
		hashText(text),
		len(text),
		anchorCount,
		len(res.Conflicts),
		res.OverallConfidence,
		res.ProcessingMS,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	if err := insertTier(ctx, tx, res.ID, "primary", res.Primary); err != nil {
		return err
	}
	if err := insertTier(ctx, tx, res.ID, "secondary", res.Secondary); err != nil {
		return err
	}

	for _, c := range res.Conflicts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conflicts (id, run_id, type, severity, anchor_a, anchor_b)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, res.ID, string(c.Type), c.Severity, c.A.ID, c.B.ID,
		)
		if err != nil {
			return fmt.Errorf("inserting conflict: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, reference_date, text_bytes,
			anchor_count, conflict_count, overall_confidence, processing_ms
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var created, refDay string
		if err := rows.Scan(&r.ID, &created, &refDay, &r.TextBytes,
			&r.AnchorCount, &r.ConflictCount, &r.OverallConfidence, &r.ProcessingMS); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		r.ReferenceDate, _ = time.Parse("2006-01-02", refDay)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads one run with its full result payload.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, reference_date, text_hash, text_bytes,
			anchor_count, conflict_count, overall_confidence, processing_ms, result_json
		FROM runs WHERE id = ?`, id)

	var r Run
	var created, refDay, payload string
	err := row.Scan(&r.ID, &created, &refDay, &r.TextHash, &r.TextBytes,
		&r.AnchorCount, &r.ConflictCount, &r.OverallConfidence, &r.ProcessingMS, &payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, created)
	r.ReferenceDate, _ = time.Parse("2006-01-02", refDay)

	var res pipeline.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("decoding run %s result: %w", id, err)
	}
	r.Result = &res
	return &r, nil
}

func insertTier(ctx context.Context, tx *sql.Tx, runID, tier string, merged []rank.MergedAnchor) error {
	for _, m := range merged {
		a := m.Representative
		date := ""
		if a.Valid() {
			date = a.Date.Format("2006-01-02")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anchors (id, run_id, tier, date, category, rule, raw_text,
				merged_count, hierarchy_score, final_confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, runID, tier, date, string(a.Category), a.Rule, a.RawText,
			m.MergedCount, a.HierarchyScore, a.FinalConfidence,
		)
		if err != nil {
			return fmt.Errorf("inserting anchor: %w", err)
		}
	}
	return nil
}

func countAnchors(res *pipeline.Result) int {
	n := 0
	for _, m := range res.Primary {
		n += m.MergedCount
	}
	for _, m := range res.Secondary {
		n += m.MergedCount
	}
	return n
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
