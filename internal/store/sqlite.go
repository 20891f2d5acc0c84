package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tardnicus/wemb/internal/models"
	_ "modernc.org/sqlite"
)

// DB is the SQLite-backed implementation of both CriteriaStore and
// ProcessedStore. A single file holds the criteria, their keywords and the
// processed-submission cache; the primary key on processed_submission is the
// only concurrency-control mechanism for the dedup race.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

var (
	_ CriteriaStore  = (*DB)(nil)
	_ ProcessedStore = (*DB)(nil)
)

// Open opens (creating if necessary) the database at path and runs schema
// initialization.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &DB{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *DB) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS submission_criterion (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_type TEXT NOT NULL,
			min_transactions INTEGER NOT NULL DEFAULT 5,
			all_required INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS keyword (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			criterion_id INTEGER NOT NULL REFERENCES submission_criterion(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_keyword_criterion ON keyword(criterion_id)`,
		`CREATE TABLE IF NOT EXISTS processed_submission (
			id TEXT PRIMARY KEY,
			date_processed TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *DB) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ListAll returns every criterion in id order. Keywords are loaded eagerly in
// one pass and grouped in memory; criteria without keyword rows come back
// with the normalized single empty keyword.
func (s *DB) ListAll(ctx context.Context) ([]models.Criterion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_type, min_transactions, all_required
		FROM submission_criterion
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	defer rows.Close()

	var criteria []models.Criterion
	index := make(map[int64]int)
	for rows.Next() {
		c, err := scanCriterion(rows)
		if err != nil {
			return nil, err
		}
		index[c.ID] = len(criteria)
		criteria = append(criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate criteria: %w", err)
	}
	if len(criteria) == 0 {
		return nil, nil
	}

	kw, err := s.db.QueryContext(ctx, `
		SELECT criterion_id, content FROM keyword ORDER BY criterion_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer kw.Close()

	for kw.Next() {
		var cid int64
		var content string
		if err := kw.Scan(&cid, &content); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		if i, ok := index[cid]; ok {
			criteria[i].Keywords = append(criteria[i].Keywords, content)
		}
	}
	if err := kw.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}

	for i := range criteria {
		criteria[i].Keywords = models.NormalizeKeywords(criteria[i].Keywords)
	}
	return criteria, nil
}

// Get returns the criterion with the given id, or ErrNotFound.
func (s *DB) Get(ctx context.Context, id int64) (models.Criterion, error) {
	var (
		c           models.Criterion
		typ         string
		allRequired int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, submission_type, min_transactions, all_required
		FROM submission_criterion
		WHERE id = ?
	`, id).Scan(&c.ID, &typ, &c.MinTransactions, &allRequired)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Criterion{}, ErrNotFound
	}
	if err != nil {
		return models.Criterion{}, fmt.Errorf("get criterion %d: %w", id, err)
	}
	c.Type = models.SubmissionType(typ)
	c.AllRequired = allRequired != 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM keyword WHERE criterion_id = ? ORDER BY id
	`, id)
	if err != nil {
		return models.Criterion{}, fmt.Errorf("get keywords for %d: %w", id, err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return models.Criterion{}, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, content)
	}
	if err := rows.Err(); err != nil {
		return models.Criterion{}, fmt.Errorf("iterate keywords: %w", err)
	}
	c.Keywords = models.NormalizeKeywords(keywords)
	return c, nil
}

// Add inserts the criterion and its keywords in one transaction and returns
// the assigned id.
func (s *DB) Add(ctx context.Context, c models.Criterion) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add criterion: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO submission_criterion (submission_type, min_transactions, all_required)
		VALUES (?, ?, ?)
	`, string(c.Type), c.MinTransactions, boolToInt(c.AllRequired))
	if err != nil {
		return 0, fmt.Errorf("insert criterion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("criterion id: %w", err)
	}

	for _, keyword := range models.NormalizeKeywords(c.Keywords) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO keyword (content, criterion_id) VALUES (?, ?)
		`, keyword, id); err != nil {
			return 0, fmt.Errorf("insert keyword %q: %w", keyword, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add criterion: %w", err)
	}
	return id, nil
}

// Delete removes the criterion and its keyword rows. The keyword rows go
// first, inside the same transaction, so a criterion is never left without
// its owned keywords partially deleted.
func (s *DB) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete criterion: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keyword WHERE criterion_id = ?`, id); err != nil {
		return fmt.Errorf("delete keywords for %d: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM submission_criterion WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete criterion %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete criterion %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete criterion: %w", err)
	}
	return nil
}

// HasProcessed reports whether the submission id is in the processed cache.
func (s *DB) HasProcessed(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM processed_submission WHERE id = ?
	`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed %s: %w", id, err)
	}
	return true, nil
}

// MarkProcessed records the submission id. The insert never overwrites an
// existing row; when the id is already present the primary key wins the race
// and ErrAlreadyProcessed is returned.
func (s *DB) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_submission (id, date_processed) VALUES (?, ?)
	`, id, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	if n == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

func scanCriterion(rows *sql.Rows) (models.Criterion, error) {
	var (
		c           models.Criterion
		typ         string
		allRequired int
	)
	if err := rows.Scan(&c.ID, &typ, &c.MinTransactions, &allRequired); err != nil {
		return models.Criterion{}, fmt.Errorf("scan criterion: %w", err)
	}
	c.Type = models.SubmissionType(typ)
	c.AllRequired = allRequired != 0
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
