package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/population"
)

// SQLiteRunStore implements RunStore on a SQLite database at
// <root>/.ash/ash.db.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	ashDir string
	dbPath string
}

var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore opens or creates the run database under root.
func NewSQLiteRunStore(root string) (*SQLiteRunStore, error) {
	ashDir := LocalAshPath(root)
	if err := os.MkdirAll(ashDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", constants.DataDirName, err)
	}
	dbPath := filepath.Join(ashDir, constants.DatabaseFileName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, ashDir: ashDir, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun stores a run with its full history and final population in one
// transaction. Saving an existing ID fails.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if len(rec.History) == 0 || len(rec.Final) == 0 {
		return fmt.Errorf("run %s: history and final population are required", rec.ID)
	}

	codewords, err := json.Marshal(rec.Codewords)
	if err != nil {
		return fmt.Errorf("failed to marshal codewords: %w", err)
	}
	codes, err := json.Marshal(nonNil(rec.Codes))
	if err != nil {
		return fmt.Errorf("failed to marshal codes: %w", err)
	}

	var chi sql.NullFloat64
	var dof, bins sql.NullInt64
	var pValue sql.NullFloat64
	if rec.Fit != nil {
		chi = sql.NullFloat64{Float64: rec.Fit.Statistic, Valid: true}
		dof = sql.NullInt64{Int64: int64(rec.Fit.DOF), Valid: true}
		pValue = sql.NullFloat64{Float64: rec.Fit.PValue, Valid: true}
		bins = sql.NullInt64{Int64: int64(rec.Fit.Bins), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, seed, dim, agents, ticks, noise_prob, workers,
			codewords, codes, flips, duration_ns,
			mean_weight, variance, chi_square, dof, p_value, bins
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(time.RFC3339Nano), strconv.FormatUint(rec.Seed, 10),
		rec.Params.Dim, rec.Params.Agents, rec.Params.Ticks, rec.Params.NoiseProb, rec.Params.Workers,
		string(codewords), string(codes), rec.Flips, int64(rec.Duration),
		rec.Mean, rec.Variance, chi, dof, pValue, bins,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}

	occStmt, err := tx.PrepareContext(ctx, `INSERT INTO occupancy (run_id, tick, counts) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare occupancy insert: %w", err)
	}
	defer occStmt.Close()
	for tick, row := range rec.History {
		counts, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal tick %d: %w", tick, err)
		}
		if _, err := occStmt.ExecContext(ctx, rec.ID, tick, string(counts)); err != nil {
			return fmt.Errorf("failed to insert tick %d: %w", tick, err)
		}
	}

	agentStmt, err := tx.PrepareContext(ctx, `INSERT INTO agents (run_id, idx, state) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare agent insert: %w", err)
	}
	defer agentStmt.Close()
	for i, state := range rec.Final {
		if _, err := agentStmt.ExecContext(ctx, rec.ID, i, state); err != nil {
			return fmt.Errorf("failed to insert agent %d: %w", i, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, created_at, seed, dim, agents, ticks, noise_prob, workers,
	codewords, codes, flips, duration_ns, mean_weight, variance, chi_square, dof, p_value, bins`

// GetRun returns the run with the given ID or unique ID prefix.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, full)
	return scanRun(row)
}

// ListRuns returns runs newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	return runs, rows.Err()
}

// LoadHistory rebuilds the occupancy history of a run.
func (s *SQLiteRunStore) LoadHistory(ctx context.Context, id string) (*occupancy.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	var dim, agents int
	if err := s.db.QueryRowContext(ctx, `SELECT dim, agents FROM runs WHERE id = ?`, full).Scan(&dim, &agents); err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", full, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT counts FROM occupancy WHERE run_id = ? ORDER BY tick`, full)
	if err != nil {
		return nil, fmt.Errorf("failed to query occupancy: %w", err)
	}
	defer rows.Close()

	var matrix [][]int
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan occupancy row: %w", err)
		}
		var counts []int
		if err := json.Unmarshal([]byte(raw), &counts); err != nil {
			return nil, fmt.Errorf("failed to parse occupancy row %d: %w", len(matrix), err)
		}
		matrix = append(matrix, counts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return occupancy.FromMatrix(dim, agents, matrix)
}

// LoadPopulation rebuilds the final population of a run.
func (s *SQLiteRunStore) LoadPopulation(ctx context.Context, id string) (*population.Population, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT state FROM agents WHERE run_id = ? ORDER BY idx`, full)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return population.FromStrings(states)
}

// DeleteRun removes a run and, through cascading foreign keys, its history
// and population.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	full, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, full); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", full, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// resolveID expands a unique prefix to a full run ID.
func (s *SQLiteRunStore) resolveID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("run ID is required")
	}
	var exact string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE id = ?`, id).Scan(&exact)
	if err == nil {
		return exact, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(id)+"%")
	if err != nil {
		return "", fmt.Errorf("failed to look up run %s: %w", id, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		rec              RunRecord
		createdAt, seed  string
		codewords, codes string
		durationNS       int64
		chi, pValue      sql.NullFloat64
		dof, bins        sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &createdAt, &seed,
		&rec.Params.Dim, &rec.Params.Agents, &rec.Params.Ticks, &rec.Params.NoiseProb, &rec.Params.Workers,
		&codewords, &codes, &rec.Flips, &durationNS,
		&rec.Mean, &rec.Variance, &chi, &dof, &pValue, &bins,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("run %s: bad created_at: %w", rec.ID, err)
	}
	if rec.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("run %s: bad seed: %w", rec.ID, err)
	}
	rec.Params.Seed = &rec.Seed
	if err := json.Unmarshal([]byte(codewords), &rec.Codewords); err != nil {
		return nil, fmt.Errorf("run %s: bad codewords: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(codes), &rec.Codes); err != nil {
		return nil, fmt.Errorf("run %s: bad codes: %w", rec.ID, err)
	}
	rec.Duration = time.Duration(durationNS)
	if chi.Valid {
		rec.Fit = &occupancy.Fit{
			Statistic: chi.Float64,
			DOF:       int(dof.Int64),
			PValue:    pValue.Float64,
			Bins:      int(bins.Int64),
		}
	}
	return &rec, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func nonNil(codes []int) []int {
	if codes == nil {
		return []int{}
	}
	return codes
}
