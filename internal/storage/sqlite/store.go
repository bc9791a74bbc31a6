// Package sqlite persists an audit trail of evaluation invocations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"voicebot-evaluator/internal/evaluator"
)

// Store is a SQLite implementation of evaluator.Recorder.
type Store struct {
	db *sql.DB
}

var _ evaluator.Recorder = (*Store)(nil)

// New opens (or creates) the audit database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			target TEXT NOT NULL,
			input_text TEXT NOT NULL,
			output_text TEXT,
			status TEXT NOT NULL,
			error_message TEXT,
			duration_ms INTEGER,
			api_call_duration_ms INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_request ON evaluations(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_created ON evaluations(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// RecordEvaluation inserts one audit row.
func (s *Store) RecordEvaluation(ctx context.Context, rec *evaluator.EvaluationRecord) error {
	query := `INSERT INTO evaluations
		(id, request_id, target, input_text, output_text, status, error_message,
		 duration_ms, api_call_duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		rec.RequestID,
		rec.Target,
		rec.InputText,
		rec.OutputText,
		rec.Status,
		rec.ErrorMessage,
		rec.DurationMS,
		rec.APICallDurationMS,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}

	return nil
}

// EvaluationRow is one persisted audit entry.
type EvaluationRow struct {
	ID                string
	RequestID         string
	Target            string
	InputText         string
	OutputText        string
	Status            string
	ErrorMessage      string
	DurationMS        int64
	APICallDurationMS int64
	CreatedAt         time.Time
}

// ListRecent returns the most recent audit rows, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*EvaluationRow, error) {
	query := `SELECT id, request_id, target, input_text, output_text, status,
		error_message, duration_ms, api_call_duration_ms, created_at
		FROM evaluations ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var out []*EvaluationRow
	for rows.Next() {
		var row EvaluationRow
		var output, errMsg sql.NullString
		if err := rows.Scan(&row.ID, &row.RequestID, &row.Target, &row.InputText,
			&output, &row.Status, &errMsg, &row.DurationMS,
			&row.APICallDurationMS, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		row.OutputText = output.String
		row.ErrorMessage = errMsg.String
		out = append(out, &row)
	}

	return out, rows.Err()
}

// GetByRequestID returns the audit row for a request ID, or nil when absent.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*EvaluationRow, error) {
	query := `SELECT id, request_id, target, input_text, output_text, status,
		error_message, duration_ms, api_call_duration_ms, created_at
		FROM evaluations WHERE request_id = ?`

	var row EvaluationRow
	var output, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, query, requestID).Scan(
		&row.ID, &row.RequestID, &row.Target, &row.InputText,
		&output, &row.Status, &errMsg, &row.DurationMS,
		&row.APICallDurationMS, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation: %w", err)
	}
	row.OutputText = output.String
	row.ErrorMessage = errMsg.String

	return &row, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
