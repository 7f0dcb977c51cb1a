package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/fix"
	"github.com/lodret/concord/internal/model"
)

// ReviewSession records the outcome of one cross-document check.
type ReviewSession struct {
	ID            string
	DealFile      string
	Stage         model.Stage
	Score         int
	BlockingCount int
	WarningCount  int
	OKCount       int
	CreatedAt     time.Time
}

// SaveReviewSession persists a check result and its findings, returning the
// generated session id.
func (s *SQLiteStorage) SaveReviewSession(ctx context.Context, dealFile string, stage model.Stage, result *detect.CrossCheckResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_sessions (id, deal_file, stage, score, blocking_count, warning_count, ok_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, dealFile, string(stage), result.Summary.Score,
		result.Summary.BlockingCount, result.Summary.WarningCount, result.Summary.OKCount)
	if err != nil {
		return "", fmt.Errorf("failed to insert review session: %w", err)
	}

	for _, f := range result.Findings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_findings (session_id, finding_id, category, severity, field_path, title)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, f.ID, string(f.Category), string(f.Severity), f.FieldPath, f.Title)
		if err != nil {
			return "", fmt.Errorf("failed to insert finding %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit review session: %w", err)
	}

	return id, nil
}

// RecordAppliedFixes appends the changes from a fix pass to the session's
// audit trail.
func (s *SQLiteStorage) RecordAppliedFixes(ctx context.Context, sessionID string, changes []fix.Change) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range changes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO applied_fixes (session_id, finding_id, doc, field_path, old_value, new_value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, c.FindingID, string(c.Doc), c.Path, c.OldValue, c.NewValue)
		if err != nil {
			return fmt.Errorf("failed to insert applied fix for %s: %w", c.FindingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit applied fixes: %w", err)
	}

	return nil
}

// GetReviewSession fetches a single session by id.
func (s *SQLiteStorage) GetReviewSession(ctx context.Context, id string) (*ReviewSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, deal_file, stage, score, blocking_count, warning_count, ok_count, created_at
		FROM review_sessions WHERE id = ?`, id)

	var session ReviewSession
	var stage string
	err := row.Scan(&session.ID, &session.DealFile, &stage, &session.Score,
		&session.BlockingCount, &session.WarningCount, &session.OKCount, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session %s: %w", id, err)
	}
	session.Stage = model.Stage(stage)

	return &session, nil
}

// ListReviewSessions returns the most recent sessions, newest first.
func (s *SQLiteStorage) ListReviewSessions(ctx context.Context, limit int) ([]ReviewSession, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, deal_file, stage, score, blocking_count, warning_count, ok_count, created_at
		FROM review_sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []ReviewSession
	for rows.Next() {
		var session ReviewSession
		var stage string
		if err := rows.Scan(&session.ID, &session.DealFile, &stage, &session.Score,
			&session.BlockingCount, &session.WarningCount, &session.OKCount, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		session.Stage = model.Stage(stage)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	return sessions, nil
}
