package worklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nki-radiology/SegmentationReview/internal/cases"
)

const sessionColumns = "id, root, case_count, all_checked, created_at, updated_at"

// CreateSession replaces any previous session with a fresh one for the
// given root and discovered cases. Cases are stored in discovery order
// with status pending.
func (s *Store) CreateSession(ctx context.Context, root string, discovered []cases.Case) (*Session, error) {
	ctx = ensureContext(ctx)
	timestamp := nowTimestamp()
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return nil, fmt.Errorf("clear previous sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, root, case_count, all_checked, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		id, root, len(discovered), timestamp, timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	for position, item := range discovered {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cases (
                session_id, position, patient_id, case_dir, image_path,
                segmentation_path, status, comment, missing_prostate
            ) VALUES (?, ?, ?, ?, ?, ?, ?, '', 0)`,
			id, position, item.PatientID, item.Dir, item.ImagePath,
			nullableString(item.SegmentationPath), StatusPending,
		); err != nil {
			return nil, fmt.Errorf("insert case %s: %w", item.PatientID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession fetches a session by ID. It returns nil when the session
// does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ActiveSession returns the most recent session, or nil when no
// directory has been selected yet.
func (s *Store) ActiveSession(ctx context.Context) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT 1`)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return session, nil
}

// SetAllChecked flags or unflags the session as fully reviewed.
// Stepping back from the terminal state clears it.
func (s *Store) SetAllChecked(ctx context.Context, id string, checked bool) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET all_checked = ?, updated_at = ? WHERE id = ?`,
		boolToInt(checked), nowTimestamp(), id)
	if err != nil {
		return fmt.Errorf("set all checked: %w", err)
	}
	return requireOneRow(res, "session "+id)
}

// Stats aggregates case counts by status for the session.
func (s *Store) Stats(ctx context.Context, sessionID string) (Stats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM cases WHERE session_id = ? GROUP BY status`, sessionID)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusCurrent:
			stats.Current = count
		case StatusCompleted:
			stats.Completed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

func (s *Store) touchSession(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, nowTimestamp(), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result, subject string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s not found", subject)
	}
	return nil
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id         string
		root       string
		caseCount  int
		allChecked int
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &root, &caseCount, &allChecked, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	session := &Session{
		ID:         id,
		Root:       root,
		CaseCount:  caseCount,
		AllChecked: allChecked != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}
