package worklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const caseColumns = "session_id, position, patient_id, case_dir, image_path, segmentation_path, status, comment, missing_prostate, saved_at, recorded_at"

// SessionCases returns every case of the session in position order.
func (s *Store) SessionCases(ctx context.Context, sessionID string) ([]*Case, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var result []*Case
	for rows.Next() {
		item, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return result, nil
}

// CaseAt fetches one case by position. It returns nil when the
// position does not exist.
func (s *Store) CaseAt(ctx context.Context, sessionID string, position int) (*Case, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE session_id = ? AND position = ?`, sessionID, position)
	item, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return item, nil
}

// CurrentCase returns the case marked current, or nil when none is.
func (s *Store) CurrentCase(ctx context.Context, sessionID string) (*Case, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE session_id = ? AND status = ?`, sessionID, StatusCurrent)
	item, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current case: %w", err)
	}
	return item, nil
}

// MarkCurrent points the session cursor at the given position. The
// previous current case falls back to completed when its annotation
// was recorded, pending otherwise.
func (s *Store) MarkCurrent(ctx context.Context, sessionID string, position int) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cursor tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE cases
         SET status = CASE WHEN recorded_at IS NOT NULL THEN 'completed' ELSE 'pending' END
         WHERE session_id = ? AND status = 'current'`, sessionID); err != nil {
		return fmt.Errorf("demote current case: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE cases SET status = 'current' WHERE session_id = ? AND position = ?`,
		sessionID, position)
	if err != nil {
		return fmt.Errorf("promote case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("case %d not found in session %s", position, sessionID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, nowTimestamp(), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cursor: %w", err)
	}
	return nil
}

// SetComment stores the draft comment for one case.
func (s *Store) SetComment(ctx context.Context, sessionID string, position int, comment string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET comment = ? WHERE session_id = ? AND position = ?`,
		comment, sessionID, position)
	if err != nil {
		return fmt.Errorf("set comment: %w", err)
	}
	if err := requireOneRow(res, fmt.Sprintf("case %d", position)); err != nil {
		return err
	}
	return s.touchSession(ctx, sessionID)
}

// SetMissingProstate flags whether the case loaded without a prostate
// region.
func (s *Store) SetMissingProstate(ctx context.Context, sessionID string, position int, missing bool) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET missing_prostate = ? WHERE session_id = ? AND position = ?`,
		boolToInt(missing), sessionID, position)
	if err != nil {
		return fmt.Errorf("set advisory flag: %w", err)
	}
	return requireOneRow(res, fmt.Sprintf("case %d", position))
}

// MarkSaved journals that the segmentation file was written for the
// case. It is recorded before the annotation append so an interrupted
// save stays visible.
func (s *Store) MarkSaved(ctx context.Context, sessionID string, position int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET saved_at = ? WHERE session_id = ? AND position = ?`,
		nowTimestamp(), sessionID, position)
	if err != nil {
		return fmt.Errorf("mark saved: %w", err)
	}
	if err := requireOneRow(res, fmt.Sprintf("case %d", position)); err != nil {
		return err
	}
	return s.touchSession(ctx, sessionID)
}

// MarkRecorded journals the annotation append and completes the case.
func (s *Store) MarkRecorded(ctx context.Context, sessionID string, position int, comment string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET recorded_at = ?, comment = ?, status = ? WHERE session_id = ? AND position = ?`,
		nowTimestamp(), comment, StatusCompleted, sessionID, position)
	if err != nil {
		return fmt.Errorf("mark recorded: %w", err)
	}
	if err := requireOneRow(res, fmt.Sprintf("case %d", position)); err != nil {
		return err
	}
	return s.touchSession(ctx, sessionID)
}

func scanCase(scanner interface{ Scan(dest ...any) error }) (*Case, error) {
	var (
		sessionID       string
		position        int
		patientID       string
		caseDir         string
		imagePath       string
		segmentation    sql.NullString
		statusStr       string
		comment         string
		missingProstate int
		savedRaw        sql.NullString
		recordedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&sessionID,
		&position,
		&patientID,
		&caseDir,
		&imagePath,
		&segmentation,
		&statusStr,
		&comment,
		&missingProstate,
		&savedRaw,
		&recordedRaw,
	); err != nil {
		return nil, err
	}

	item := &Case{
		SessionID:        sessionID,
		Position:         position,
		PatientID:        patientID,
		Dir:              caseDir,
		ImagePath:        imagePath,
		SegmentationPath: segmentation.String,
		Status:           Status(statusStr),
		Comment:          comment,
		MissingProstate:  missingProstate != 0,
	}
	if savedRaw.Valid {
		if saved, err := parseTimeString(savedRaw.String); err == nil {
			item.SavedAt = &saved
		}
	}
	if recordedRaw.Valid {
		if recorded, err := parseTimeString(recordedRaw.String); err == nil {
			item.RecordedAt = &recorded
		}
	}
	return item, nil
}
