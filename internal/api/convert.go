package api

import (
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/preflight"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

// FromReviewStatus converts a session snapshot to its API representation.
func FromReviewStatus(status review.Status) ReviewStatus {
	return ReviewStatus{
		Active:     status.Active,
		SessionID:  status.SessionID,
		Root:       status.Root,
		Position:   status.Position,
		Total:      status.Total,
		PatientID:  status.PatientID,
		StatusLine: status.StatusLine,
		AllChecked: status.AllChecked,
		NodesBound: status.NodesBound,
		Stats: CaseStats{
			Total:     status.Stats.Total,
			Pending:   status.Stats.Pending,
			Current:   status.Stats.Current,
			Completed: status.Stats.Completed,
		},
		StartedAt: FormatTime(status.StartedAt),
	}
}

// FromCase converts a worklist record to its API representation.
func FromCase(row *worklist.Case) Case {
	if row == nil {
		return Case{}
	}
	dto := Case{
		Position:         row.Position,
		PatientID:        row.PatientID,
		Dir:              row.Dir,
		ImagePath:        row.ImagePath,
		SegmentationPath: row.SegmentationPath,
		Status:           string(row.Status),
		Comment:          row.Comment,
		MissingProstate:  row.MissingProstate,
	}
	if row.SavedAt != nil {
		dto.SavedAt = FormatTime(*row.SavedAt)
	}
	if row.RecordedAt != nil {
		dto.RecordedAt = FormatTime(*row.RecordedAt)
	}
	return dto
}

// FromCases converts a slice of worklist records into API DTOs.
func FromCases(rows []*worklist.Case) []Case {
	if len(rows) == 0 {
		return nil
	}
	out := make([]Case, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromCase(row))
	}
	return out
}

// FromPreflight converts check results into API DTOs.
func FromPreflight(results []preflight.Result) []PreflightCheck {
	if len(results) == 0 {
		return nil
	}
	out := make([]PreflightCheck, 0, len(results))
	for _, result := range results {
		out = append(out, PreflightCheck{
			Name:   result.Name,
			Passed: result.Passed,
			Detail: result.Detail,
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
