package worklist

import "time"

// Status represents the review state of a worklist case.
type Status string

const (
	// StatusPending marks a case that has not been opened yet, or was
	// stepped away from without saving.
	StatusPending Status = "pending"
	// StatusCurrent marks the case under review. At most one case per
	// session holds it.
	StatusCurrent Status = "current"
	// StatusCompleted marks a case whose annotation row was recorded.
	StatusCompleted Status = "completed"
)

var statusSet = map[Status]struct{}{
	StatusPending:   {},
	StatusCurrent:   {},
	StatusCompleted: {},
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Session is one directory selection and the review pass over it.
type Session struct {
	ID         string
	Root       string
	CaseCount  int
	AllChecked bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Case is one discovered patient folder inside a session. SavedAt and
// RecordedAt journal the two halves of save-and-next: the segmentation
// write and the annotation append. A row with SavedAt set but
// RecordedAt unset marks an interrupted save.
type Case struct {
	SessionID        string
	Position         int
	PatientID        string
	Dir              string
	ImagePath        string
	SegmentationPath string
	Status           Status
	Comment          string
	MissingProstate  bool
	SavedAt          *time.Time
	RecordedAt       *time.Time
}

// Stats aggregates per-status case counts for one session.
type Stats struct {
	Total     int
	Pending   int
	Current   int
	Completed int
}
