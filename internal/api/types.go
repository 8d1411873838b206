package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ReviewStatus describes the review session in a transport-friendly
// format.
type ReviewStatus struct {
	Active     bool      `json:"active"`
	SessionID  string    `json:"sessionId,omitempty"`
	Root       string    `json:"root,omitempty"`
	Position   int       `json:"position"`
	Total      int       `json:"total"`
	PatientID  string    `json:"patientId,omitempty"`
	StatusLine string    `json:"statusLine"`
	AllChecked bool      `json:"allChecked"`
	NodesBound bool      `json:"nodesBound"`
	Stats      CaseStats `json:"stats"`
	StartedAt  string    `json:"startedAt,omitempty"`
}

// CaseStats aggregates per-status case counts.
type CaseStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Current   int `json:"current"`
	Completed int `json:"completed"`
}

// Case describes one worklist row.
type Case struct {
	Position         int    `json:"position"`
	PatientID        string `json:"patientId"`
	Dir              string `json:"dir"`
	ImagePath        string `json:"imagePath"`
	SegmentationPath string `json:"segmentationPath,omitempty"`
	Status           string `json:"status"`
	Comment          string `json:"comment,omitempty"`
	MissingProstate  bool   `json:"missingProstate"`
	SavedAt          string `json:"savedAt,omitempty"`
	RecordedAt       string `json:"recordedAt,omitempty"`
}

// PreflightCheck mirrors one startup check result.
type PreflightCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool             `json:"running"`
	PID            int              `json:"pid"`
	WorklistDBPath string           `json:"worklistDbPath"`
	LockFilePath   string           `json:"lockFilePath"`
	Review         ReviewStatus     `json:"review"`
	Preflight      []PreflightCheck `json:"preflight"`
}

// SelectRequest asks the daemon to start a review over a directory. An
// empty directory falls back to the configured default.
type SelectRequest struct {
	Directory string `json:"directory"`
}

// CommentRequest sets the draft comment of the current case.
type CommentRequest struct {
	Comment string `json:"comment"`
}

// CaseListResponse wraps the worklist rows of the active session.
type CaseListResponse struct {
	Cases []Case `json:"cases"`
}

// LogTailResponse carries the most recent daemon log lines.
type LogTailResponse struct {
	Lines []string `json:"lines"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
