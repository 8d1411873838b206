package annotations

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/text/unicode/norm"
)

// TableFilename is the fixed name of the review table inside a case root.
const TableFilename = "ProstaSeg_annotations.csv"

const lockFilename = ".ProstaSeg_annotations.csv.lock"

// ErrMalformedTable reports a review table that exists but cannot be parsed.
var ErrMalformedTable = errors.New("malformed annotations table")

var header = []string{"patientID", "comment"}

// Row is one recorded review.
type Row struct {
	PatientID string
	Comment   string
}

// Table manages the annotations CSV for one case root.
type Table struct {
	path     string
	lockPath string
}

// NewTable returns a Table rooted at the given case directory.
func NewTable(root string) *Table {
	return &Table{
		path:     filepath.Join(root, TableFilename),
		lockPath: filepath.Join(root, lockFilename),
	}
}

// Path returns the table's file location.
func (t *Table) Path() string {
	return t.path
}

// Reviewed returns the set of patient IDs already recorded. A missing or
// empty table means no prior annotations.
func (t *Table) Reviewed() (map[string]struct{}, error) {
	rows, err := t.Rows()
	if err != nil {
		return nil, err
	}
	reviewed := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		reviewed[row.PatientID] = struct{}{}
	}
	return reviewed, nil
}

// Rows returns every recorded row in file order. Columns are located by
// header name, so tables written with a different column order still parse.
func (t *Table) Rows() ([]Row, error) {
	file, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open annotations table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformedTable, err)
	}

	patientCol := -1
	commentCol := -1
	for i, name := range head {
		switch name {
		case "patientID":
			patientCol = i
		case "comment":
			commentCol = i
		}
	}
	if patientCol < 0 {
		return nil, fmt.Errorf("%w: missing patientID column", ErrMalformedTable)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}
		row := Row{PatientID: record[patientCol]}
		if commentCol >= 0 && commentCol < len(record) {
			row.Comment = record[commentCol]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Append records one review row, creating the table with its header on first
// write. The comment is normalized to Unicode NFC.
func (t *Table) Append(row Row) error {
	lock := flock.New(t.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock annotations table: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	needHeader := true
	if info, err := os.Stat(t.path); err == nil && info.Size() > 0 {
		needHeader = false
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat annotations table: %w", err)
	}

	file, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open annotations table: %w", err)
	}

	writer := csv.NewWriter(file)
	if needHeader {
		if err := writer.Write(header); err != nil {
			_ = file.Close()
			return fmt.Errorf("write annotations header: %w", err)
		}
	}
	record := []string{row.PatientID, norm.NFC.String(row.Comment)}
	if err := writer.Write(record); err != nil {
		_ = file.Close()
		return fmt.Errorf("write annotations row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush annotations table: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close annotations table: %w", err)
	}
	return nil
}
