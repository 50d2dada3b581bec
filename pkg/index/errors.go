package index

import (
	"fmt"
	"io/fs"
)

// NotFoundError is returned when an index file does not exist. It is fatal for a run.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("index file not found: %s", e.Path)
}

// Unwrap lets callers test with errors.Is(err, fs.ErrNotExist).
func (e *NotFoundError) Unwrap() error { return fs.ErrNotExist }

// MalformedRecordError describes an index line or reference token that was skipped.
type MalformedRecordError struct {
	Line   int
	Record string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed index record at line %d (%q): %s", e.Line, e.Record, e.Reason)
}
