package domain

import "fmt"

// MalformedDateError is the one fatal condition of the temporal stage: a row
// whose year is missing or non-numeric. Downstream aggregation assumes every
// record carries at least a year, so the run aborts instead of silently
// dropping the row.
type MalformedDateError struct {
	Row    int    // zero-based index into the table
	ID     string // event ID, for log correlation
	Reason string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date in row %d (%s): %s", e.Row, e.ID, e.Reason)
}

// PrecursorNotRunError indicates a stage was invoked on a table that is
// missing a derived column an earlier stage should have produced. This is a
// caller ordering bug, never a data problem.
type PrecursorNotRunError struct {
	Stage   string // the stage that refused to run
	Missing string // the precursor it requires
}

func (e *PrecursorNotRunError) Error() string {
	return fmt.Sprintf("stage %q requires %q to have run first", e.Stage, e.Missing)
}
