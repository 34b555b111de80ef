// Package cerrors defines the typed error kinds shared across the crash
// report engine, replacing the original C code's in-out error_message
// pointer with ordinary Go errors that name their failure kind and, where
// relevant, a source location.
package cerrors

import "fmt"

// ParseError is a structural or lexical rejection of a textual input. It
// carries the location of the first failure; parsers never rewind past it.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// InvalidBuildIDError reports a build-id that is not lowercase hex of even
// length.
type InvalidBuildIDError struct {
	BuildID string
}

func (e *InvalidBuildIDError) Error() string {
	return fmt.Sprintf("invalid build-id %q: must be lowercase hex of even length", e.BuildID)
}

// BinaryNewerThanCoreError is the hard failure raised when the executable's
// mtime is newer than the coredump's, which would produce wrong symbols.
type BinaryNewerThanCoreError struct {
	Executable string
	Core       string
}

func (e *BinaryNewerThanCoreError) Error() string {
	return fmt.Sprintf("binary newer than core: %s is newer than %s", e.Executable, e.Core)
}

// UnwindError is a per-thread, per-step unwind failure. It is non-fatal as
// long as at least one frame survives on the thread.
type UnwindError struct {
	ThreadID  int
	StepIndex int
	Detail    string
}

func (e *UnwindError) Error() string {
	return fmt.Sprintf("unwind error: thread %d step %d: %s", e.ThreadID, e.StepIndex, e.Detail)
}

// ChecksumMismatchError rejects a distance-matrix part whose checksum does
// not match the caller's current thread array.
type ChecksumMismatchError struct {
	Want, Got uint64
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch merging distance matrix part: want %x got %x", e.Want, e.Got)
}

// OutOfRangeError is raised by dendrogram accessors indexed beyond Size or
// Size-1.
type OutOfRangeError struct {
	Index, Limit int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range (limit %d)", e.Index, e.Limit)
}

// MetricUndefined is the sentinel distance value returned when both
// operand threads of a distance metric are empty.
const MetricUndefined = -1.0
