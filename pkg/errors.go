package xcpindex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEndOfIndex is returned by batch readers when the trailer frame is reached
var ErrEndOfIndex = errors.New("end of index")

// errLockHeld signals a repair lock held by another process (retryable)
var errLockHeld = errors.New("index repair lock held by another process")

// UsageError reports an invalid option combination or argument
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewUsageError creates a UsageError with a formatted message
func NewUsageError(format string, args ...interface{}) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// CorruptIndexError reports undecodable index framing or entry data.
// Offset is the byte position within the file where decoding failed.
type CorruptIndexError struct {
	Path   string
	Offset int64
	Reason string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt index %s at offset %d: %s", e.Path, e.Offset, e.Reason)
}

// corruptf creates a CorruptIndexError with a formatted reason
func corruptf(path string, offset int64, format string, args ...interface{}) *CorruptIndexError {
	return &CorruptIndexError{Path: path, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// PartialReplaceError reports a replace sequence that failed midway,
// describing which renames completed so the operator can recover by hand.
type PartialReplaceError struct {
	Completed []string // renames that succeeded, in order
	Failed    string   // the rename that failed
	Err       error
}

func (e *PartialReplaceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "index replace failed at %q: %v", e.Failed, e.Err)
	if len(e.Completed) > 0 {
		fmt.Fprintf(&b, " (completed: %s)", strings.Join(e.Completed, ", "))
	}
	return b.String()
}

func (e *PartialReplaceError) Unwrap() error {
	return e.Err
}
