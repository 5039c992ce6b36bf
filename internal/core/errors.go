// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error carries a stable code, a short message and an optional cause.
// Errors compare equal under errors.Is when their codes match, so a
// wrapped error still matches the sentinel it was built from.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// WrapError returns a copy of base carrying cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

var (
	// Archive errors
	ErrArchiveOpen   = &Error{Code: "ARCHIVE_OPEN", Message: "cannot open archive"}
	ErrArchiveClosed = &Error{Code: "ARCHIVE_CLOSED", Message: "archive handle closed"}
	ErrUnsafePath    = &Error{Code: "UNSAFE_PATH", Message: "entry path escapes archive root"}
	ErrEntryRead     = &Error{Code: "ENTRY_READ", Message: "cannot read archive entry"}

	// Workspace and output errors
	ErrWorkspaceWrite = &Error{Code: "WORKSPACE_WRITE", Message: "cannot write workspace"}
	ErrPackFailed     = &Error{Code: "PACK_FAILED", Message: "cannot write output archive"}
	ErrUploadFailed   = &Error{Code: "UPLOAD_FAILED", Message: "cannot publish output archive"}

	// Job errors
	ErrJobNotFound = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}

	// Codec errors
	ErrCodecFailed = &Error{Code: "CODEC_FAILED", Message: "image re-encode failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
