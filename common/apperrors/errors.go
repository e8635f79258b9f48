package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a domain failure class. Codes are stable and matched by
// callers; messages are for humans.
type Code string

const (
	InvalidParameter           Code = "INVALID_PARAMETER"
	InvalidGitConfiguration    Code = "INVALID_GIT_CONFIGURATION"
	InvalidGitSSHConfiguration Code = "INVALID_GIT_SSH_CONFIGURATION"
	GitActionFailed            Code = "GIT_ACTION_FAILED"
	GitApplicationLimit        Code = "GIT_APPLICATION_LIMIT_ERROR"
	DuplicateBranchName        Code = "DUPLICATE_BRANCH_NAME"
	UnsupportedRemoteBranch    Code = "UNSUPPORTED_REMOTE_BRANCH_OPERATION"
	MergeBlockedRemoteChanges  Code = "MERGE_BLOCKED_REMOTE_CHANGES"
	MergeBlockedLocalChanges   Code = "MERGE_BLOCKED_LOCAL_CHANGES"
	MergeConflict              Code = "MERGE_CONFLICT"
	InvalidGitRepo             Code = "INVALID_GIT_REPO"
	TransportFailure           Code = "TRANSPORT_FAILURE"
	RecordNotFound             Code = "RECORD_NOT_FOUND"
)

// AppError is a typed domain failure carrying the attempted action and a
// human-readable cause. Raw executor or transport errors never cross the
// service boundary without being wrapped into one of these.
type AppError struct {
	Code    Code
	Action  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	switch {
	case e.Action != "" && e.Message != "":
		return fmt.Sprintf("%s: git %s failed: %s", e.Code, e.Action, e.Message)
	case e.Action != "":
		return fmt.Sprintf("%s: git %s failed", e.Code, e.Action)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return string(e.Code)
	}
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with a message
func New(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an AppError wrapping a cause
func Wrap(code Code, err error, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// ActionFailed wraps a VCS executor failure with the attempted action name
func ActionFailed(action string, err error) *AppError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &AppError{Code: GitActionFailed, Action: action, Message: msg, Err: err}
}

// Is reports whether err carries the given domain code
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf extracts the domain code from err, or empty if err is not an AppError
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HTTPStatus maps a domain code to an HTTP status for the transport layer
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case InvalidParameter, UnsupportedRemoteBranch:
		return http.StatusBadRequest
	case RecordNotFound:
		return http.StatusNotFound
	case DuplicateBranchName:
		return http.StatusConflict
	case GitApplicationLimit:
		return http.StatusForbidden
	case InvalidGitConfiguration, InvalidGitSSHConfiguration, InvalidGitRepo,
		MergeBlockedRemoteChanges, MergeBlockedLocalChanges, MergeConflict:
		return http.StatusUnprocessableEntity
	case TransportFailure, GitActionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
