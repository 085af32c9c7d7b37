package apperr

import (
	"errors"
	"fmt"
)

// ValidationError: the caller sent a bad request (missing field, bad enum value).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError: a referenced id does not exist in our store.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NoActivePromptError: no prompt could be resolved for the requested type.
// Treated as a request problem (400), not a server fault.
type NoActivePromptError struct {
	PromptType string
}

func (e *NoActivePromptError) Error() string {
	return fmt.Sprintf("no active prompt for type %q", e.PromptType)
}

// UpstreamError: non-2xx or transport failure from the CRM, transcription or
// LLM services. Raw upstream body is carried for diagnostics.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s upstream error: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s upstream error: status %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func Upstream(service string, status int, body string) error {
	return &UpstreamError{Service: service, StatusCode: status, Body: body}
}

func UpstreamWrap(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}

// PersistenceError: the analysis (or prompt) could not be written to the local
// store. Distinct from UpstreamError so callers can tell "computed but not
// saved" from "never computed".
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// Per-recording failure modes. Both are caught at the call site of the
// transcription step and must never abort a batch.
var (
	ErrRecordingTooLarge = errors.New("recording exceeds maximum allowed size")
	ErrUpstreamTimeout   = errors.New("upstream call timed out")
)

// IsValidation reports whether err maps to HTTP 400.
func IsValidation(err error) bool {
	var ve *ValidationError
	var np *NoActivePromptError
	return errors.As(err, &ve) || errors.As(err, &np)
}

// IsNotFound reports whether err maps to HTTP 404.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
