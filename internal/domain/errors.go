package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by tools and the orchestration endpoint.
// Each kind maps onto an HTTP-equivalent status via StatusOf.
var (
	// ErrInvalidArguments indicates tool input failed its own shape check.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrMissingRequiredInput indicates a required identifier or non-empty list is absent.
	ErrMissingRequiredInput = errors.New("missing required input")

	// ErrNotFound indicates a referenced entity does not exist in persistence.
	ErrNotFound = errors.New("not found")

	// ErrSchemaRepairExhausted indicates model output never validated after the repair round.
	ErrSchemaRepairExhausted = errors.New("schema repair exhausted")

	// ErrModelBackend wraps any failure reported by the inference backend.
	ErrModelBackend = errors.New("model backend error")

	// ErrPersistence wraps failures reported by the relational store.
	ErrPersistence = errors.New("persistence error")

	// ErrSummarizationFailed is returned for any failure after an analysis record was created.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrUnknownTool indicates the model requested a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidTransition indicates an analysis record is no longer running.
	ErrInvalidTransition = errors.New("invalid analysis transition")

	// ErrNotConfigured indicates a required backend has no credentials.
	ErrNotConfigured = errors.New("not configured")
)

// UpstreamError is a non-2xx answer from an external API. Its status is
// relayed to the caller unchanged.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s error %d", e.Service, e.Status)
}

// ToolError is a structured tool failure. Kind is one of the sentinels above,
// Cause is the underlying error (may be nil) and Details is passed through to
// the caller verbatim.
type ToolError struct {
	Kind    error
	Message string
	Details any
	Cause   error
}

// NewToolError builds a ToolError with a formatted message.
func NewToolError(kind error, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches caller-visible details.
func (e *ToolError) WithDetails(details any) *ToolError {
	e.Details = details
	return e
}

// WithCause records the underlying failure.
func (e *ToolError) WithCause(cause error) *ToolError {
	e.Cause = cause
	return e
}

func (e *ToolError) Error() string {
	return e.Message
}

func (e *ToolError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// ErrorDetails exposes Details to DetailsOf.
func (e *ToolError) ErrorDetails() any {
	return e.Details
}

type detailer interface {
	ErrorDetails() any
}

// DetailsOf returns the first non-nil details payload found in err's chain.
func DetailsOf(err error) any {
	for err != nil {
		if d, ok := err.(detailer); ok {
			if v := d.ErrorDetails(); v != nil {
				return v
			}
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if v := DetailsOf(inner); v != nil {
					return v
				}
			}
			return nil
		default:
			return nil
		}
	}
	return nil
}

// StatusOf maps an error onto the HTTP-equivalent status used in responses.
func StatusOf(err error) int {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &upstream):
		return upstream.Status
	case errors.Is(err, ErrSummarizationFailed):
		return http.StatusInternalServerError
	case errors.Is(err, ErrMissingRequiredInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArguments), errors.Is(err, ErrSchemaRepairExhausted):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
