package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeTransientBackend = "TRANSIENT_BACKEND"
	ErrCodePipelineFailed   = "PIPELINE_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors: rejected immediately, never retried.
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrInvalidTopK       = NewDomainError(ErrCodeValidation, "top_k must be a positive integer")
	ErrTopKTooLarge      = NewDomainError(ErrCodeValidation, "top_k exceeds configured maximum")
	ErrInvalidSearchType = NewDomainError(ErrCodeValidation, "invalid search type")
	ErrUnknownFilterKey  = NewDomainError(ErrCodeValidation, "unknown filter key")
	ErrInvalidFilterOp   = NewDomainError(ErrCodeValidation, "invalid filter operator")
)

// Pipeline errors
var (
	// ErrAllRetrievalFailed is raised only when both primary retrieval
	// paths fail within one query; the sole condition that fails the
	// whole request.
	ErrAllRetrievalFailed = NewDomainError(ErrCodePipelineFailed, "all primary retrieval paths failed")
)

// Not found errors
var (
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// TransientBackend wraps a backend failure that is retryable at the
// component boundary and degrades the pipeline stage on exhaustion
// instead of failing the query.
func TransientBackend(backend string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeTransientBackend, backend+" unavailable", err)
}
