package errors

import "fmt"

// ErrorCode represents a stable, machine-readable pipeline error code.
type ErrorCode string

const (
	ErrExtractionEmpty             ErrorCode = "EXTRACTION_EMPTY"              // 422
	ErrExtractionFallback          ErrorCode = "EXTRACTION_FALLBACK"           // 422
	ErrInvalidSourceURL            ErrorCode = "INVALID_SOURCE_URL"            // 400
	ErrSourceExtractionFailed      ErrorCode = "SOURCE_EXTRACTION_FAILED"      // 502
	ErrTranscriptionFailed         ErrorCode = "TRANSCRIPTION_FAILED"          // 502
	ErrConnectTimeout              ErrorCode = "CONNECT_TIMEOUT"               // 504
	ErrRequestTimeout              ErrorCode = "REQUEST_TIMEOUT"               // 504
	ErrBadRequest                  ErrorCode = "BAD_REQUEST"                   // 400
	ErrUnauthorized                ErrorCode = "UNAUTHORIZED"                  // 401
	ErrForbidden                   ErrorCode = "FORBIDDEN"                     // 403
	ErrNotFound                    ErrorCode = "NOT_FOUND"                     // 404
	ErrRateLimited                 ErrorCode = "RATE_LIMIT_EXCEEDED"           // 429
	ErrTranscriptExtractionFailed  ErrorCode = "TRANSCRIPT_EXTRACTION_FAILED"  // 422
	ErrSaveFailed                  ErrorCode = "SAVE_FAILED"                   // 500
	ErrInternal                    ErrorCode = "INTERNAL"                      // 500
)

// PipelineError is a structured error with a stable code, an HTTP-ish status
// and a short human-readable message. Raw upstream error bodies never travel
// in Message; they stay in Cause for diagnostics.
type PipelineError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if an error is a PipelineError with the given code.
func Is(err error, code ErrorCode) bool {
	if pErr, ok := err.(*PipelineError); ok {
		return pErr.Code == code
	}
	return false
}

// From returns err as a *PipelineError, wrapping foreign errors as INTERNAL.
func From(err error) *PipelineError {
	if err == nil {
		return nil
	}
	if pErr, ok := err.(*PipelineError); ok {
		return pErr
	}
	return &PipelineError{
		Code:    ErrInternal,
		Status:  500,
		Message: err.Error(),
		Cause:   err,
	}
}

// NewExtractionEmpty reports document extraction that produced no text.
func NewExtractionEmpty() *PipelineError {
	return &PipelineError{
		Code:    ErrExtractionEmpty,
		Status:  422,
		Message: "text extraction returned empty content",
	}
}

// NewExtractionFallback reports that extracted "text" was actually an AI
// refusal message and must not be treated as content.
func NewExtractionFallback() *PipelineError {
	return &PipelineError{
		Code:    ErrExtractionFallback,
		Status:  422,
		Message: "extraction failed - received fallback message instead of extracted text",
	}
}

// NewInvalidSourceURL reports a source URL that failed format validation.
func NewInvalidSourceURL(url string) *PipelineError {
	return &PipelineError{
		Code:    ErrInvalidSourceURL,
		Status:  400,
		Message: "invalid video URL",
		Details: map[string]any{"url": url},
	}
}

// NewSourceExtractionFailed wraps a failure anywhere in the URL
// extraction-and-transcription chain, preserving the cause.
func NewSourceExtractionFailed(cause error) *PipelineError {
	msg := "source extraction failed"
	if cause != nil {
		msg = fmt.Sprintf("source extraction failed: %s", cause.Error())
	}
	return &PipelineError{
		Code:    ErrSourceExtractionFailed,
		Status:  502,
		Message: msg,
		Cause:   cause,
	}
}

// NewTranscriptionFailed reports exhausted or non-retryable transcription,
// carrying the last underlying error's message.
func NewTranscriptionFailed(cause error) *PipelineError {
	msg := "transcription failed: unknown"
	if cause != nil {
		msg = fmt.Sprintf("transcription failed: %s", cause.Error())
	}
	return &PipelineError{
		Code:    ErrTranscriptionFailed,
		Status:  502,
		Message: msg,
		Cause:   cause,
	}
}

// NewConnectTimeout reports a connect-phase timeout against a remote service.
func NewConnectTimeout(cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrConnectTimeout,
		Status:  504,
		Message: "connection timeout: unable to reach remote AI servers",
		Cause:   cause,
	}
}

// NewRequestTimeout reports a response-phase timeout or abort.
func NewRequestTimeout(cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrRequestTimeout,
		Status:  504,
		Message: "request timeout: the AI processing took too long",
		Cause:   cause,
	}
}

// NewBadRequest creates a 400 error for malformed payloads.
func NewBadRequest(msg string) *PipelineError {
	if msg == "" {
		msg = "invalid request format or missing required parameters"
	}
	return &PipelineError{Code: ErrBadRequest, Status: 400, Message: msg}
}

// NewUnauthorized creates a 401 error for credential or config issues.
func NewUnauthorized(msg string) *PipelineError {
	if msg == "" {
		msg = "authentication failed: the API key is missing, invalid, or expired"
	}
	return &PipelineError{Code: ErrUnauthorized, Status: 401, Message: msg}
}

// NewForbidden creates a 403 error for permission or plan limitations.
func NewForbidden(msg string) *PipelineError {
	if msg == "" {
		msg = "permission denied: the API key lacks permission for this action"
	}
	return &PipelineError{Code: ErrForbidden, Status: 403, Message: msg}
}

// NewNotFound creates a 404 error for a bad session, agent or note reference.
func NewNotFound(msg string) *PipelineError {
	if msg == "" {
		msg = "resource not found"
	}
	return &PipelineError{Code: ErrNotFound, Status: 404, Message: msg}
}

// NewRateLimited creates a 429 error, carrying any Retry-After hint the
// remote supplied.
func NewRateLimited(msg, retryAfter string) *PipelineError {
	if msg == "" {
		msg = "rate limit exceeded: too many requests"
	}
	e := &PipelineError{Code: ErrRateLimited, Status: 429, Message: msg}
	if retryAfter != "" {
		e.Details = map[string]any{"retry_after": retryAfter}
	}
	return e
}

// NewClientError creates a generic 4xx error tagged with the numeric code.
func NewClientError(status int, msg string) *PipelineError {
	if msg == "" {
		msg = fmt.Sprintf("client error: %d", status)
	}
	return &PipelineError{
		Code:    ErrorCode(fmt.Sprintf("CLIENT_ERROR_%d", status)),
		Status:  status,
		Message: msg,
	}
}

// NewServerError creates a 5xx error; 500 and 503 differ in message only.
func NewServerError(status int, msg string) *PipelineError {
	if msg == "" {
		switch status {
		case 500:
			msg = "internal server error on the remote AI service"
		case 503:
			msg = "service unavailable: the remote AI service is temporarily unable to handle the request"
		default:
			msg = fmt.Sprintf("server error: %d", status)
		}
	}
	return &PipelineError{
		Code:    ErrorCode(fmt.Sprintf("SERVER_ERROR_%d", status)),
		Status:  status,
		Message: msg,
	}
}

// NewTranscriptExtractionFailed is the normalizer-level hard stop for PDF
// notes whose transcript is empty or fallback-contaminated.
func NewTranscriptExtractionFailed() *PipelineError {
	return &PipelineError{
		Code:    ErrTranscriptExtractionFailed,
		Status:  422,
		Message: "PDF extraction failed: no text content extracted from PDF",
	}
}

// NewSaveFailed reports a store write failure after a successful run.
func NewSaveFailed(cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrSaveFailed,
		Status:  500,
		Message: "failed to save note",
		Cause:   cause,
	}
}
