// Package apperror carries coded errors from the routing core to the
// API layer. Codes map onto HTTP statuses; venue and operation say where
// a quote failed.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// AppError is a coded error. The cause stays reachable through Unwrap
// but is never serialized into responses.
type AppError struct {
	Code       Code
	Message    string
	StatusCode int
	Context    string
	Venue      string
	Operation  string
	TraceID    string
	Timestamp  time.Time
	cause      error
	pc         uintptr
}

func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)

	var attrs []string
	if e.Operation != "" {
		attrs = append(attrs, "op="+e.Operation)
	}
	if e.Venue != "" {
		attrs = append(attrs, "venue="+e.Venue)
	}
	if e.Context != "" {
		attrs = append(attrs, "context="+e.Context)
	}
	if len(attrs) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(attrs, " "))
		sb.WriteString("]")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches on code, so errors.Is(err, New(CodeX)) tests for CodeX
// anywhere in the chain.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithTraceID sets the trace id echoed back to API clients.
func (e *AppError) WithTraceID(traceID string) *AppError {
	e.TraceID = traceID
	return e
}

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	Venue     string `json:"venue,omitempty"`
	Operation string `json:"operation,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Response is the envelope written by the API: {"error": {...}}.
type Response struct {
	Error ErrorBody `json:"error"`
}

func (e *AppError) ToResponse() Response {
	return Response{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Context:   e.Context,
		Venue:     e.Venue,
		Operation: e.Operation,
		TraceID:   e.TraceID,
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}}
}

// LogArgs returns key/value pairs for the structured logger, including
// the cause and the call site that created the error.
func (e *AppError) LogArgs() []any {
	args := []any{"code", e.Code, "status", e.StatusCode}
	if e.Operation != "" {
		args = append(args, "operation", e.Operation)
	}
	if e.Venue != "" {
		args = append(args, "venue", e.Venue)
	}
	if e.Context != "" {
		args = append(args, "context", e.Context)
	}
	if e.cause != nil {
		args = append(args, "cause", e.cause.Error())
	}
	if at := e.origin(); at != "" {
		args = append(args, "at", at)
	}
	return args
}

func (e *AppError) origin() string {
	if e.pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{e.pc}).Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}

// caller records the first frame outside this package.
func caller() uintptr {
	var pcs [8]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "/internal/apperror.") {
			return frame.PC
		}
		if !more {
			return 0
		}
	}
}

// New creates an AppError with the code's default message and status.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:       code,
		Message:    messages[code],
		StatusCode: getDefaultStatusCode(code),
		Timestamp:  time.Now(),
		pc:         caller(),
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

type Option func(*AppError)

func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

// WithContext adds free-form detail, e.g. the field that failed to parse.
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

// WithVenue records the venue id involved in the failure.
func WithVenue(venue string) Option {
	return func(e *AppError) {
		e.Venue = venue
	}
}

// WithOperation records the operation that failed (e.g. "open.quote").
func WithOperation(op string) Option {
	return func(e *AppError) {
		e.Operation = op
	}
}

func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// NotFound creates a 404 error.
func NotFound(code Code, context string) *AppError {
	err := New(code, WithContext(context))
	err.StatusCode = http.StatusNotFound
	return err
}

// Internal creates a 500 error wrapping cause.
func Internal(code Code, context string, cause error) *AppError {
	err := New(code, WithContext(context), WithCause(cause))
	err.StatusCode = http.StatusInternalServerError
	return err
}

// Wrap returns err as an AppError. An existing AppError keeps its code and
// is copied, gaining context if it had none; anything else becomes an
// Internal error with code.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		out := *appErr
		if context != "" && out.Context == "" {
			out.Context = context
		}
		return &out
	}
	return Internal(code, context, err)
}

// Annotate returns err as an AppError carrying venue and operation. An
// existing AppError keeps its code; the result is a copy with the missing
// fields filled, so err itself is never modified.
func Annotate(err error, code Code, venue, op string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		out := *appErr
		if out.Venue == "" {
			out.Venue = venue
		}
		if out.Operation == "" {
			out.Operation = op
		}
		return &out
	}

	return New(code, WithCause(err), WithVenue(venue), WithOperation(op))
}

// Classify returns err as an AppError of code carrying venue and
// operation. An AppError of a different code, e.g. CONTRACT_CALL_FAILED
// from a venue adapter, becomes the cause and stays reachable through
// errors.Is.
func Classify(err error, code Code, venue, op string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == code {
		return Annotate(err, code, venue, op)
	}
	return New(code, WithCause(err), WithVenue(venue), WithOperation(op))
}

// HTTPStatus returns the status code carried by err, or 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetCode extracts the error code from an error
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// getDefaultStatusCode determines the HTTP status code based on the error code
func getDefaultStatusCode(code Code) int {
	switch {
	// Not Found errors
	case strings.Contains(string(code), "NOT_FOUND"):
		return http.StatusNotFound

	// Validation errors
	case strings.Contains(string(code), "INVALID"),
		code == CodeRequiredField,
		code == CodeValidationError:
		return http.StatusBadRequest

	// Pre-trade checks the caller can fix by changing the request
	case code == CodeInsufficientLiquidity,
		code == CodeCalculationInvariant:
		return http.StatusUnprocessableEntity

	// Upstream venues and RPC
	case strings.Contains(string(code), "QUOTE_FAILED"),
		strings.Contains(string(code), "RPC"),
		strings.HasPrefix(string(code), "HTTP_"),
		code == CodeContractCallFailed,
		code == CodeCircuitOpen:
		return http.StatusBadGateway

	// Connection errors
	case strings.Contains(string(code), "CONNECTION"),
		strings.Contains(string(code), "TIMEOUT"):
		return http.StatusServiceUnavailable

	// Rate limit
	case code == CodeRateLimitExceeded:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
