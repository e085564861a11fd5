package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
//
// Errors local to a single tool call (safety violations, query failures,
// bad arguments, storage trouble) are always converted to tool-result
// content so the reasoning step can adapt; only a reasoning-service failure
// terminates a conversation turn abnormally.
var (
	// Tool-local failures, surfaced as tool-result content.
	ErrSafetyViolation    = fmt.Errorf("only SELECT queries are allowed")
	ErrQueryExecution     = fmt.Errorf("query execution failed")
	ErrToolArgument       = fmt.Errorf("invalid tool arguments")
	ErrToolNotFound       = fmt.Errorf("tool not found")
	ErrStorageUnavailable = fmt.Errorf("database unavailable")
	ErrStorage            = fmt.Errorf("database read failed")

	// Turn-fatal failures.
	ErrReasoningService = fmt.Errorf("reasoning service failed")
	ErrProviderNotFound = fmt.Errorf("reasoning provider not found")

	// Controlled termination: the loop emits a final explanatory message
	// instead of dispatching more tools. Not propagated as an error.
	ErrBudgetExceeded = fmt.Errorf("step budget exhausted")

	// Loop state machine misuse.
	ErrInvalidTransition = fmt.Errorf("invalid loop state transition")

	// Resilience sentinels used by the reasoning adapters.
	ErrRateLimit           = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid         = fmt.Errorf("authentication failed")
	ErrContextOverflow     = fmt.Errorf("context window exceeded")
	ErrProviderUnavailable = fmt.Errorf("reasoning service unavailable")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Get")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail (e.g., the offending SQL keyword)
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrContextOverflow) ||
		errors.Is(err, ErrProviderUnavailable)
}

// ErrorCode is a machine-parseable error category for logging and monitoring.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeSafetyViolation     ErrorCode = "SAFETY_VIOLATION"
	CodeQueryExecution      ErrorCode = "QUERY_EXECUTION"
	CodeToolArgument        ErrorCode = "TOOL_ARGUMENT"
	CodeToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	CodeStorageUnavailable  ErrorCode = "STORAGE_UNAVAILABLE"
	CodeStorage             ErrorCode = "STORAGE_ERROR"
	CodeReasoningService    ErrorCode = "REASONING_SERVICE"
	CodeProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"
	CodeBudgetExceeded      ErrorCode = "BUDGET_EXCEEDED"
	CodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeContextOverflow     ErrorCode = "CONTEXT_OVERFLOW"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrSafetyViolation:     CodeSafetyViolation,
	ErrQueryExecution:      CodeQueryExecution,
	ErrToolArgument:        CodeToolArgument,
	ErrToolNotFound:        CodeToolNotFound,
	ErrStorageUnavailable:  CodeStorageUnavailable,
	ErrStorage:             CodeStorage,
	ErrReasoningService:    CodeReasoningService,
	ErrProviderNotFound:    CodeProviderNotFound,
	ErrBudgetExceeded:      CodeBudgetExceeded,
	ErrInvalidTransition:   CodeInvalidTransition,
	ErrRateLimit:           CodeRateLimit,
	ErrAuthInvalid:         CodeAuthInvalid,
	ErrContextOverflow:     CodeContextOverflow,
	ErrProviderUnavailable: CodeProviderUnavailable,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	// Walk the error chain with errors.Is.
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
