package dynamo

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeInputEmpty           Code = "INPUT_EMPTY"
	CodePresetOutOfRange     Code = "PRESET_OUT_OF_RANGE"
	CodeDirectEngineAccess   Code = "DIRECT_ENGINE_ACCESS"
	CodeDirectStateAccess    Code = "DIRECT_STATE_ACCESS"
	CodeEngineAlreadyClaimed Code = "ENGINE_ALREADY_CLAIMED"
	CodeSealedController     Code = "SEALED_CONTROLLER"
	CodeSealedAuditTrail     Code = "SEALED_AUDIT_TRAIL"
	CodeInvalidAction        Code = "INVALID_ACTION"
	CodeForbiddenAction      Code = "FORBIDDEN_ACTION"
	CodeStateAuditMismatch   Code = "STATE_AUDIT_MISMATCH"
	CodeAuditCanonViolation  Code = "AUDIT_CANON_VIOLATION"
	CodeAuditChainBroken     Code = "AUDIT_CHAIN_BROKEN"
	CodeReplayFailure        Code = "REPLAY_FAILURE"
	CodeReplayStateMismatch  Code = "REPLAY_STATE_MISMATCH"
	CodeInvalidConfig        Code = "INVALID_CONFIG"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeUnknown              Code = "UNKNOWN"
)

// Category groups codes by how callers are expected to react.
type Category string

const (
	CategoryInput           Category = "input"
	CategoryRange           Category = "range"
	CategoryAccessViolation Category = "access_violation"
	CategoryIntegrity       Category = "integrity"
	CategoryConfig          Category = "config"
)

// Category reports the taxonomy bucket of the code. Input and range errors
// are recoverable; access and integrity violations abort the operation.
func (c Code) Category() Category {
	switch c {
	case CodeInputEmpty:
		return CategoryInput
	case CodePresetOutOfRange:
		return CategoryRange
	case CodeDirectEngineAccess, CodeDirectStateAccess, CodeEngineAlreadyClaimed,
		CodeSealedController, CodeSealedAuditTrail, CodeInvalidAction, CodeForbiddenAction:
		return CategoryAccessViolation
	case CodeInvalidConfig:
		return CategoryConfig
	default:
		return CategoryIntegrity
	}
}

func (c Code) Fatal() bool {
	cat := c.Category()
	return cat == CategoryAccessViolation || cat == CategoryIntegrity
}

// Error is the domain error carried through engine, guard and audit layers.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dynamo: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("dynamo: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) With(key, value string) *Error {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	return &Error{Code: e.Code, Message: e.Message, Metadata: md, Cause: e.Cause}
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// Sentinels for errors.Is comparisons.
var (
	ErrInputEmpty           = New(CodeInputEmpty, "input is empty")
	ErrPresetOutOfRange     = New(CodePresetOutOfRange, "preset index out of range")
	ErrDirectEngineAccess   = New(CodeDirectEngineAccess, "direct engine mutation forbidden after lock")
	ErrDirectStateAccess    = New(CodeDirectStateAccess, "direct state access forbidden after lock")
	ErrEngineAlreadyClaimed = New(CodeEngineAlreadyClaimed, "engine already claimed by a controller")
	ErrSealedController     = New(CodeSealedController, "controller is sealed")
	ErrSealedAuditTrail     = New(CodeSealedAuditTrail, "audit trail is sealed")
	ErrInvalidAction        = New(CodeInvalidAction, "action not permitted")
	ErrForbiddenAction      = New(CodeForbiddenAction, "action is forbidden")
	ErrStateAuditMismatch   = New(CodeStateAuditMismatch, "engine state diverges from last audit record")
	ErrAuditCanonViolation  = New(CodeAuditCanonViolation, "audit record violates canon")
	ErrAuditChainBroken     = New(CodeAuditChainBroken, "audit hash chain broken")
	ErrReplayFailure        = New(CodeReplayFailure, "replay failed")
	ErrReplayStateMismatch  = New(CodeReplayStateMismatch, "replayed state diverges from expected")
	ErrInvalidConfig        = New(CodeInvalidConfig, "invalid configuration")
	ErrInvalidState         = New(CodeInvalidState, "invalid state (NaN or Inf detected)")
)

// SimulationError attaches the step and state at which a run failed.
type SimulationError struct {
	Step    int
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
