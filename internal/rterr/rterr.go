// Package rterr carries the runtime's error-kind taxonomy.
//
// Every error that crosses a component boundary in this repository is
// either a plain wrapped error or one of these kinds. Callers that need
// to branch on error category (the Conversation Driver deciding whether
// to retry, the dispatcher deciding whether to turn a failure into a
// tool_result) use Kind/Is instead of string matching.
package rterr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for propagation-policy decisions.
type Kind string

const (
	// ConfigFatal is a startup-time misconfiguration: missing API key,
	// missing container image, a duplicate tool id. The process must not
	// start.
	ConfigFatal Kind = "config_fatal"

	// SchemaViolation is bad tool-call arguments from the model. Turned
	// into an error tool_result so the model can self-correct.
	SchemaViolation Kind = "schema_violation"

	// SandboxViolation is a resolved path escaping the permitted set.
	// Turned into an error tool_result; the provider must refuse.
	SandboxViolation Kind = "sandbox_violation"

	// Transient is a retryable condition: LLM overload, rate limit,
	// network timeout, container startup race.
	Transient Kind = "transient"

	// CommandTimeout is an exec that exceeded its bound. Container and
	// shell state survive.
	CommandTimeout Kind = "command_timeout"

	// ContainerLost is a container that disappeared or entered an
	// unexpected state. The next execute recreates it.
	ContainerLost Kind = "container_lost"

	// ProviderInternal is anything else a tool provider throws.
	ProviderInternal Kind = "provider_internal"
)

// Error wraps an underlying error with a Kind and optional structured
// context, mirroring how a tool id or conversation id usually needs to
// ride along with the failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a Kind-tagged error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of extracts the Kind from err, if err (or something it wraps) is a
// *Error. The second return is false for plain errors.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

// IsFatal reports whether the propagation policy requires this error to
// break the Conversation Driver's loop (ConfigFatal, or not one of our
// typed kinds at all and not otherwise classified retryable upstream).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k, ok := Of(err)
	if !ok {
		return true
	}
	return k == ConfigFatal
}
