// Package fxerr defines the structured error type shared by the Filu-X
// resolution engine.
//
// Kinds are the protocol's error taxonomy and are intended to remain stable
// across versions. Callers should branch on Kind (or RuleID) with errors.As
// rather than matching error strings.
//
// The split matters operationally: KindNotFound is transient-possible and
// may be retried by callers; KindNameNotBound is fatal to the caller (an
// unbound name stays unbound until its owner publishes); KindInvalidLink,
// KindMalformed and KindUnknownKind are deterministic input failures; and
// KindSecurity is always fatal to the operation and must never be downgraded
// to an ordinary resolution failure.
package fxerr

import "errors"

type Kind string

const (
	// KindInvalidLink marks a malformed fx:// link. Caller error, never retried.
	KindInvalidLink Kind = "InvalidLink"

	// KindNotFound marks content absent from the store. Possibly transient.
	KindNotFound Kind = "NotFound"

	// KindNameNotBound marks a mutable name with no published binding.
	// Fatal to the caller; distinct from a transient fetch failure.
	KindNameNotBound Kind = "NameNotBound"

	// KindMalformed marks bytes that could not be parsed as a document.
	KindMalformed Kind = "Malformed"

	// KindUnknownKind marks a parseable document whose kind could not be
	// classified. Fail closed: such documents are never rendered.
	KindUnknownKind Kind = "UnknownKind"

	// KindSecurity marks signature failures, classifier rejections and
	// declared/detected type mismatches.
	KindSecurity Kind = "Security"

	// KindInternal marks bugs and collaborator misbehavior.
	KindInternal Kind = "Internal"
)

// Error carries a stable Kind and RuleID naming the violated invariant
// (e.g. FX-LINK-001, FX-SEC-401). Message is for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error with no cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Wrap returns a structured error wrapping cause. A nil cause degrades to New.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Retryable reports whether the error class may clear on retry
// (content not yet available from any store).
func Retryable(err error) bool {
	return IsKind(err, KindNotFound)
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
