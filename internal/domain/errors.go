package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors — the closed taxonomy from spec.md §7. Every error engram
// returns across HTTP, the stdio tool protocol, and internal boundaries
// resolves to exactly one of these via ErrorKindOf.
var (
	ErrEmptyContent        = errors.New("content is empty after trim")
	ErrSecretDetected      = errors.New("secret detected in content")
	ErrInvalidField        = errors.New("field out of range or wrong type")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateID         = errors.New("id collision")
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrCanceled            = errors.New("canceled before commit")
	ErrSchemaMismatch      = errors.New("schema newer than binary")
	ErrInternal            = errors.New("internal error")
)

// EngramError wraps a sentinel with operation context, mirroring the
// teacher's DomainError: Op names the failing call, Detail is a
// human-readable addition (e.g. a pattern name, a field name), never the
// sensitive value that triggered the failure.
type EngramError struct {
	Op     string
	Err    error
	Detail string
}

func (e *EngramError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *EngramError) Unwrap() error { return e.Err }

// NewError creates an EngramError.
func NewError(op string, err error, detail string) *EngramError {
	return &EngramError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context via fmt.Errorf wrapping. Returns nil if err
// is nil, so callers can write `return domain.WrapOp("op", err)`.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorKind is the machine-parseable category surfaced in API error envelopes.
type ErrorKind string

const (
	KindEmptyContent        ErrorKind = "EmptyContent"
	KindSecretDetected      ErrorKind = "SecretDetected"
	KindInvalidField        ErrorKind = "InvalidField"
	KindNotFound            ErrorKind = "NotFound"
	KindDuplicateID         ErrorKind = "DuplicateId"
	KindEmbedderUnavailable ErrorKind = "EmbedderUnavailable"
	KindStoreUnavailable    ErrorKind = "StoreUnavailable"
	KindCanceled            ErrorKind = "Canceled"
	KindSchemaMismatch      ErrorKind = "SchemaMismatch"
	KindInternal            ErrorKind = "Internal"
)

var kindMap = map[error]ErrorKind{
	ErrEmptyContent:        KindEmptyContent,
	ErrSecretDetected:      KindSecretDetected,
	ErrInvalidField:        KindInvalidField,
	ErrNotFound:            KindNotFound,
	ErrDuplicateID:         KindDuplicateID,
	ErrEmbedderUnavailable: KindEmbedderUnavailable,
	ErrStoreUnavailable:    KindStoreUnavailable,
	ErrCanceled:            KindCanceled,
	ErrSchemaMismatch:      KindSchemaMismatch,
	ErrInternal:            KindInternal,
}

// ErrorKindOf resolves err (a bare sentinel, an *EngramError, or any chain
// wrapping one of the sentinels above) to its ErrorKind. Unrecognized errors
// map to KindInternal.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if kind, ok := kindMap[err]; ok {
		return kind
	}
	var ee *EngramError
	if errors.As(err, &ee) {
		if kind, ok := kindMap[ee.Err]; ok {
			return kind
		}
	}
	for sentinel, kind := range kindMap {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// DetailOf returns the EngramError's Detail string, or "" if err isn't one
// or carries no detail. Used by the API layer to populate error.details
// without leaking raw sentinel text.
func DetailOf(err error) string {
	var ee *EngramError
	if errors.As(err, &ee) {
		return ee.Detail
	}
	return ""
}
