// Package mosaicerr defines the failure kinds a mosaic job can end with.
//
// Every error that reaches the caller is an *Error carrying one Kind. Use
// errors.Is against the Err* sentinels, or KindOf, to branch on the kind:
//
//	if errors.Is(err, mosaicerr.ErrProtocol) { ... }
package mosaicerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindInternal Kind = iota
	KindConfig
	KindProtocol
	KindDecode
	KindState
	KindEncode
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindProtocol:
		return "ProtocolError"
	case KindDecode:
		return "DecodeError"
	case KindState:
		return "StateError"
	case KindEncode:
		return "EncodeError"
	default:
		return "InternalError"
	}
}

// Sentinels matched by (*Error).Is.
var (
	ErrInternal = &Error{Kind: KindInternal}
	ErrConfig   = &Error{Kind: KindConfig}
	ErrProtocol = &Error{Kind: KindProtocol}
	ErrDecode   = &Error{Kind: KindDecode}
	ErrState    = &Error{Kind: KindState}
	ErrEncode   = &Error{Kind: KindEncode}
)

// Error is a classified failure. Op names the operation that failed
// ("start", "chunk", "decode", ...).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel (or any *Error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New wraps err with kind and op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an *Error from a format string. %w verbs are honoured.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func Config(op, format string, args ...any) *Error {
	return Newf(KindConfig, op, format, args...)
}

func Protocol(op, format string, args ...any) *Error {
	return Newf(KindProtocol, op, format, args...)
}

func Decode(op string, err error) *Error {
	return New(KindDecode, op, err)
}

func State(op, format string, args ...any) *Error {
	return Newf(KindState, op, format, args...)
}

func Encode(op string, err error) *Error {
	return New(KindEncode, op, err)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
