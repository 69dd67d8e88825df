// Package dberr defines the closed set of error kinds every layer of the
// database reports. Errors carry an http-ish status so the request handlers
// can map them onto wire replies without inspecting messages.
package dberr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindAlreadyExists
	KindTypeMismatch
	KindDuplicateKey
	KindMissingRequiredColumn
	KindMalformedCommand
	KindUnauthorized
	KindIoError
	KindNetworkFailure
	KindCorrupted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindMissingRequiredColumn:
		return "MissingRequiredColumn"
	case KindMalformedCommand:
		return "MalformedCommand"
	case KindUnauthorized:
		return "Unauthorized"
	case KindIoError:
		return "IoError"
	case KindNetworkFailure:
		return "NetworkFailure"
	case KindCorrupted:
		return "Corrupted"
	}
	return "Unknown"
}

func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists, KindDuplicateKey:
		return http.StatusConflict
	case KindTypeMismatch, KindMissingRequiredColumn, KindMalformedCommand:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindIoError, KindCorrupted, KindNetworkFailure:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

type Error struct {
	kind Kind
	msg  string
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Status() int   { return e.kind.Status() }

// KindOf reports the kind of err, or KindNone when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindNone
}

func StatusOf(err error) int {
	if k := KindOf(err); k != KindNone {
		return k.Status()
	}
	return http.StatusInternalServerError
}
