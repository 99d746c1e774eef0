package main

import (
	"errors"
	"fmt"
)

// ErrorKind classifies store failures. Handlers map kinds to HTTP status codes.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindDuplicate  ErrorKind = "duplicate"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict" // stale snapshot, retry
	KindUpstream   ErrorKind = "upstream"
)

// StoreError is the only error type returned by QuestStore implementations.
type StoreError struct {
	Kind   ErrorKind
	Op     string
	Entity string
	Msg    string
	Err    error
}

func (e *StoreError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
func (e *StoreError) Retryable() bool {
	return e.Kind == KindConflict
}

func errValidation(op, entity, format string, args ...any) error {
	return &StoreError{Kind: KindValidation, Op: op, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

func errDuplicate(op, entity, field, value string) error {
	return &StoreError{Kind: KindDuplicate, Op: op, Entity: entity, Msg: fmt.Sprintf("%s %q already exists", field, value)}
}

func errNotFound(op, entity, id string) error {
	return &StoreError{Kind: KindNotFound, Op: op, Entity: entity, Msg: fmt.Sprintf("id %q not found", id)}
}

func errConflict(op, entity string) error {
	return &StoreError{Kind: KindConflict, Op: op, Entity: entity, Msg: "data changed since it was read"}
}

func errUpstream(op, entity string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Kind: KindUpstream, Op: op, Entity: entity, Err: err}
}

// KindOf returns the kind of a store error, or KindUpstream for foreign errors.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUpstream
}

// IsKind reports whether err is a StoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}
