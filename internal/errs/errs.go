// Package errs defines the error taxonomy shared by the tree codec.
//
// Every failure that reaches a caller carries one of the sentinel kinds below,
// so callers can branch with errors.Is:
//
//	if errors.Is(err, errs.ErrMalformedTree) {
//	    // the directory tree was hand-edited or truncated
//	}
//
// The structured *Error adds the table, file and line the failure refers to.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedSchema is returned when a table uses a schema feature
	// the codec does not model (virtual tables, generated columns, ...).
	ErrUnsupportedSchema = errors.New("unsupported schema")

	// ErrUnsupportedValue is returned when a cell holds a value that has no
	// canonical text form, such as NaN or an infinite real.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrMalformedValue is returned when an encoded value does not match
	// the value grammar.
	ErrMalformedValue = errors.New("malformed value")

	// ErrMalformedTree is returned when a schema, descriptor or shard file
	// does not match the expected layout or grammar.
	ErrMalformedTree = errors.New("malformed tree")

	// ErrSchemaMismatch is returned when records do not line up with the
	// columns their table declares.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNonUniqueRowKey flags two rows sharing one row key. It is a
	// warning: conversion continues with a content-derived tie-break.
	ErrNonUniqueRowKey = errors.New("non-unique row key")

	// ErrIO is returned when reading or writing the tree or the database
	// file fails.
	ErrIO = errors.New("io failure")
)

// Error is a classified failure with the location it refers to.
type Error struct {
	Kind   error
	Table  string
	File   string
	Line   int
	Detail string
	Err    error
}

// New returns an Error of the given kind with a formatted detail message.
func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. It returns nil when err is nil.
func Wrap(kind error, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// InTable returns a copy of e annotated with a table name.
func (e *Error) InTable(name string) *Error {
	c := *e
	c.Table = name
	return &c
}

// InFile returns a copy of e annotated with a file path and line number.
// A line of zero means the whole file.
func (e *Error) InFile(path string, line int) *Error {
	c := *e
	c.File = path
	c.Line = line
	return &c
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Table != "" {
		fmt.Fprintf(&b, ": table %q", e.Table)
	}
	if e.File != "" {
		if e.Line > 0 {
			fmt.Fprintf(&b, ": %s:%d", e.File, e.Line)
		} else {
			fmt.Fprintf(&b, ": %s", e.File)
		}
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

var kinds = []error{
	ErrUnsupportedSchema,
	ErrUnsupportedValue,
	ErrMalformedValue,
	ErrMalformedTree,
	ErrSchemaMismatch,
	ErrNonUniqueRowKey,
	ErrIO,
}

// KindOf returns the taxonomy kind of err, or nil if err is unclassified.
// When several kinds are wrapped the outermost classification wins.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Annotate attaches table context to a classified error. Unclassified
// errors are returned unchanged.
func Annotate(err error, table string) error {
	var e *Error
	if errors.As(err, &e) && e.Table == "" {
		return e.InTable(table)
	}
	return err
}

// IsFatal reports whether err must abort a conversion run.
// Only ErrNonUniqueRowKey is a warning.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNonUniqueRowKey)
}
