// Package value models a single SQLite cell and its canonical encodings.
//
// A Value is one of exactly five storage classes. Declared column types are
// advisory in SQLite, so the class is taken from the stored cell and carried
// through the text encoding unchanged.
package value

import (
	"bytes"
	"math"
)

// Class is a SQLite storage class.
type Class uint8

const (
	ClassNull Class = iota
	ClassInteger
	ClassReal
	ClassText
	ClassBlob
)

func (c Class) String() string {
	switch c {
	case ClassNull:
		return "null"
	case ClassInteger:
		return "integer"
	case ClassReal:
		return "real"
	case ClassText:
		return "text"
	case ClassBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Value is a sealed interface. Only Null, Integer, Real, Text and Blob
// implement it.
type Value interface {
	Class() Class
}

// Null is the SQL NULL.
type Null struct{}

// Integer is a 64-bit signed integer cell.
type Integer int64

// Real is an IEEE-754 double cell.
type Real float64

// Text is a text cell. It holds raw bytes and is not required to be valid
// UTF-8.
type Text string

// Blob is a byte string cell.
type Blob []byte

func (Null) Class() Class    { return ClassNull }
func (Integer) Class() Class { return ClassInteger }
func (Real) Class() Class    { return ClassReal }
func (Text) Class() Class    { return ClassText }
func (Blob) Class() Class    { return ClassBlob }

// Equal reports whether a and b are the same cell. Reals compare by bit
// pattern so -0.0 and 0.0 differ; a nil Blob equals an empty one.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Class() != b.Class() {
		return false
	}
	switch x := a.(type) {
	case Null:
		return true
	case Integer:
		return x == b.(Integer)
	case Real:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Real)))
	case Text:
		return x == b.(Text)
	case Blob:
		return bytes.Equal(x, b.(Blob))
	}
	return false
}

// EqualRow reports whether two tuples are cell-for-cell equal.
func EqualRow(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
