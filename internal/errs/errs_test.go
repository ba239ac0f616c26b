package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := Wrap(ErrIO, fs.ErrNotExist, "failed to read shard").InTable("users").InFile("users/rows/0.tsv", 0)

	if !errors.Is(err, ErrIO) {
		t.Error("errors.Is(err, ErrIO) = false, want true")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is(err, fs.ErrNotExist) = false, want true")
	}
	if errors.Is(err, ErrMalformedTree) {
		t.Error("errors.Is(err, ErrMalformedTree) = true, want false")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "kind only",
			err:  New(ErrSchemaMismatch, ""),
			want: "schema mismatch",
		},
		{
			name: "table and line",
			err:  New(ErrMalformedTree, "bad key").InTable("t").InFile("t/rows/0.tsv", 3),
			want: `malformed tree: table "t": t/rows/0.tsv:3: bad key`,
		},
		{
			name: "cause",
			err:  Wrap(ErrIO, errors.New("disk full"), "failed to write %s", "FORMAT"),
			want: "io failure: failed to write FORMAT: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("failed to convert: %w", New(ErrUnsupportedValue, "NaN"))
	if got := KindOf(wrapped); got != ErrUnsupportedValue {
		t.Errorf("KindOf() = %v, want %v", got, ErrUnsupportedValue)
	}
	if got := KindOf(fmt.Errorf("plain: %w", ErrMalformedValue)); got != ErrMalformedValue {
		t.Errorf("KindOf() = %v, want %v", got, ErrMalformedValue)
	}
	if got := KindOf(errors.New("other")); got != nil {
		t.Errorf("KindOf() = %v, want nil", got)
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Error("IsFatal(nil) = true")
	}
	if IsFatal(New(ErrNonUniqueRowKey, "dup")) {
		t.Error("IsFatal(ErrNonUniqueRowKey) = true, want false")
	}
	if !IsFatal(New(ErrMalformedTree, "x")) {
		t.Error("IsFatal(ErrMalformedTree) = false, want true")
	}
}

func TestAnnotate(t *testing.T) {
	err := Annotate(New(ErrMalformedValue, "x"), "t")
	var e *Error
	if !errors.As(err, &e) || e.Table != "t" {
		t.Fatalf("Annotate() = %v, want table t", err)
	}
	plain := errors.New("plain")
	if got := Annotate(plain, "t"); got != plain {
		t.Errorf("Annotate(plain) = %v, want unchanged", got)
	}
}
