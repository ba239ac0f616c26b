package schema

import (
	"encoding/hex"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

// Root entries that a table directory must never shadow.
var reservedRootNames = []string{"FORMAT", "views.sql", "view_triggers.sql"}

// EscapeName maps a table name to a directory name. Letters, digits, '_'
// and '-' are kept, as is '.' except in first position. Every other run of
// bytes is written as its lowercase hex between dollar signs, so
// "my table" becomes "my$20$table". The mapping is injective.
func EscapeName(name string) string {
	var b strings.Builder
	var run []byte
	flush := func() {
		if len(run) > 0 {
			b.WriteByte('$')
			b.WriteString(hex.EncodeToString(run))
			b.WriteByte('$')
			run = run[:0]
		}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isPathSafe(c) || (c == '.' && i > 0) {
			flush()
			b.WriteByte(c)
			continue
		}
		run = append(run, c)
	}
	flush()

	out := b.String()
	for _, r := range reservedRootNames {
		if strings.EqualFold(out, r) {
			return "$" + hex.EncodeToString([]byte{out[0]}) + "$" + out[1:]
		}
	}
	return out
}

// UnescapeName reverses EscapeName. It rejects directory names that
// EscapeName would never produce.
func UnescapeName(dir string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(dir); {
		c := dir[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(dir[i+1:], '$')
		if end < 0 {
			return "", errs.New(errs.ErrMalformedTree, "unterminated escape in directory name %q", dir)
		}
		raw, err := hex.DecodeString(dir[i+1 : i+1+end])
		if err != nil || len(raw) == 0 {
			return "", errs.New(errs.ErrMalformedTree, "bad escape in directory name %q", dir)
		}
		b.Write(raw)
		i += end + 2
	}
	name := b.String()
	if name == "" || EscapeName(name) != dir {
		return "", errs.New(errs.ErrMalformedTree, "directory name %q is not a canonical table name", dir)
	}
	return name, nil
}

func isPathSafe(c byte) bool {
	return c == '_' || c == '-' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
