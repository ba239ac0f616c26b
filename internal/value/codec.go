package value

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

const hexDigits = "0123456789abcdef"

// Encode returns the canonical text form of v.
//
//	null          NULL
//	42, -7        INTEGER
//	1.0, 1e+300   REAL, always carrying '.' or 'e'
//	"a\tb"        TEXT, quoted with backslash escapes
//	x00ff         BLOB, lowercase hex
//
// The encoding never contains a raw tab, newline or unquoted comma, so it
// can be embedded in tab-separated records and comma-joined keys.
func Encode(v Value) (string, error) {
	b, err := Append(nil, v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Append appends the canonical text form of v to dst.
func Append(dst []byte, v Value) ([]byte, error) {
	switch x := v.(type) {
	case Null:
		return append(dst, "null"...), nil
	case Integer:
		return strconv.AppendInt(dst, int64(x), 10), nil
	case Real:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return dst, errs.New(errs.ErrUnsupportedValue, "real %v has no canonical form", f)
		}
		start := len(dst)
		dst = strconv.AppendFloat(dst, f, 'g', -1, 64)
		if !strings.ContainsAny(string(dst[start:]), ".e") {
			dst = append(dst, ".0"...)
		}
		return dst, nil
	case Text:
		return appendQuoted(dst, string(x)), nil
	case Blob:
		dst = append(dst, 'x')
		return hex.AppendEncode(dst, x), nil
	case nil:
		return dst, errs.New(errs.ErrUnsupportedValue, "nil value")
	default:
		return dst, errs.New(errs.ErrUnsupportedValue, "unknown value type %T", v)
	}
}

func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		switch c {
		case '\\':
			dst = append(dst, '\\', '\\')
		case '"':
			dst = append(dst, '\\', '"')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case 0:
			dst = append(dst, '\\', '0')
		default:
			if c < 0x20 || c == 0x7f {
				dst = appendHexEscape(dst, c)
				break
			}
			if c < utf8.RuneSelf {
				dst = append(dst, c)
				break
			}
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				dst = appendHexEscape(dst, c)
				break
			}
			dst = append(dst, s[i:i+size]...)
			i += size
			continue
		}
		i++
	}
	return append(dst, '"')
}

func appendHexEscape(dst []byte, c byte) []byte {
	return append(dst, '\\', 'x', hexDigits[c>>4], hexDigits[c&0x0f])
}

// Decode parses a canonical value. Input that parses but is not in
// canonical form (leading zeros, "1.50", needless escapes) is rejected,
// so Encode(Decode(s)) == s for every accepted s.
func Decode(s string) (Value, error) {
	v, err := decode(s)
	if err != nil {
		return nil, err
	}
	back, err := Encode(v)
	if err != nil {
		return nil, errs.Wrap(errs.ErrMalformedValue, err, "value %q", s)
	}
	if back != s {
		return nil, errs.New(errs.ErrMalformedValue, "value %q is not canonical, expected %q", s, back)
	}
	return v, nil
}

func decode(s string) (Value, error) {
	if s == "" {
		return nil, errs.New(errs.ErrMalformedValue, "empty value")
	}
	switch c := s[0]; {
	case s == "null":
		return Null{}, nil
	case c == '"':
		return decodeQuoted(s)
	case c == 'x':
		b, err := hex.DecodeString(s[1:])
		if err != nil {
			return nil, errs.Wrap(errs.ErrMalformedValue, err, "blob %q", s)
		}
		return Blob(b), nil
	case c == '-' || (c >= '0' && c <= '9'):
		if strings.ContainsAny(s, ".e") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errs.Wrap(errs.ErrMalformedValue, err, "real %q", s)
			}
			return Real(f), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errs.Wrap(errs.ErrMalformedValue, err, "integer %q", s)
		}
		return Integer(n), nil
	default:
		return nil, errs.New(errs.ErrMalformedValue, "unrecognized value %q", s)
	}
}

func decodeQuoted(s string) (Value, error) {
	if len(s) < 2 || s[len(s)-1] != '"' {
		return nil, errs.New(errs.ErrMalformedValue, "unterminated text %q", s)
	}
	body := s[1 : len(s)-1]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '"' {
			return nil, errs.New(errs.ErrMalformedValue, "unescaped quote in text %q", s)
		}
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(body) {
			return nil, errs.New(errs.ErrMalformedValue, "dangling escape in text %q", s)
		}
		switch body[i] {
		case '\\':
			out = append(out, '\\')
		case '"':
			out = append(out, '"')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '0':
			out = append(out, 0)
		case 'x':
			if i+3 > len(body) {
				return nil, errs.New(errs.ErrMalformedValue, "short hex escape in text %q", s)
			}
			var b [1]byte
			if _, err := hex.Decode(b[:], []byte(body[i+1:i+3])); err != nil {
				return nil, errs.Wrap(errs.ErrMalformedValue, err, "hex escape in text %q", s)
			}
			out = append(out, b[0])
			i += 2
		default:
			return nil, errs.New(errs.ErrMalformedValue, "unknown escape \\%c in text %q", body[i], s)
		}
	}
	return Text(out), nil
}
