package value

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Tags that open each class in the key encoding. Their order gives the
// cross-class order NULL < INTEGER < REAL < TEXT < BLOB.
const (
	tagNull    = 0x05
	tagInteger = 0x15
	tagReal    = 0x21
	tagText    = 0x32
	tagBlob    = 0x40
)

// AppendKey appends the order-preserving byte encoding of v to dst.
//
// Comparing two encodings with bytes.Compare gives the same result as
// Compare on the values, and concatenated encodings of tuples compare
// lexicographically element by element. Integers and reals are different
// classes here, so 1 and 1.0 are distinct keys.
func AppendKey(dst []byte, v Value) []byte {
	switch x := v.(type) {
	case Integer:
		dst = append(dst, tagInteger)
		return binary.BigEndian.AppendUint64(dst, uint64(x)^(1<<63))
	case Real:
		bits := math.Float64bits(float64(x))
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		dst = append(dst, tagReal)
		return binary.BigEndian.AppendUint64(dst, bits)
	case Text:
		dst = append(dst, tagText)
		return appendEscaped(dst, []byte(x))
	case Blob:
		dst = append(dst, tagBlob)
		return appendEscaped(dst, x)
	default:
		return append(dst, tagNull)
	}
}

// appendEscaped writes b with every 0x00 doubled as 0x00 0xff and a single
// 0x00 terminator, which keeps prefixes ordered before their extensions.
func appendEscaped(dst, b []byte) []byte {
	for {
		i := bytes.IndexByte(b, 0)
		if i < 0 {
			break
		}
		dst = append(dst, b[:i]...)
		dst = append(dst, 0x00, 0xff)
		b = b[i+1:]
	}
	dst = append(dst, b...)
	return append(dst, 0x00)
}

// Key returns the concatenated key encoding of a tuple.
func Key(vals ...Value) []byte {
	var dst []byte
	for _, v := range vals {
		dst = AppendKey(dst, v)
	}
	return dst
}

// Compare orders two values by the canonical key order.
func Compare(a, b Value) int {
	return bytes.Compare(AppendKey(nil, a), AppendKey(nil, b))
}
