// Package shard splits a table's ordered records into files.
//
// Boundaries are content defined: whether a record opens a new shard
// depends only on its own key and its predecessor's, never on its position.
// Inserting or deleting one record therefore rewrites the one shard it
// lands in, plus at most one neighbour when it creates or removes a
// boundary. Shard names sort in the same order as the records they hold.
package shard

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"

	"github.com/zeebo/blake3"
)

// HeadName names the shard holding the records before the first boundary.
const HeadName = "0"

const (
	DefaultTargetRows   = 256
	DefaultMaxNameBytes = 32
)

var namePattern = regexp.MustCompile(`^(0|k[0-9a-f]+)$`)

// Policy holds the sharding parameters.
type Policy struct {
	// TargetRows is the expected number of records per shard.
	TargetRows int
	// MaxNameBytes caps how many key bytes appear in a shard name.
	MaxNameBytes int
}

// DefaultPolicy returns the default sharding parameters.
func DefaultPolicy() Policy {
	return Policy{TargetRows: DefaultTargetRows, MaxNameBytes: DefaultMaxNameBytes}
}

// Validate checks that both parameters are positive.
func (p Policy) Validate() error {
	if p.TargetRows < 1 {
		return fmt.Errorf("target rows must be positive, got %d", p.TargetRows)
	}
	if p.MaxNameBytes < 1 {
		return fmt.Errorf("max name bytes must be positive, got %d", p.MaxNameBytes)
	}
	return nil
}

// Name returns the shard name a record with this key would open.
func (p Policy) Name(key []byte) string {
	if len(key) > p.MaxNameBytes {
		key = key[:p.MaxNameBytes]
	}
	return "k" + hex.EncodeToString(key)
}

// candidate reports whether the key hash selects this key as a potential
// boundary. About one key in TargetRows is selected.
func (p Policy) candidate(key []byte) bool {
	sum := blake3.Sum256(key)
	return binary.BigEndian.Uint64(sum[:8])%uint64(p.TargetRows) == 0
}

// IsBoundary reports whether a record with key opens a new shard given its
// predecessor's key. prev is nil for the first record of a table.
func (p Policy) IsBoundary(key, prev []byte) bool {
	if !p.candidate(key) {
		return false
	}
	return prev == nil || p.Name(key) != p.Name(prev)
}

// Span is a run of consecutive records stored in one file.
type Span struct {
	Name  string
	Start int
	End   int
}

// Len returns the number of records in the span.
func (s Span) Len() int { return s.End - s.Start }

// Partition splits sorted keys into shards. The keys must be in canonical
// order; equal keys never straddle a boundary.
func (p Policy) Partition(keys [][]byte) []Span {
	var spans []Span
	cur := Span{Name: HeadName}
	for i, key := range keys {
		var prev []byte
		if i > 0 {
			prev = keys[i-1]
		}
		if p.IsBoundary(key, prev) {
			if cur.Len() > 0 {
				spans = append(spans, cur)
			}
			cur = Span{Name: p.Name(key), Start: i}
		}
		cur.End = i + 1
	}
	if cur.Len() > 0 {
		spans = append(spans, cur)
	}
	return spans
}

// ShardOf returns the shard, among the sorted names, that holds key.
// It is the last name not greater than the key's own shard name; names
// compare in record order, and HeadName precedes every other name.
func (p Policy) ShardOf(key []byte, names []string) string {
	own := p.Name(key)
	i := sort.Search(len(names), func(i int) bool { return names[i] > own })
	if i == 0 {
		return HeadName
	}
	return names[i-1]
}

// ValidName reports whether name is a well-formed shard name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}
