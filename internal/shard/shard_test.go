package shard

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/sqltree/internal/value"
)

func intKeys(ns ...int) [][]byte {
	keys := make([][]byte, len(ns))
	for i, n := range ns {
		keys[i] = value.Key(value.Integer(n))
	}
	slices.SortFunc(keys, bytes.Compare)
	return keys
}

func evens(limit int) []int {
	var ns []int
	for n := 0; n < limit; n += 2 {
		ns = append(ns, n)
	}
	return ns
}

// layout maps shard name to the keys it holds.
func layout(p Policy, keys [][]byte) map[string]string {
	out := make(map[string]string)
	for _, s := range p.Partition(keys) {
		var buf bytes.Buffer
		for _, k := range keys[s.Start:s.End] {
			buf.Write(k)
			buf.WriteByte('\n')
		}
		out[s.Name] = buf.String()
	}
	return out
}

func touched(before, after map[string]string) int {
	n := 0
	for name, content := range after {
		if before[name] != content {
			n++
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			n++
		}
	}
	return n
}

func TestPartitionCoversKeys(t *testing.T) {
	p := Policy{TargetRows: 16, MaxNameBytes: DefaultMaxNameBytes}
	keys := intKeys(evens(4000)...)
	spans := p.Partition(keys)

	require.NotEmpty(t, spans)
	assert.Greater(t, len(spans), 10, "expected roughly len/TargetRows shards")

	var names []string
	next := 0
	for i, s := range spans {
		assert.Equal(t, next, s.Start, "span %d must start where the previous ended", i)
		assert.Positive(t, s.Len())
		assert.True(t, ValidName(s.Name), "invalid shard name %q", s.Name)
		if i > 0 {
			assert.Less(t, spans[i-1].Name, s.Name, "shard names must increase")
		}
		names = append(names, s.Name)
		next = s.End
	}
	assert.Equal(t, len(keys), next)

	for _, s := range spans {
		for _, k := range keys[s.Start:s.End] {
			assert.Equal(t, s.Name, p.ShardOf(k, names))
		}
	}
}

func TestPartitionDeterministic(t *testing.T) {
	p := DefaultPolicy()
	keys := intKeys(evens(3000)...)
	assert.Equal(t, p.Partition(keys), p.Partition(keys))
}

func TestInsertTouchesFewShards(t *testing.T) {
	p := Policy{TargetRows: 8, MaxNameBytes: DefaultMaxNameBytes}
	base := evens(2000)
	before := layout(p, intKeys(base...))

	for n := 1; n < 2000; n += 37 {
		after := layout(p, intKeys(append(slices.Clone(base), n)...))
		if got := touched(before, after); got < 1 || got > 3 {
			t.Errorf("insert %d touched %d shards, want 1..3", n, got)
		}
	}
}

func TestDeleteTouchesFewShards(t *testing.T) {
	p := Policy{TargetRows: 8, MaxNameBytes: DefaultMaxNameBytes}
	base := evens(2000)
	before := layout(p, intKeys(base...))

	for i := 0; i < len(base); i += 29 {
		rest := slices.Delete(slices.Clone(base), i, i+1)
		after := layout(p, intKeys(rest...))
		if got := touched(before, after); got < 1 || got > 3 {
			t.Errorf("delete %d touched %d shards, want 1..3", base[i], got)
		}
	}
}

func TestTruncatedNamesStayUnique(t *testing.T) {
	// Long keys sharing a prefix longer than MaxNameBytes collapse into
	// one shard instead of producing duplicate names.
	p := Policy{TargetRows: 1, MaxNameBytes: 4}
	var keys [][]byte
	for _, s := range []string{"aaaaaaaa1", "aaaaaaaa2", "aaaaaaaa3", "b"} {
		keys = append(keys, value.Key(value.Text(s)))
	}
	spans := p.Partition(keys)

	seen := map[string]bool{}
	for _, s := range spans {
		assert.False(t, seen[s.Name], "duplicate shard name %q", s.Name)
		seen[s.Name] = true
	}
	require.Len(t, spans, 2)
	assert.Equal(t, 3, spans[0].Len())
}

func TestShardOfHead(t *testing.T) {
	p := DefaultPolicy()
	key := value.Key(value.Integer(1))
	assert.Equal(t, HeadName, p.ShardOf(key, nil))
	assert.Equal(t, HeadName, p.ShardOf(key, []string{HeadName, "kff"}))
	assert.Equal(t, "k15", p.ShardOf(key, []string{HeadName, "k15"}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{TargetRows: 0, MaxNameBytes: 1}.Validate())
	assert.Error(t, Policy{TargetRows: 1, MaxNameBytes: 0}.Validate())
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"0", "k00", "k15800000000000001"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", "00", "kAB", "k", "x15", "0.tsv"} {
		assert.False(t, ValidName(name), name)
	}
}
