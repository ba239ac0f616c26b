package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mschirtzinger/sqltree/internal/tree"
)

// Test binaries write to a pipe, so rendering is plain text.

func TestPrintPlan(t *testing.T) {
	p := &tree.Plan{Changes: []tree.Change{
		{Op: tree.OpCreate, Path: "users/rows/k15.tsv"},
		{Op: tree.OpUpdate, Path: "users/rows/0.tsv"},
		{Op: tree.OpDelete, Path: "old/schema.sql"},
	}}

	var buf bytes.Buffer
	PrintPlan(&buf, p)
	want := "+ users/rows/k15.tsv\n~ users/rows/0.tsv\n- old/schema.sql\n1 created, 1 updated, 1 deleted\n"
	assert.Equal(t, want, buf.String())
}

func TestSummaryNoChanges(t *testing.T) {
	assert.Equal(t, "no changes", Summary(&tree.Plan{}))
}

func TestRenderPlain(t *testing.T) {
	assert.Equal(t, "✓", RenderPass("✓"))
	assert.Equal(t, "error", RenderFail("error"))
}

func TestConfirmNeedsTerminal(t *testing.T) {
	if IsInteractive() {
		t.Skip("running on a terminal")
	}
	ok, err := Confirm("Overwrite?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotInteractive)
}
