package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/sqltree/internal/config"
)

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sqltree.log")
	cfg := config.Default().Log
	cfg.File = path

	out := Open(cfg)
	out.Logger("to-tree").Printf("wrote %d files", 3)
	out.Logger("watch").Print("idle")
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[to-tree] "))
	assert.True(t, strings.HasSuffix(lines[0], "wrote 3 files"))
	assert.True(t, strings.HasPrefix(lines[1], "[watch] "))
}

func TestOpenQuiet(t *testing.T) {
	cfg := config.Default().Log
	cfg.Quiet = true
	cfg.File = filepath.Join(t.TempDir(), "never.log")

	out := Open(cfg)
	assert.Equal(t, io.Discard, out.Writer())
	out.Logger("x").Print("dropped")
	require.NoError(t, out.Close())

	_, err := os.Stat(cfg.File)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenDefaultIsStderr(t *testing.T) {
	out := Open(config.Default().Log)
	assert.Equal(t, os.Stderr, out.Writer())
	assert.NoError(t, out.Close())
}
