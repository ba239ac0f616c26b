package tree

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

// FormatVersion is the layout version written to the FORMAT file.
const FormatVersion = "v1.0.0"

// DescriptorFile is the per-table descriptor inside each table directory.
const DescriptorFile = "table.toml"

const (
	formatFile    = "FORMAT"
	formatProduct = "sqltree"
	viewsFile     = "views.sql"
	viewTrigFile  = "view_triggers.sql"
	schemaFile    = "schema.sql"
	indexesFile   = "indexes.sql"
	triggersFile  = "triggers.sql"
	rowsDir       = "rows"
	shardExt      = ".tsv"
	tempPrefix    = ".sqltree-"
	tempSuffix    = ".tmp"
)

func formatContent() []byte {
	return []byte(formatProduct + " " + FormatVersion + "\n")
}

// CheckFormat verifies that root holds a tree this version can read.
func CheckFormat(root string) error {
	path := filepath.Join(root, formatFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return errs.New(errs.ErrMalformedTree, "%s is not a sqltree directory (no %s file)", root, formatFile)
	}
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "failed to read %s", formatFile)
	}

	fields := strings.Fields(string(data))
	if len(fields) != 2 || fields[0] != formatProduct || !semver.IsValid(fields[1]) {
		return errs.New(errs.ErrMalformedTree, "unrecognized format line %q", strings.TrimSpace(string(data))).InFile(formatFile, 1)
	}
	version := fields[1]
	if semver.Major(version) != semver.Major(FormatVersion) || semver.Compare(version, FormatVersion) > 0 {
		return errs.New(errs.ErrMalformedTree, "tree format %s is not supported (this build reads %s)", version, FormatVersion).InFile(formatFile, 1)
	}
	return nil
}
