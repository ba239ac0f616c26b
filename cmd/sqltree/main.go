// Command sqltree converts SQLite databases to and from canonical,
// version-control-friendly directory trees.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/errs"
	"github.com/Mschirtzinger/sqltree/internal/ui"

	// VCS backends for --commit.
	_ "github.com/Mschirtzinger/sqltree/internal/vcs/git"
	_ "github.com/Mschirtzinger/sqltree/internal/vcs/jj"
)

func main() {
	err := rootCmd.Execute()
	if logOut != nil {
		logOut.Close()
	}
	os.Exit(report(os.Stderr, err))
}

// report prints err and returns the exit code: 0 for success or a
// warning, 2 for a classified conversion failure, 1 for anything else.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if !errs.IsFatal(err) {
		fmt.Fprintf(w, "%s %v\n", ui.RenderWarn("warning:"), err)
		return 0
	}

	msg := err.Error()
	kind := errs.KindOf(err)
	if kind != nil && !strings.Contains(msg, kind.Error()) {
		msg = kind.Error() + ": " + msg
	}
	fmt.Fprintf(w, "%s %s\n", ui.RenderFail("error:"), msg)
	if kind != nil {
		return 2
	}
	return 1
}
