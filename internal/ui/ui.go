// Package ui renders CLI status output and asks for confirmation.
//
// Colors follow the terminal's capabilities. Output that is not a terminal,
// or a NO_COLOR environment, gets plain text.
package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/Mschirtzinger/sqltree/internal/tree"
)

// ErrNotInteractive is returned by Confirm when stdin or stdout is not a
// terminal.
var ErrNotInteractive = errors.New("not an interactive terminal")

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"})
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"})
)

func init() {
	if !isTerminal(os.Stdout) || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// RenderPass renders s as a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders s as a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders s as an error.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent highlights s.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted de-emphasizes s.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// PrintPlan writes one line per planned change: "+" create, "~" update,
// "-" delete, followed by a summary line.
func PrintPlan(w io.Writer, p *tree.Plan) {
	for _, c := range p.Changes {
		switch c.Op {
		case tree.OpCreate:
			fmt.Fprintf(w, "%s %s\n", RenderPass("+"), c.Path)
		case tree.OpUpdate:
			fmt.Fprintf(w, "%s %s\n", RenderWarn("~"), c.Path)
		case tree.OpDelete:
			fmt.Fprintf(w, "%s %s\n", RenderFail("-"), c.Path)
		}
	}
	fmt.Fprintln(w, Summary(p))
}

// Summary returns a one-line description of p.
func Summary(p *tree.Plan) string {
	if p.Empty() {
		return RenderMuted("no changes")
	}
	created, updated, deleted := p.Count()
	parts := make([]string, 0, 3)
	if created > 0 {
		parts = append(parts, fmt.Sprintf("%d created", created))
	}
	if updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", updated))
	}
	if deleted > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", deleted))
	}
	if len(parts) == 0 {
		return RenderMuted("empty directories removed")
	}
	return strings.Join(parts, ", ")
}

// Confirm asks a yes/no question. It returns ErrNotInteractive without
// prompting when there is no terminal to ask on.
func Confirm(title string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNotInteractive
	}

	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
