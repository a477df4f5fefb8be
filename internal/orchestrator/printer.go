package orchestrator

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/compozy/releasesync/internal/domain"
)

var (
	colorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}

	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	passStyle   = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

// Printer writes operator-facing progress. In CI mode it emits plain
// key=value lines instead of styled text.
type Printer struct {
	out io.Writer
	ci  bool
}

// NewPrinter creates a printer
func NewPrinter(out io.Writer, ci bool) *Printer {
	if out == nil {
		out = io.Discard
	}
	return &Printer{out: out, ci: ci}
}

// Writer exposes the underlying writer for collaborators that print themselves
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Scenario announces a classification and its options
func (p *Printer) Scenario(pass int, plan *Plan) {
	if p.ci {
		fmt.Fprintf(p.out, "pass=%d\nscenario=%s\n", pass, plan.Scenario.Kind())
		return
	}
	fmt.Fprintln(p.out, bannerStyle.Render(fmt.Sprintf("[%d] %s", pass, plan.Title)))
	if plan.Summary != "" {
		fmt.Fprintln(p.out, "  "+plan.Summary)
	}
}

// Choice reports the selected option
func (p *Printer) Choice(option Option) {
	if p.ci {
		fmt.Fprintf(p.out, "choice=%s\n", option.Key)
		return
	}
	fmt.Fprintln(p.out, mutedStyle.Render("  → "+option.Label))
}

// Touched prints the external identifier a step changed
func (p *Printer) Touched(action domain.ActionType, identifier string) {
	if p.ci {
		fmt.Fprintf(p.out, "%s=%s\n", action, identifier)
		return
	}
	fmt.Fprintf(p.out, "  %s %s %s\n", passStyle.Render("✓"), action, identifier)
}

// DryRun prints a step that was not executed
func (p *Printer) DryRun(action domain.ActionType, target string) {
	fmt.Fprintf(p.out, "[dry-run] %s %s\n", action, target)
}

// Info prints a plain status line
func (p *Printer) Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.ci {
		fmt.Fprintln(p.out, msg)
		return
	}
	fmt.Fprintln(p.out, "  "+msg)
}

// Warn prints a highlighted warning
func (p *Printer) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.ci {
		fmt.Fprintln(p.out, "warning: "+msg)
		return
	}
	fmt.Fprintln(p.out, warnStyle.Render("⚠ "+msg))
}

// Failure prints a terminal error and the command that finishes the job by hand
func (p *Printer) Failure(err error, recovery string) {
	if p.ci {
		fmt.Fprintf(p.out, "error=%s\n", oneLine(err.Error()))
		if recovery != "" {
			fmt.Fprintf(p.out, "recovery=%s\n", recovery)
		}
		return
	}
	fmt.Fprintln(p.out, failStyle.Render("✗ "+err.Error()))
	if recovery != "" {
		fmt.Fprintln(p.out, "  Next step: "+recovery)
	}
}

// Done prints the final state of a run
func (p *Printer) Done(report *Report) {
	if p.ci {
		fmt.Fprintf(p.out, "final=%s\nmutations=%d\nsession=%s\n", report.Final, report.Mutations, report.SessionID)
		return
	}
	fmt.Fprintln(p.out, passStyle.Render(fmt.Sprintf("✓ %s after %d pass(es), %d change(s)",
		report.Final, len(report.Passes), report.Mutations)))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
