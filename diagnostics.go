package gdtf

import (
	"fmt"
	"strings"
)

// Diagnostic is a rustc-style rendering of one HandledProblem: a source
// position, a one-line message, and the recovery action that was taken.
type Diagnostic struct {
	Code     string
	Message  string
	Position Position
	Action   string
}

// Diagnostics converts a ProblemLog into a list of Diagnostics, in the same
// (encounter) order as the log.
func Diagnostics(log ProblemLog) []Diagnostic {
	out := make([]Diagnostic, len(log))
	for i, h := range log {
		out[i] = Diagnostic{
			Code:     h.Problem().problemKind(),
			Message:  h.Problem().Error(),
			Position: h.Position(),
			Action:   h.Action,
		}
	}
	return out
}

// ErrorFormatter renders Diagnostics against the original source text, in
// the style of a Rust compiler error: a header, a source snippet with a
// caret under the offending column, and a "= help:" line with the recovery
// action that was applied.
type ErrorFormatter struct {
	FileName string
	Color    bool
}

// Format renders a single Diagnostic.
func (ef *ErrorFormatter) Format(d Diagnostic, source string) string {
	var sb strings.Builder

	label := "warning"
	if ef.Color {
		label = "\033[33;1mwarning\033[0m"
	}
	sb.WriteString(fmt.Sprintf("%s[%s]: %s\n", label, d.Code, d.Message))
	sb.WriteString(fmt.Sprintf(" --> %s:%s\n", ef.FileName, d.Position))

	if source != "" && d.Position.Line > 0 {
		lines := strings.Split(source, "\n")
		if d.Position.Line <= len(lines) {
			sb.WriteString(fmt.Sprintf("%4d | %s\n", d.Position.Line, lines[d.Position.Line-1]))
			sb.WriteString("     | ")
			if d.Position.Column > 0 {
				sb.WriteString(strings.Repeat(" ", d.Position.Column-1))
				if ef.Color {
					sb.WriteString("\033[33;1m^\033[0m")
				} else {
					sb.WriteString("^")
				}
			}
			sb.WriteString("\n")
		}
	}

	if d.Action != "" {
		sb.WriteString("     = help: " + d.Action + "\n")
	}
	return sb.String()
}

// FormatAll renders every Diagnostic in order, separated by blank lines.
func (ef *ErrorFormatter) FormatAll(diags []Diagnostic, source string) string {
	var sb strings.Builder
	for i, d := range diags {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(ef.Format(d, source))
	}
	return sb.String()
}
