// Package output provides consistent CLI output formatting for neodb commands.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color modes accepted by output.color in the config.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Palette shared by all styled output.
const (
	colorLime     = "154"
	colorYellow   = "220"
	colorRed      = "196"
	colorGray     = "245"
	colorDarkGray = "238"
)

type styles struct {
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
}

func colorStyles() styles {
	return styles{
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime)),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorLime)),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
	}
}

func plainStyles() styles {
	return styles{
		header:  lipgloss.NewStyle(),
		success: lipgloss.NewStyle(),
		warning: lipgloss.NewStyle(),
		err:     lipgloss.NewStyle(),
		label:   lipgloss.NewStyle(),
		dim:     lipgloss.NewStyle(),
	}
}

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   styles
}

// New creates a Writer in auto color mode.
func New(out io.Writer) *Writer {
	return NewWithColor(out, ColorAuto)
}

// NewWithColor creates a Writer honoring the given color mode.
func NewWithColor(out io.Writer, mode string) *Writer {
	w := &Writer{out: out, useColor: ShouldColor(out, mode)}
	if w.useColor {
		w.styles = colorStyles()
	} else {
		w.styles = plainStyles()
	}
	return w
}

// ShouldColor reports whether output to out should be styled.
// "always" and "never" are absolute; "auto" requires a terminal and no NO_COLOR.
func ShouldColor(out io.Writer, mode string) bool {
	switch strings.ToLower(mode) {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// UseColor reports whether the writer emits styled output.
func (w *Writer) UseColor() bool {
	return w.useColor
}

// Out returns the underlying writer, for callers that stream data rows.
func (w *Writer) Out() io.Writer {
	return w.out
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.err.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold title followed by a rule of the same width.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.header.Render(title))
	_, _ = fmt.Fprintln(w.out, w.styles.dim.Render(strings.Repeat("─", lipgloss.Width(title))))
}

// Line prints msg unadorned.
func (w *Writer) Line(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Linef prints a formatted line unadorned.
func (w *Writer) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}

// KV prints an indented "key: value" pair with the key padded to width.
func (w *Writer) KV(key string, value any, width int) {
	label := fmt.Sprintf("%-*s", width+1, key+":")
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.label.Render(label), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
