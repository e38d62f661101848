// Package ui provides colored console output. Messages go to stderr so
// stdout stays reserved for rendered YAML.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	// Colors
	Red    = color.New(color.FgRed)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Blue   = color.New(color.FgBlue)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
)

// Output receives status messages.
var Output io.Writer = color.Error

// Success prints a green success message with checkmark.
func Success(format string, args ...any) {
	Green.Fprintf(Output, "✓ "+format+"\n", args...)
}

// Error prints a red error message with X.
func Error(format string, args ...any) {
	Red.Fprintf(Output, "✗ "+format+"\n", args...)
}

// Warning prints a yellow warning message.
func Warning(format string, args ...any) {
	Yellow.Fprintf(Output, "⚠ "+format+"\n", args...)
}

// Info prints a blue info message.
func Info(format string, args ...any) {
	Blue.Fprintf(Output, format+"\n", args...)
}

// Header prints a bold header.
func Header(format string, args ...any) {
	Bold.Fprintf(Output, format+"\n", args...)
}

// Fatal prints an error and exits with code.
func Fatal(code int, format string, args ...any) {
	Error(format, args...)
	os.Exit(code)
}

// Diff writes a unified-style diff to w, coloring added and removed lines.
func Diff(w io.Writer, diff string) {
	scanner := bufio.NewScanner(strings.NewReader(diff))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "+"):
			Green.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			Red.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			Cyan.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}
