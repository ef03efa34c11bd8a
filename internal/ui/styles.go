// Package ui renders terminal output for the ng CLI.
package ui

import (
	"fmt"
	"sync/atomic"
)

// ANSI 256 colors.
const (
	colorAccent  = 74  // blue
	colorCommand = 250 // light gray
	colorMuted   = 245 // medium gray
	colorSuccess = 114 // green
	colorError   = 203 // red
	colorWarn    = 179 // amber
)

var noColor atomic.Bool

// ForceNoColor disables color output globally.
func ForceNoColor() { noColor.Store(true) }

// SetColor turns color output on or off.
func SetColor(on bool) { noColor.Store(!on) }

func paint(color int, s string) string {
	if noColor.Load() || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name.
func RenderCommand(s string) string { return paint(colorCommand, s) }

// RenderError returns s in the error color.
func RenderError(s string) string { return paint(colorError, s) }

// RenderStatus renders one status line, colored by severity ("info",
// "success" or "error").
func RenderStatus(severity, message string) string {
	switch severity {
	case "success":
		return paint(colorSuccess, "✓ ") + message
	case "error":
		return paint(colorError, "✗ ") + paint(colorError, message)
	case "warn":
		return paint(colorWarn, "! ") + message
	}
	return paint(colorAccent, "• ") + message
}
