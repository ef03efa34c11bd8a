package ui

import (
	"strings"
	"testing"
)

func TestColorFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		tty  bool
		want bool
	}{
		{"tty default", nil, true, true},
		{"pipe default", nil, false, false},
		{"NO_COLOR wins", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, true, false},
		{"force without tty", map[string]string{"CLICOLOR_FORCE": "1"}, false, true},
		{"CLICOLOR=0", map[string]string{"CLICOLOR": "0"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			if got := colorFromEnv(getenv, tt.tty); got != tt.want {
				t.Errorf("colorFromEnv = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderStatus(t *testing.T) {
	SetColor(false)
	t.Cleanup(func() { SetColor(true) })

	tests := []struct {
		severity string
		want     string
	}{
		{"success", "✓ Node A (1) added."},
		{"error", "✗ Node A (1) added."},
		{"info", "• Node A (1) added."},
	}
	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			if got := RenderStatus(tt.severity, "Node A (1) added."); got != tt.want {
				t.Errorf("RenderStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPaint(t *testing.T) {
	SetColor(true)
	if got := RenderAccent("x"); !strings.HasPrefix(got, "\x1b[38;5;74m") || !strings.HasSuffix(got, "\x1b[0m") {
		t.Errorf("RenderAccent = %q", got)
	}
	if got := RenderMuted(""); got != "" {
		t.Errorf("empty string should stay empty, got %q", got)
	}
	ForceNoColor()
	if got := RenderError("x"); got != "x" {
		t.Errorf("RenderError without color = %q", got)
	}
	SetColor(true)
}
