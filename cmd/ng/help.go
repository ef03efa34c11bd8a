package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/nodegraph/internal/ui"
	"github.com/spf13/cobra"
)

// Patterns applied to cobra's plain help text.
var (
	// Unindented lines ending in ":" ("Graph:", "Flags:"). "Usage:" is
	// matched too and left plain by styleHeader.
	reHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)

	// Two-space indent, a command name, then the description column.
	reCommandName = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)

	// Flag value types, e.g. "--server string", "--interval duration".
	reValueType = regexp.MustCompile(`(--?\S+\s+)(string|int|float64|duration|strings|stringArray)\b`)

	reDefaultValue = regexp.MustCompile(`\(default [^)]*\)`)
)

// colorizedHelpFunc renders cobra's usage text through colorizeHelp when
// stdout supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	s = reHeader.ReplaceAllStringFunc(s, styleHeader)
	s = reCommandName.ReplaceAllStringFunc(s, func(m string) string {
		p := reCommandName.FindStringSubmatch(m)
		return p[1] + ui.RenderCommand(p[2]) + p[3]
	})
	s = reValueType.ReplaceAllStringFunc(s, func(m string) string {
		p := reValueType.FindStringSubmatch(m)
		return p[1] + ui.RenderMuted(p[2])
	})
	return reDefaultValue.ReplaceAllStringFunc(s, ui.RenderMuted)
}

func styleHeader(m string) string {
	h := strings.TrimSpace(m)
	if h == "Usage:" {
		return h
	}
	return ui.RenderAccent(h)
}
