package main

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/ui"
)

var (
	// "--crawler string", "-o, --output string"
	reFlagType = regexp.MustCompile(`^(\s+(?:-\S, )?--\S+ )(string|strings|int|duration)\b`)
	reDefault  = regexp.MustCompile(`\(default [^)]*\)`)
)

// colorizedHelpFunc prints the command description and usage, styled when
// stdout is a color terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		desc := cmd.Long
		if desc == "" {
			desc = cmd.Short
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)

		if ui.ShouldUseColor(os.Stdout) {
			ui.SetColor(true)
		}
		if desc != "" {
			fmt.Fprintf(out, "%s\n\n", desc)
		}
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput styles cobra's usage text one line at a time. Section
// headers are accented, command names highlighted, and flag types and
// defaults muted. With color off the text is returned unchanged.
func colorizeHelpOutput(s string) string {
	lines := strings.Split(s, "\n")
	inFlags := false
	for i, line := range lines {
		switch {
		case line == "":
		case !strings.HasPrefix(line, " ") && strings.HasSuffix(line, ":"):
			inFlags = strings.HasSuffix(line, "Flags:")
			lines[i] = ui.RenderAccent(line)
		case inFlags:
			if m := reFlagType.FindStringSubmatchIndex(line); m != nil {
				line = line[:m[4]] + ui.RenderMuted(line[m[4]:m[5]]) + line[m[5]:]
			}
			lines[i] = reDefault.ReplaceAllStringFunc(line, ui.RenderMuted)
		case strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "   "):
			name, rest, ok := strings.Cut(line[2:], " ")
			if ok {
				lines[i] = "  " + ui.RenderCommand(name) + " " + rest
			}
		}
	}
	return strings.Join(lines, "\n")
}
