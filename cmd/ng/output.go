package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/client"
	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/fields"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
	"github.com/alfredjeanlab/nodegraph/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// emit prints v as JSON under --json, and otherwise calls text.
func emit(v any, text func()) error {
	if jsonOutput {
		return printJSON(v)
	}
	text()
	return nil
}

func printStatus(st editor.Status) {
	if st.Message == "" {
		return
	}
	fmt.Println(ui.RenderStatus(string(st.Severity), st.Message))
}

// errorText prefers the "error" member of a server response. When the
// server also sent a status line, that line is shown instead since it is
// what the editor itself would display.
func errorText(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	var body struct {
		Error  string        `json:"error"`
		Status editor.Status `json:"status"`
	}
	if json.Unmarshal([]byte(apiErr.Body), &body) == nil {
		if body.Status.Severity == editor.SeverityError && body.Status.Message != "" {
			return body.Status.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return apiErr.Error()
}

func printSummary(s *editor.Summary) {
	fmt.Printf("View:      %s\n", s.View)
	fmt.Printf("Nodes:     %d\n", s.Nodes)
	fmt.Printf("Catalog:   %d types\n", s.Catalog)
	fmt.Printf("Client ID: %s\n", s.ClientID)
	printStatus(s.Status)
}

func printOptions(w io.Writer, opts []catalog.Option) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tLABEL")
	for _, o := range opts {
		fmt.Fprintf(tw, "%s\t%s\n", o.Value, o.Label())
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d node types\n", len(opts))
}

func printDefinition(w io.Writer, def *catalog.Definition) {
	fmt.Fprintf(w, "%s\n", ui.RenderAccent(def.Title()))
	fmt.Fprintf(w, "Type:     %s\n", def.Name)
	if def.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", def.Category)
	}
	if def.Description != "" {
		fmt.Fprintf(w, "%s\n", ui.RenderMuted(def.Description))
	}
	for _, g := range []catalog.Group{catalog.Required, catalog.Optional} {
		fs := def.Fields(g)
		if len(fs) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s inputs:\n", strings.ToUpper(string(g[:1]))+string(g[1:]))
		for _, f := range fs {
			typ := f.Schema.Type
			if f.Schema.IsEnum() {
				typ = strings.Join(f.Schema.Options, "|")
			}
			fmt.Fprintf(w, "  %-20s %s\n", f.Name, ui.RenderMuted(typ))
		}
	}
	if len(def.Outputs) > 0 {
		fmt.Fprintln(w, "\nOutputs:")
		for i, o := range def.Outputs {
			fmt.Fprintf(w, "  %d  %-18s %s\n", i, o.Name, ui.RenderMuted(o.Type))
		}
	}
}

func printForm(w io.Writer, f *fields.Form) {
	fmt.Fprintf(w, "%s  %s\n", ui.RenderAccent(f.Title), ui.RenderMuted(f.Subtitle))
	if f.Fallback != "" {
		fmt.Fprintln(w, ui.RenderMuted(f.Fallback))
		return
	}
	for _, g := range []*fields.Group{f.Required, f.Optional} {
		if g == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", g.Title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, fd := range g.Fields {
			value := fd.Value
			if !fd.Set {
				value = ui.RenderMuted(fd.Placeholder)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", fd.Name, fd.Control, value)
		}
		tw.Flush()
	}
	if f.OutputsHeading != "" {
		fmt.Fprintf(w, "\n%s\n", f.OutputsHeading)
		for _, s := range f.Outputs {
			line := fmt.Sprintf("  %d  %s (%s)", s.Index, s.Name, s.Type)
			if s.IsList {
				line += " " + ui.RenderMuted("[list]")
			}
			fmt.Fprintln(w, line)
		}
	}
}

func printScene(w io.Writer, sc *pipeline.Scene) {
	if sc.Empty {
		fmt.Fprintln(w, ui.RenderMuted("No nodes on the canvas."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tX\tY\tINPUTS\tOUTPUTS")
	for _, c := range sc.Cards {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.0f\t%d\t%d\n", c.ID, c.Title, c.Position.X, c.Position.Y, len(c.Inputs), len(c.Outputs))
	}
	tw.Flush()
	if len(sc.Paths) > 0 {
		fmt.Fprintln(w, "\nConnections:")
		for _, p := range sc.Paths {
			fmt.Fprintf(w, "  %s:%d → %s.%s\n", p.From.Node, p.From.Index, p.To.Node, p.To.Field)
		}
	}
	if sel := sc.Selection; sel != nil {
		fmt.Fprintf(w, "\nSelected output: %s:%d\n", sel.Node, sel.Index)
	}
}

// readInput reads a file argument, or stdin when path is "-".
func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
