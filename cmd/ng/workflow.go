package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/client"
	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/idgen"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue the workflow on the execution engine",
	Long: `Queue the workflow on the execution engine.

Without --file the editor server submits its current graph. With --file the
workflow is read locally and posted straight to the engine at --engine.`,
	GroupID: "workflow",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			resp, err := editorClient.Submit(context.Background())
			if err != nil {
				return err
			}
			return emit(resp, func() {
				printStatus(resp.Status)
				if resp.PromptID != "" {
					fmt.Printf("Prompt ID: %s\n", resp.PromptID)
				}
			})
		}

		engineURL := cfg.EngineURL
		if cmd.Flags().Changed("engine") {
			engineURL, _ = cmd.Flags().GetString("engine")
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		resp, err := submitFile(cmd.Context(), file, client.NewHTTPEngine(engineURL, nil), timeout)
		if err != nil {
			return err
		}
		return emit(resp, func() {
			printStatus(resp.Status)
			fmt.Printf("Prompt ID: %s\n", resp.PromptID)
		})
	},
}

// submitFile posts a local workflow file to the engine under a fresh client
// id. An empty workflow is rejected without contacting the engine.
func submitFile(ctx context.Context, path string, engine client.EngineClient, timeout time.Duration) (*client.SubmitResponse, error) {
	text, err := readInput(path)
	if err != nil {
		return nil, err
	}
	payload, err := graph.ParsePayload(text)
	if err != nil {
		return nil, err
	}
	if payload.Len() == 0 {
		return nil, fmt.Errorf("%s: the workflow is empty", path)
	}
	clientID, err := idgen.ClientID()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	id, err := engine.QueuePrompt(ctx, payload, clientID)
	if err != nil {
		return nil, fmt.Errorf("engine rejected workflow: %w", err)
	}
	return &client.SubmitResponse{
		PromptID: id,
		Status:   editor.Status{Severity: editor.SeveritySuccess, Message: "Workflow queued."},
	}, nil
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the workflow",
	Long: `Export the workflow.

With --out the workflow document is downloaded to a local file ("-" for
stdout). Otherwise the server writes it to every destination it was started
with (file, S3, git).`,
	GroupID: "workflow",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		ctx := context.Background()
		if out == "" {
			resp, err := editorClient.Export(ctx)
			if err != nil {
				return err
			}
			return emit(resp, func() { printStatus(resp.Status) })
		}
		data, err := editorClient.Download(ctx)
		if err != nil {
			return err
		}
		if out == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

var fmtCmd = &cobra.Command{
	Use:   "fmt <file|->",
	Short: "Reformat a workflow file",
	Long: `Reformat a workflow file with two-space indentation and stable node
order. Works offline; node types are not checked against a catalog.`,
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}
		formatted, err := formatWorkflow(text)
		if err != nil {
			return err
		}
		write, _ := cmd.Flags().GetBool("write")
		if !write || args[0] == "-" {
			fmt.Println(formatted)
			return nil
		}
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		return os.WriteFile(args[0], []byte(formatted+"\n"), info.Mode().Perm())
	},
}

// formatWorkflow round-trips text through a graph store so the output has
// exactly the shape the editor would save.
func formatWorkflow(text string) (string, error) {
	payload, err := graph.ParsePayload(text)
	if err != nil {
		return "", err
	}
	store := graph.NewStore(catalog.Empty())
	store.LoadFromPayload(payload)
	return store.Serialize().Indent()
}

var catalogCmd = &cobra.Command{
	Use:     "catalog [query]",
	Short:   "List node types, or describe one with --type",
	GroupID: "workflow",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if typ, _ := cmd.Flags().GetString("type"); typ != "" {
			def, err := editorClient.Definition(ctx, typ)
			if err != nil {
				return err
			}
			return emit(def, func() { printDefinition(os.Stdout, def) })
		}
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		opts, err := editorClient.Catalog(ctx, query)
		if err != nil {
			return err
		}
		return emit(opts, func() { printOptions(os.Stdout, opts) })
	},
}

func init() {
	submitCmd.Flags().StringP("file", "f", "", "submit a local workflow file straight to the engine")
	submitCmd.Flags().String("engine", "", "engine URL for --file (default from config)")
	submitCmd.Flags().Duration("timeout", 0, "engine request timeout for --file (0 waits for the engine)")

	exportCmd.Flags().StringP("out", "o", "", "download to a local file instead (- for stdout)")

	fmtCmd.Flags().BoolP("write", "w", false, "rewrite the file in place")

	catalogCmd.Flags().StringP("type", "t", "", "describe one node type")
}
