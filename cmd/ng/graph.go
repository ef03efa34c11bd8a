package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:     "add <type>",
	Short:   "Insert a node of the given type",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := editorClient.Insert(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(resp, func() {
			printStatus(resp.Status)
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"remove"},
	Short:   "Remove nodes and every connection into them",
	GroupID: "graph",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			resp, err := editorClient.Remove(context.Background(), id)
			if err != nil {
				return fmt.Errorf("removing %s: %w", id, err)
			}
			if err := emit(resp, func() { printStatus(resp.Status) }); err != nil {
				return err
			}
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <id> <field> <value>",
	Short: "Edit a literal field value",
	Long: `Edit a literal field value.

INT and FLOAT fields keep the longest numeric prefix of the value ("12abc"
stores 12); a value with no numeric prefix clears the field.`,
	GroupID: "graph",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := editorClient.SetField(context.Background(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return emit(resp, func() {
			if string(resp.Value) == "null" || len(resp.Value) == 0 {
				fmt.Printf("%s.%s cleared\n", args[0], args[1])
			} else {
				fmt.Printf("%s.%s = %s\n", args[0], args[1], resp.Value)
			}
			printStatus(resp.Status)
		})
	},
}

var connectCmd = &cobra.Command{
	Use:     "connect <target> <field> <source> [index]",
	Short:   "Feed output index of source into a field of target",
	GroupID: "graph",
	Args:    cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		index := 0
		if len(args) == 4 {
			n, err := strconv.Atoi(args[3])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid output index %q", args[3])
			}
			index = n
		}
		return runCommand(editor.Command{
			Op:     editor.OpConnect,
			Node:   args[0],
			Field:  args[1],
			Source: args[2],
			Index:  index,
		})
	},
}

var disconnectCmd = &cobra.Command{
	Use:     "disconnect <target> <field>",
	Short:   "Remove the connection into a field",
	GroupID: "graph",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(editor.Command{Op: editor.OpDisconnect, Node: args[0], Field: args[1]})
	},
}

var showCmd = &cobra.Command{
	Use:     "show",
	Short:   "Print the current workflow text",
	GroupID: "graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := editorClient.Workflow(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var formCmd = &cobra.Command{
	Use:     "form <id>",
	Short:   "Show the field form of a node",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := editorClient.Form(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(form, func() { printForm(os.Stdout, form) })
	},
}

var loadCmd = &cobra.Command{
	Use:     "load <file|->",
	Short:   "Replace the graph with a workflow file",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}
		summary, err := editorClient.LoadWorkflow(context.Background(), text)
		if err != nil {
			return err
		}
		return emit(summary, func() {
			fmt.Printf("%d nodes loaded\n", summary.Nodes)
			printStatus(summary.Status)
		})
	},
}

// runCommand dispatches one generic editor command and prints its status.
func runCommand(c editor.Command) error {
	res, err := editorClient.Command(context.Background(), c)
	if err != nil {
		return err
	}
	return emit(res, func() { printStatus(res.Status) })
}
