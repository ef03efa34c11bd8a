package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alfredjeanlab/nodegraph/internal/client"
	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:     "layout",
	Short:   "Pipeline layout commands",
	GroupID: "pipeline",
}

var layoutResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move every node back to its default grid slot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scene, err := editorClient.ResetLayout(context.Background())
		if err != nil {
			return err
		}
		return emit(scene, func() { printScene(os.Stdout, scene) })
	},
}

var viewCmd = &cobra.Command{
	Use:       "view [simple|pipeline|toggle]",
	Short:     "Show or switch the active view",
	GroupID:   "pipeline",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(editor.ViewSimple), string(editor.ViewPipeline), "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if len(args) == 0 {
			s, err := editorClient.Status(ctx)
			if err != nil {
				return err
			}
			return emit(map[string]editor.ViewMode{"view": s.View}, func() { fmt.Println(s.View) })
		}

		var (
			resp *client.ViewResponse
			err  error
		)
		if args[0] == "toggle" {
			resp, err = editorClient.ToggleView(ctx)
		} else {
			mode, perr := editor.ParseViewMode(args[0])
			if perr != nil {
				return perr
			}
			resp, err = editorClient.SetView(ctx, mode)
		}
		if err != nil {
			return err
		}
		return emit(resp, func() {
			fmt.Println(resp.View)
			printStatus(resp.Status)
		})
	},
}

var sceneCmd = &cobra.Command{
	Use:     "scene",
	Short:   "Render the pipeline view",
	GroupID: "pipeline",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scene, err := editorClient.Scene(context.Background())
		if err != nil {
			return err
		}
		return emit(scene, func() { printScene(os.Stdout, scene) })
	},
}

func init() {
	layoutCmd.AddCommand(layoutResetCmd)
}
