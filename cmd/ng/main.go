package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/nodegraph/internal/client"
	"github.com/alfredjeanlab/nodegraph/internal/config"
	"github.com/alfredjeanlab/nodegraph/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool

	cfg          *config.Config
	editorClient client.EditorClient
)

var rootCmd = &cobra.Command{
	Use:           "ng <command>",
	Short:         "Build and submit node-graph workflows",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		url := cfg.ServerURL
		if cmd.Flags().Changed("server") {
			url = serverURL
		}
		token := cfg.AuthToken
		if cmd.Flags().Changed("token") {
			token = authToken
		}
		editorClient = client.NewHTTPEditor(url, token)
		return nil
	},
}

// loadConfig reads the config file and environment once per invocation.
func loadConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = c
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", config.Default().ServerURL, "editor server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for the editor server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "graph", Title: "Graph:"},
		&cobra.Group{ID: "pipeline", Title: "Pipeline:"},
		&cobra.Group{ID: "workflow", Title: "Workflow:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Graph
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(loadCmd)

	// Pipeline
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(sceneCmd)

	// Workflow
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(catalogCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: "+errorText(err)))
		os.Exit(1)
	}
}
