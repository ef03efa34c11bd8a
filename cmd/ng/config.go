package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alfredjeanlab/nodegraph/internal/config"
	"github.com/alfredjeanlab/nodegraph/internal/idgen"
	"github.com/alfredjeanlab/nodegraph/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Read and write local settings",
	GroupID: "system",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		// The file alone is rewritten so environment overrides are not
		// baked into it.
		c, err := config.ReadFile(path)
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := config.Save(path, c); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if v := os.Getenv(config.EnvName(args[0])); v != "" {
			fmt.Fprintln(os.Stderr, ui.RenderStatus("warn", config.EnvName(args[0])+" is set and overrides the file"))
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting with its effective value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make(map[string]string, len(config.Keys()))
		for _, k := range config.Keys() {
			v, _ := cfg.Get(k)
			if k == "auth_token" && v != "" {
				v = "********"
			}
			values[k] = v
		}
		if jsonOutput {
			return printJSON(values)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, k := range config.Keys() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", k, values[k], ui.RenderMuted(config.EnvName(k)))
		}
		return w.Flush()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a random auth token",
	Long: `Generate a random auth token. With --save it is also stored as
auth_token, which both "ng serve" and the CLI read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("length")
		tok, err := idgen.Token(n)
		if err != nil {
			return err
		}
		if save, _ := cmd.Flags().GetBool("save"); save {
			return configSetCmd.RunE(cmd, []string{"auth_token", tok})
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	configTokenCmd.Flags().Int("length", 32, "token length")
	configTokenCmd.Flags().Bool("save", false, "store the token in the config file")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configTokenCmd)
}
