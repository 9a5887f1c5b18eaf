package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/amonks/taskdash/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration as TOML.

Settings come from ~/.config/taskdash/config.toml, then ./taskdash.toml,
then TASKDASH_* environment variables (a .env file in the working
directory is loaded first). Use --env to list the variables.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configEnv bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configEnv, "env", false, "List the environment variables instead")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configEnv {
		fmt.Print(config.Usage())
		return nil
	}
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}
