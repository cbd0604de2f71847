package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sammwyy/easel/core/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the easel CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "easel",
		Short: "Easel - a plugin host for canvas editors",
		Long: `Easel hosts canvas plugins: data readers, flow visualizers, signal
emitters and orchestrators, bound to one shared canvas.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewPluginsCmd())
	cmd.AddCommand(NewScenesCmd())
	cmd.AddCommand(NewSendCmd())

	return cmd
}

// loadConfig loads the config named by --config, or the defaults
func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configFile)
}

// addJSONFlag registers the shared --json output flag
func addJSONFlag(flags *pflag.FlagSet, target *bool) {
	flags.BoolVar(target, "json", false, "print JSON instead of a table")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
