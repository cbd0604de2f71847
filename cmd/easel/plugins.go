package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/core/plugin"
	"github.com/sammwyy/easel/plugins"
)

// NewPluginsCmd creates the plugins subcommand.
func NewPluginsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List available plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var infos []plugins.Info
			for _, info := range plugins.Catalog() {
				info.Enabled = cfg.IsPluginEnabled(info.Meta.ID)
				infos = append(infos, info)
			}

			manager := plugin.NewManager(cfg.Core.PluginDir, api.NewLogger("plugin"))
			if err := manager.LoadAll(); err != nil {
				return err
			}
			for _, lp := range manager.Plugins() {
				infos = append(infos, plugins.Describe(lp.Plugin, lp.FilePath, cfg.IsPluginEnabled(lp.Plugin.Meta().ID)))
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), infos)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tCAPABILITIES\tDEPENDS ON\tENABLED\tSOURCE")
			for _, info := range infos {
				caps := make([]string, 0, len(info.Capabilities))
				for _, c := range info.Capabilities {
					caps = append(caps, string(c))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
					info.Meta.ID,
					info.Meta.Name,
					info.Meta.Version,
					orDash(strings.Join(caps, ",")),
					orDash(strings.Join(info.Meta.Dependencies, ",")),
					info.Enabled,
					info.Source)
			}
			return w.Flush()
		},
	}

	addJSONFlag(cmd.Flags(), &asJSON)
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
