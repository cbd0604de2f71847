package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/core/scenestore"
)

// NewScenesCmd creates the scenes subcommand.
func NewScenesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenes",
		Short: "Manage saved scenes",
	}

	cmd.AddCommand(newScenesListCmd())
	cmd.AddCommand(newScenesShowCmd())
	cmd.AddCommand(newScenesDeleteCmd())
	return cmd
}

func openStore() (*scenestore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return scenestore.Open(cfg.Core.SceneDir, api.NewLogger("scenestore"))
}

func newScenesListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved scenes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			summaries, err := store.List()
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED\tELEMENTS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.CreatedAt.Local().Format(time.DateTime), s.Elements)
			}
			return w.Flush()
		},
	}

	addJSONFlag(cmd.Flags(), &asJSON)
	return cmd
}

func newScenesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved scene as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			scene, err := store.Load(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), scene)
		},
	}
}

func newScenesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
