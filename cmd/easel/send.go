package main

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/sammwyy/easel/api"
)

// NewSendCmd creates the send subcommand.
func NewSendCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "send <type> [payload-json]",
		Short: "Send a signal to a running session",
		Long: `Send a signal to a running session over its unix socket.

Session commands: flow.coordinate {"orchestrator": id}, scene.save {"name": n},
scene.load {"id": id}, scene.replace {"elements": [...]}, scene.select {"ids": [...]}.
Other types are forwarded to signal subscribers.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Core.SocketPath == "" {
				return fmt.Errorf("core.socket_path is not configured")
			}

			signal := api.Signal{Source: source, Type: args[0]}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &signal.Payload); err != nil {
					return fmt.Errorf("invalid payload: %w", err)
				}
			}

			conn, err := net.DialTimeout("unix", cfg.Core.SocketPath, 5*time.Second)
			if err != nil {
				return fmt.Errorf("failed to connect to session: %w", err)
			}
			defer conn.Close()

			if err := json.NewEncoder(conn).Encode(signal); err != nil {
				return fmt.Errorf("failed to send signal: %w", err)
			}
			cmd.Printf("sent %s\n", signal.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "cli", "signal source")
	return cmd
}
