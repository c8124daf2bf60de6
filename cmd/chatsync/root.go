package main

import (
	"fmt"
	"time"

	"chatsync/internal/app"
	"chatsync/internal/config"
	"chatsync/internal/services"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var port int

	root := &cobra.Command{
		Use:   "chatsync",
		Short: "Headless realtime chat client with a local bridge for front ends",
		Long: `chatsync keeps a session with a realtime chat server: open room tabs,
optimistic sends reconciled against server echoes, unread counters and moderation
state. A front end drives it through a local HTTP/WebSocket bridge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.BridgePort = port
			}
			return app.Run(cfg, app.NewLogger(cfg.LogLevel))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version
	root.SetVersionTemplate(versionTemplate())
	root.Flags().IntVarP(&port, "port", "p", 0, "bridge port (overrides BRIDGE_PORT)")

	root.AddCommand(newTokenCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bridge token signed with BRIDGE_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.BridgeSecret == "" {
				return fmt.Errorf("BRIDGE_SECRET is not set")
			}
			identity, err := app.ResolveIdentity(cfg)
			if err != nil {
				return fmt.Errorf("resolve identity: %w", err)
			}
			tok, err := services.IssueBridgeToken(cfg.BridgeSecret, identity.Username, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func versionTemplate() string {
	if commit != "none" && commit != "" {
		return fmt.Sprintf("chatsync %s\n  commit: %s\n  built:  %s\n", version, commit, date)
	}
	return fmt.Sprintf("chatsync %s\n", version)
}
