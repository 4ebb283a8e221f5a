package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/docury/internal/chat"
	"github.com/MikeSquared-Agency/docury/internal/client"
	"github.com/MikeSquared-Agency/docury/internal/config"
	"github.com/MikeSquared-Agency/docury/internal/session"
	"github.com/MikeSquared-Agency/docury/internal/terminal"
)

func chatCMD() *cobra.Command {
	var gateway, layout string
	var chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session against the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("gateway") {
				cfg.GatewayURL = gateway
			}
			if cmd.Flags().Changed("layout") {
				cfg.Layout = layout
			}
			return runChat(cfg)
		},
	}
	chatCmd.Flags().StringVar(&gateway, "gateway", "http://localhost:3000", "gateway base URL (overrides DOCURY_GATEWAY_URL)")
	chatCmd.Flags().StringVar(&layout, "layout", "single", "single (file only) or dual (file or URL)")
	return chatCmd
}

func runChat(cfg config.Config) error {
	l, err := chat.ParseLayout(cfg.Layout)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	logger.Info("chat session started", "session_id", sess, "gateway", cfg.GatewayURL, "layout", l)

	ctrl := chat.NewController(client.New(cfg.GatewayURL), sess, l, logger)
	return terminal.New(ctrl, os.Stdout).Run(ctx, os.Stdin)
}
