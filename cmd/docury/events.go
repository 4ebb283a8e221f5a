package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/docury/internal/config"
	"github.com/MikeSquared-Agency/docury/internal/events"
)

func eventsCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Tail gateway activity from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(config.Load())
		},
	}
}

func runEvents(cfg config.Config) error {
	if cfg.NatsURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	logger := setupLogging(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ev, err := events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer ev.Close()

	if err := ev.Subscribe(events.SubjectAll, func(subject string, data []byte) {
		var a events.Activity
		if err := json.Unmarshal(data, &a); err != nil {
			logger.Warn("malformed activity", "subject", subject, "error", err)
			return
		}
		printActivity(a)
	}); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func printActivity(a events.Activity) {
	status := color.New(color.FgGreen)
	if a.Status >= 400 {
		status = color.New(color.FgRed)
	}
	fmt.Printf("%s %-6s %s session=%s %s\n",
		a.Timestamp, a.Endpoint, status.Sprint(a.Status), a.SessionID, a.Label)
}
