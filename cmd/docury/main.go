package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:          "docury",
		Short:        "Chat with a document or web page through a RAG backend",
		SilenceUsage: true,
	}

	root.AddCommand(serveCMD(), chatCMD(), eventsCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
