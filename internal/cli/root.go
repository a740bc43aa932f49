// Package cli implements the memu-bridge CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memu-bridge",
	Short: "Stdio bridge to an in-process memory service",
	Long: "A newline-delimited JSON bridge that multiplexes requests onto cached memory " +
		"service instances. Daemon mode keeps in-memory providers alive across calls; " +
		"run mode performs a single request/response cycle.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// newLogger builds the stderr logger. Stdout carries protocol output only.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
