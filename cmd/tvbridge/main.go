// Gray Logic TV Bridge
//
// This is the entry point for the TV bridge. It pairs with a smart TV over
// its encrypted remote-control protocol and exposes the TV to the rest of
// the site:
//   - MQTT commands, acks and retained state under graylogic/*/tv/{device}
//   - A REST API and WebSocket event stream for panels and scripts
//   - One-shot CLI commands for pairing and manual control
//
// Run "tvbridge" or "tvbridge serve" for the long-running service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/gray-logic-tvbridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the default configuration path.
const configEnvVar = "TVBRIDGE_CONFIG"

func main() {
	// Cancel on Ctrl+C or SIGTERM so every command shuts down cleanly
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the service.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tvbridge",
		Short:         "Encrypted smart TV remote and MQTT bridge",
		Long:          "Pairs with a smart TV, keeps its encrypted control channel and bridges it to MQTT and HTTP.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (env "+configEnvVar+")")

	root.AddCommand(
		newServeCmd(&configPath),
		newPairCmd(&configPath),
		newSendCmd(&configPath),
		newTextCmd(&configPath),
		newPowerCmd(&configPath),
		newStatusCmd(&configPath),
		newTokenCmd(&configPath),
	)
	return root
}

// getConfigPath returns the configuration file path.
// Uses TVBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
