package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	var (
		url         string
		interval    time.Duration
		stallChecks int
	)

	cmd := &cobra.Command{
		Use:          "relay-watch",
		Short:        "Watch a relay's HTTP front end for lost replies",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("=== Relay watch: %s ===\n", url)
			fmt.Println("Press Ctrl+C to stop")

			w := NewWatcher(strings.TrimSuffix(url, "/"), stallChecks, os.Stdout)
			return w.Run(ctx, interval)
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8080", "base URL of the relay HTTP front end")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "time between checks")
	cmd.Flags().IntVar(&stallChecks, "stall-checks", 3, "checks without a reply before warning")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
