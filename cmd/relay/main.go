package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"udp-relay/internal/config"
	"udp-relay/internal/endpoint"
	"udp-relay/internal/frontend"
	"udp-relay/internal/metrics"
	"udp-relay/internal/node"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
	httpAddr   string
	console    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "relay",
		Short:         "Asynchronous UDP message relay",
		Long:          "relay runs one side of a ping/pong or knock-knock exchange over UDP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file")
	pf.StringSliceVar(&g.envFiles, "env-file", nil, "env files to load instead of ./.env")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.httpAddr, "http", "", "address of the HTTP front end, e.g. 127.0.0.1:8080")
	pf.BoolVar(&g.console, "console", true, "read commands from stdin")

	root.AddCommand(
		newRoleCmd(g, config.RoleServer, "Show incoming Pings and send Pong on demand", config.DefaultPingPort, ""),
		newRoleCmd(g, config.RoleClient, "Send Ping on demand and show the replies", 0,
			fmt.Sprintf("127.0.0.1:%d", config.DefaultPingPort)),
		newRoleCmd(g, config.RoleKnockServer, "Answer KNOCK KNOCK with WHO IS THERE?", config.DefaultKnockPort, ""),
		newRoleCmd(g, config.RoleKnockClient, "Send KNOCK KNOCK on demand and show the replies", 0,
			fmt.Sprintf("127.0.0.1:%d", config.DefaultKnockPort)),
	)

	return root
}

func newRoleCmd(g *globalFlags, role, short string, port int, server string) *cobra.Command {
	var (
		portFlag   int
		serverFlag string
	)

	cmd := &cobra.Command{
		Use:   role,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(role, g.configPath, g.envFiles...)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				return err
			}

			// flags win over file and environment, but only when given
			if cmd.Flags().Changed("port") {
				cfg.Network.Port = portFlag
			}
			if cmd.Flags().Changed("server") {
				cfg.Network.Server = serverFlag
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = g.logLevel
			}
			if cmd.Flags().Changed("http") {
				cfg.Frontend.HTTPAddress = g.httpAddr
			}
			if cmd.Flags().Changed("console") {
				cfg.Frontend.Console = g.console
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
				return err
			}

			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&portFlag, "port", port, "local UDP port, 0 picks a free port")
	if server != "" {
		cmd.Flags().StringVar(&serverFlag, "server", server, "server address host:port")
	}

	return cmd
}

// triggerAction names what a trigger sends, for the console help. The knock
// server has none: it replies on its own.
func triggerAction(role string) string {
	switch role {
	case config.RoleServer:
		return "send Pong to the last client"
	case config.RoleClient:
		return "send Ping"
	case config.RoleKnockClient:
		return "send KNOCK KNOCK"
	default:
		return ""
	}
}

func run(parent context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}

	logger := initLogger(cfg.Logging).With(slog.String("role", cfg.Role))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics(cfg.Role)

	n, err := node.New(ctx, cfg, logger, m)
	if err != nil {
		var bindErr *endpoint.BindError
		if errors.As(err, &bindErr) {
			logger.Error("Cannot bind local address", slog.String("address", bindErr.Addr), slog.String("error", bindErr.Err.Error()))
		} else {
			logger.Error("Failed to start node", slog.String("error", err.Error()))
		}
		return err
	}
	n.Start()

	fe := frontend.New(n.Role, frontend.Options{
		Tick:      cfg.Frontend.GetTickDuration(),
		Instance:  n.InstanceID,
		LocalAddr: n.LocalAddr().String(),
		Logger:    logger,
		Metrics:   m,
	})

	var httpServer *frontend.HTTPServer
	if cfg.Frontend.HTTPAddress != "" {
		httpServer = frontend.NewHTTPServer(cfg.Frontend.HTTPAddress, fe, m, logger)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP front end", slog.String("error", err.Error()))
			n.Close()
			return err
		}
	}

	if cfg.Frontend.Console {
		console := frontend.NewConsole(fe, in, out, triggerAction(cfg.Role))
		go func() {
			err := console.Run(ctx)
			if errors.Is(err, io.EOF) {
				logger.Info("Console input closed, running until interrupted")
				return
			}
			if err != nil {
				logger.Warn("Console stopped", slog.String("error", err.Error()))
			}
			cancel()
		}()
	}

	if err := fe.Run(ctx); err != nil {
		logger.Error("Front end failed", slog.String("error", err.Error()))
	}

	logger.Info("Shutting down...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Warn("HTTP front end shutdown failed", slog.String("error", err.Error()))
		}
		shutdownCancel()
	}

	if err := n.Close(); err != nil {
		logger.Warn("Error closing socket", slog.String("error", err.Error()))
	}

	rtt := m.RoundTripStats()
	logger.Info("Relay stopped",
		slog.Int64("rtt_samples", rtt.Count),
		slog.Float64("rtt_avg_ms", rtt.Avg),
	)
	return nil
}
