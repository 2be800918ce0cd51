package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"signet/internal/broker"
	"signet/internal/cli"
	"signet/internal/config"
	"signet/internal/credstore"
	"signet/internal/oauth"
	"signet/pkg/logging"

	"github.com/spf13/cobra"
)

// brokerShutdownTimeout bounds the drain of in-flight requests on exit.
const brokerShutdownTimeout = 10 * time.Second

// Serve-specific flags
var (
	serveListen      string
	serveAllowRemote bool
	serveTLSCert     string
	serveTLSKey      string
	serveFlags       cli.CommandFlags
)

// serveCmd represents the serve command, which runs the local token broker.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local token broker",
	Long: `Run the local token broker: a loopback HTTP service other local tools
query for valid access tokens instead of re-implementing OAuth themselves.

Endpoints:
  GET /healthz              liveness probe
  GET /v1/providers         configured provider summaries
  GET /v1/token/{provider}  a currently valid access token, refreshed as needed

The broker binds 127.0.0.1:7767 by default and refuses non-loopback
addresses unless --allow-remote and both TLS flags are given. The provider
configuration is watched while serving, so edits to providers.yaml apply
without a restart.

When running as a systemd user service, readiness and shutdown are signaled
through sd_notify.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	cli.RegisterConfigFlags(serveCmd, &serveFlags)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default: broker.addr from configuration, 127.0.0.1:7767)")
	serveCmd.Flags().BoolVar(&serveAllowRemote, "allow-remote", false, "Allow binding a non-loopback address (requires TLS)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file, required for non-loopback serving")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS key file, required for non-loopback serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging(&serveFlags, logging.LevelInfo)

	registry, err := config.NewRegistry(serveFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	cfg := registry.Config()
	if !cfg.Broker.Enabled {
		return fmt.Errorf("the token broker is disabled. Set broker.enabled: true in %s",
			filepath.Join(registry.Path(), "providers.yaml"))
	}

	addr := cfg.Broker.Addr
	if serveListen != "" {
		addr = serveListen
	}
	if addr == "" {
		addr = config.DefaultBrokerAddr
	}

	// Two brokers over the same credential store would race refreshes.
	if serveTLSCert == "" {
		if err := cli.CheckBrokerRunning("http://" + addr); err == nil {
			return fmt.Errorf("a token broker is already running on %s", addr)
		}
	}

	store, err := credstore.NewFileStore(credentialDir(cfg, registry.Path()))
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	manager := oauth.NewManager(registry, store)
	adapter := oauth.NewAdapter(manager, registry, store)
	adapter.Register()
	defer adapter.Close()

	watcher, err := config.NewWatcher(registry, nil)
	if err != nil {
		logging.Warn("Serve", "Configuration watching unavailable: %v", err)
	} else {
		defer watcher.Stop()
	}

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := broker.New(broker.Config{
		Addr:        addr,
		AllowRemote: serveAllowRemote,
		TLSCertFile: serveTLSCert,
		TLSKeyFile:  serveTLSKey,
	}, adapter)
	if err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), brokerShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
