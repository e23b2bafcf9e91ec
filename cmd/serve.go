package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inquest/config"
	"inquest/relay"
	"inquest/store"
	"inquest/wsbridge"
)

var serveConfigPath string
var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection agent and its HTTP/SSE API",
	Long: `Start the detection agent as a long-running process. It accepts
investigation requests over HTTP, streams progress events to clients via
SSE, and delegates deep-dive sub-investigations to the investigation
agent at the configured peer_url.

Requires an agent with role "detection" in the config.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate(serveConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger("inquest")

		stores, err := store.NewBundle(cfg.Storage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer stores.Close()

		ctx := context.Background()

		delegator := wsbridge.NewDelegationClient(wsbridge.ClientOptions{
			PeerURL:    cfg.Server.PeerURL,
			Role:       config.RoleDetection,
			PeerRole:   config.RoleInvestigation,
			PeerVendor: peerVendor(cfg),
			Logger:     logger,
		})

		rt, err := buildRuntime(ctx, cfg, config.RoleDetection, delegator, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		listen := cfg.Server.Listen
		if serveListen != "" {
			listen = serveListen
		}

		api := relay.NewServer(rt.Executor, rt.Registry, stores, Version, logger)
		srv := &http.Server{
			Addr:    listen,
			Handler: api,
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			logger.Info("detection agent listening", "addr", listen, "peer", cfg.Server.PeerURL)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", "error", err)
				stop <- syscall.SIGTERM
			}
		}()

		<-stop
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	},
}

// peerVendor reports the investigation agent's backend for event
// attribution, falling back to the detection agent's own when the peer
// is not described locally.
func peerVendor(cfg *config.Config) string {
	if a := cfg.AgentByRole(config.RoleInvestigation); a != nil {
		if m, _, err := a.ResolveModel(cfg.Models); err == nil {
			return string(m.Provider)
		}
	}
	if a := cfg.AgentByRole(config.RoleDetection); a != nil {
		if m, _, err := a.ResolveModel(cfg.Models); err == nil {
			return string(m.Provider)
		}
	}
	return ""
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "config.hcl", "Path to config file or directory")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
