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
	"inquest/wsbridge"
)

var peerConfigPath string
var peerListen string

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run the investigation agent's delegation endpoint",
	Long: `Start the investigation agent as a long-running process serving the
delegation WebSocket endpoint at /ws/delegate. The detection agent dials
this endpoint when it hands off a sub-investigation.

Requires an agent with role "investigation" in the config.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate(peerConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger("inquest-peer")
		ctx := context.Background()

		rt, err := buildRuntime(ctx, cfg, config.RoleInvestigation, nil, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		// cfg.Server.Listen belongs to the detection API; the delegation
		// endpoint gets its own address so both roles can share a config.
		listen := peerListen

		bridge := wsbridge.NewServer(rt.Executor, rt.Registry, logger)
		mux := http.NewServeMux()
		mux.Handle("/ws/delegate", bridge.Handler())

		srv := &http.Server{
			Addr:    listen,
			Handler: mux,
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			logger.Info("investigation agent listening", "addr", listen)
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

func init() {
	peerCmd.Flags().StringVarP(&peerConfigPath, "config", "c", "config.hcl", "Path to config file or directory")
	peerCmd.Flags().StringVar(&peerListen, "listen", ":8321", "Listen address for the delegation endpoint")
	rootCmd.AddCommand(peerCmd)
}
