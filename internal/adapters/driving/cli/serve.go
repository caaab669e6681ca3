package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ReylordDev/psycluster/internal/adapters/driving/gateway"
	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
	"github.com/ReylordDev/psycluster/internal/logger"
)

const defaultListenAddr = "127.0.0.1:8765"

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket gateway",
	Long: `Starts the websocket gateway and serves the command catalog to
clients until interrupted. The listen address comes from the --listen
flag, the listen_addr configuration key, or the default, in that order.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides configuration)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if dispatcher == nil || broker == nil {
		return errors.New("gateway services not configured")
	}

	addr := listenAddr
	if addr == "" && configStore != nil {
		addr = configStore.GetString(driven.ConfigKeyListenAddr)
	}
	if addr == "" {
		addr = defaultListenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configStore != nil {
		watchConfig(ctx, configStore)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: gateway.NewServer(dispatcher, broker).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		cmd.Printf("Listening on ws://%s/ws\n", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
	}

	cmd.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// watchConfig logs configuration reloads for the lifetime of the
// server. Address changes still require a restart.
func watchConfig(ctx context.Context, store driven.ConfigStore) {
	changes, err := store.Watch(ctx)
	if err != nil {
		logger.Warn("Config watch unavailable: %v", err)
		return
	}
	go func() {
		for range changes {
			logger.Info("Configuration reloaded")
		}
	}()
}
