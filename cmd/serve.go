package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	maintenanceInterval = 10 * time.Minute
	jobRetention        = 24 * time.Hour
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the signed extraction relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initRelay(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           env.Server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		srv.RegisterOnShutdown(env.Server.CloseStreams)

		go runMaintenance(ctx, env)

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return eris.Wrap(err, "server listen")
			}
		case <-ctx.Done():
		}

		zap.L().Info("shutting down server")
		return shutdown(srv, env, cfg.Server.ShutdownTimeout())
	},
}

// shutdown stops the listener and then drains running jobs. Each phase gets
// its own timeout so a slow connection does not eat the drain budget.
func shutdown(srv *http.Server, env *relayEnv, timeout time.Duration) error {
	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), timeout)
	defer cancelHTTP()
	if err := srv.Shutdown(httpCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), timeout)
	defer cancelDrain()
	if err := env.Dispatcher.Wait(drainCtx); err != nil {
		zap.L().Warn("abandoned running jobs", zap.Error(err))
		return err
	}
	zap.L().Info("server stopped")
	return nil
}

// runMaintenance prunes stale quota counters and finished jobs until ctx
// is done.
func runMaintenance(ctx context.Context, env *relayEnv) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := env.Limiter.PruneBefore(ctx); err != nil {
				zap.L().Warn("prune quota counters", zap.Error(err))
			}
			if n := env.Dispatcher.Registry().Prune(now.Add(-jobRetention)); n > 0 {
				zap.L().Debug("pruned finished jobs", zap.Int("count", n))
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
