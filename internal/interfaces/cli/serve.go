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
	"go.uber.org/zap"

	"channelwatch/internal/interfaces/httpapi"
)

var flagNoPanel bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll loop and the HTTP control panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runServe)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&flagNoPanel, "no-panel", false, "run the poll loop without the HTTP control panel")
}

func runServe(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.source.Validate(); err != nil {
		return fmt.Errorf("content source is not usable: %w", err)
	}

	if a.cfg.WatchChannelsFile {
		go func() {
			err := a.registry.Watch(ctx, func(n int) {
				a.logger.Info("Channel file changed, reloaded", zap.Int("channels", n))
			})
			if err != nil {
				a.logger.Warn("Channel file watch stopped", zap.Error(err))
			}
		}()
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if !flagNoPanel {
		handler := httpapi.NewHandler(a.service, a.scheduler, a.logger, version)
		router := httpapi.SetupRouter(httpapi.RouterConfig{
			Password:    a.cfg.Password,
			CORSOrigins: a.cfg.CORSOrigins,
			Release:     a.cfg.LogFormat == "json",
		}, a.logger, handler)

		server = &http.Server{
			Addr:              a.cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			a.logger.Info("Control panel listening", zap.String("addr", a.cfg.HTTPAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	a.scheduler.Start(ctx)
	a.logger.Info("channelwatch started",
		zap.String("version", version),
		zap.String("source", a.cfg.Source),
		zap.String("notifier", a.cfg.Notifier),
		zap.Duration("interval", a.cfg.GetCheckInterval()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("control panel failed: %w", err)
	}

	if err := a.scheduler.Stop(); err != nil {
		a.logger.Warn("Scheduler did not stop cleanly", zap.Error(err))
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GetStopTimeout())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Control panel did not shut down cleanly", zap.Error(err))
		}
	}

	if report := a.scheduler.LastReport(); report != nil && runErr == nil {
		a.logger.Info("Last cycle", zap.String("cycle_id", report.ID), zap.Int("failed", report.Failed))
	}
	return runErr
}
