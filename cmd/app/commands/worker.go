package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/campushq/registration/internal/app"
	"github.com/campushq/registration/internal/config"
)

// RunWorker starts the pipeline worker: the outbox publisher and its retention
// cleanup, the task consumer, and the timeout scanner, plus the metrics server
// when enabled. All loops share one context; the first fatal error or a
// SIGINT/SIGTERM stops the whole group.
func RunWorker(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	consumerUseCase, err := container.ConsumerUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize consumer use case: %w", err)
	}

	timeoutScanner, err := container.TimeoutScanner()
	if err != nil {
		return fmt.Errorf("failed to initialize timeout scanner: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := outboxUseCase.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox publisher error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := outboxUseCase.StartCleanup(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox cleanup error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := consumerUseCase.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("task consumer error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := timeoutScanner.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("timeout scanner error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.Start(groupCtx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("worker stopped")
	return nil
}
