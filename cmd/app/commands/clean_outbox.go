package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campushq/registration/internal/app"
	"github.com/campushq/registration/internal/config"
)

// RunCleanOutbox deletes processed outbox entries older than the configured
// retention window in a single pass. The worker runs the same cleanup on a
// schedule; this command exists for manual or cron-driven maintenance.
func RunCleanOutbox(ctx context.Context) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	deleted, err := outboxUseCase.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean outbox: %w", err)
	}

	logger.Info("outbox cleanup completed",
		slog.Int64("deleted", deleted),
		slog.Duration("retention", cfg.OutboxRetention),
	)
	return nil
}
