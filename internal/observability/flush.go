package observability

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry syncs the logger before process exit. Metrics are scraped,
// not pushed, so logs are all there is to flush. Call after in-flight
// requests and background revalidations have drained.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush telemetry: %w", err)
	}
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !ignorableSyncError(err) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

// ignorableSyncError reports errors fsync returns for terminals and pipes,
// which have nothing to flush.
func ignorableSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
