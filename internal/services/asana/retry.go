package asana

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// retryWithBackoff retries operation up to maxAttempts times.
// Delays grow quadratically: 500ms, 2s, 4.5s...
func retryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, log *zap.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				log.Info("Operation succeeded on retry", zap.Int("attempt", attempt), zap.Int("max_attempts", maxAttempts))
			}
			return nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		backoff := time.Duration(500*attempt*attempt) * time.Millisecond
		log.Warn("Attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
