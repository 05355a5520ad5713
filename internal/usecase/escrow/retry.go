package usecase

import (
	"context"
	"time"
)

const (
	bookkeepingAttempts  = 3
	bookkeepingBaseDelay = 200 * time.Millisecond
)

// withBackoff retries fn with a doubling delay. Used only for the order
// store write after a custody call already succeeded; the custody call
// itself is never retried.
func (uc *DefaultEscrowUsecase) withBackoff(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if uc.Metrics != nil {
			uc.Metrics.BookkeepingRetriesTotal.Inc()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
