package domain

import "context"

type Balance struct {
	Crypto float64
	Fiat   float64
}

// BalanceCache holds balance figures independently of order state. Reads
// may be stale; Refresh pulls a fresh figure from the wallet service.
type BalanceCache interface {
	// Get returns the cached balance and whether it is still fresh.
	Get(ctx context.Context, wallet string) (*Balance, bool, error)
	Refresh(ctx context.Context, wallet string) (*Balance, error)
}
