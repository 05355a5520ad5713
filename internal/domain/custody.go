package domain

import "context"

// LockResult is returned by a successful escrow lock.
type LockResult struct {
	TxHash         string
	TradeID        string
	ProgramAddress string
}

// CustodyService is the on-chain escrow program, treated as a black-box
// custody provider. None of these calls are idempotent against the chain,
// so the engine never retries them.
type CustodyService interface {
	// Lock funds escrow from the creator wallet. An empty recipient opens
	// the trade in open-recipient mode; the counterparty is attached later
	// via Join.
	Lock(ctx context.Context, amountCrypto float64, creatorWallet, recipientWallet string) (*LockResult, error)
	// Join attaches the counterparty wallet to an already-funded trade.
	Join(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error)
	Release(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error)
	Refund(ctx context.Context, tradeID, creatorWallet string) (string, error)
	// Split settles a disputed trade with creatorPct percent refunded to
	// the creator and the remainder released to the counterparty.
	Split(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string, creatorPct float64) (string, error)
	// OpenDisputeMarker is best-effort: a failure is logged, never blocking,
	// because the off-chain dispute record is authoritative.
	OpenDisputeMarker(ctx context.Context, tradeID, creatorWallet string) (string, error)
}
