package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrDisputeNotFound     = errors.New("dispute not found")
	ErrInsufficientBalance = errors.New("insufficient balance to fund escrow")
	ErrRecipientUnresolved = errors.New("counterparty wallet unresolved")
	ErrRateLocked          = errors.New("exchange rate is immutable after acceptance")
)

// PreconditionViolation reports a caller error: wrong role, wrong state or
// missing custody fields. It is never retried and performs no side effects.
type PreconditionViolation struct {
	Op     string
	Reason string
}

func (e *PreconditionViolation) Error() string {
	return fmt.Sprintf("%s: precondition violated: %s", e.Op, e.Reason)
}

func Preconditionf(op, format string, args ...any) error {
	return &PreconditionViolation{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func IsPrecondition(err error) bool {
	var pv *PreconditionViolation
	return errors.As(err, &pv)
}

// CustodyCallFailed carries the provider-supplied reason verbatim so the
// caller can decide on user-facing wording. This core generates none.
type CustodyCallFailed struct {
	Op     string
	Reason string
	Err    error
}

func (e *CustodyCallFailed) Error() string {
	return fmt.Sprintf("custody %s failed: %s", e.Op, e.Reason)
}

func (e *CustodyCallFailed) Unwrap() error { return e.Err }

// BookkeepingSyncFailed means the custody call succeeded but the order
// store write did not, even after retries. The on-chain action is done;
// the record will sync on the next authoritative fetch. Not user-fatal.
type BookkeepingSyncFailed struct {
	Op      string
	OrderID string
	Err     error
}

func (e *BookkeepingSyncFailed) Error() string {
	return fmt.Sprintf("%s: custody succeeded for order %s but bookkeeping is pending: %v", e.Op, e.OrderID, e.Err)
}

func (e *BookkeepingSyncFailed) Unwrap() error { return e.Err }

// Transient reports whether the failure resolves on its own, so the
// presentation layer can pick wording without string matching.
func (e *BookkeepingSyncFailed) Transient() bool { return true }
