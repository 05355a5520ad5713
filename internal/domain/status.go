package domain

import (
	"fmt"
	"strings"
)

// NormalizationError signals an unrecognized status string. Schema drift
// must surface loudly instead of being coerced to a default.
type NormalizationError struct {
	Raw string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("unrecognized order status %q", e.Raw)
}

// legacyStatuses folds the old store vocabulary into the canonical set.
// The mapping is total over everything the store ever emitted; anything
// outside it is schema drift and fails normalization.
var legacyStatuses = map[string]OrderStatus{
	"CREATED":               StatusOpen,
	"NEW":                   StatusOpen,
	"PENDING":               StatusOpen,
	"LISTED":                StatusOpen,
	"ACCEPTED_BY_MERCHANT":  StatusAccepted,
	"ACCEPTED_BY_USER":      StatusAccepted,
	"TAKEN":                 StatusAccepted,
	"MATCHED":               StatusAccepted,
	"ESCROW":                StatusEscrowed,
	"ESCROW_FUNDED":         StatusEscrowed,
	"FUNDS_LOCKED":          StatusEscrowed,
	"PAID":                  StatusPaymentSent,
	"FIAT_SENT":             StatusPaymentSent,
	"PAYMENT_CONFIRMED":     StatusPaymentSent,
	"DONE":                  StatusCompleted,
	"RELEASED":              StatusCompleted,
	"SUCCESS":               StatusCompleted,
	"CANCELED":              StatusCancelled,
	"CANCELLED_BY_USER":     StatusCancelled,
	"CANCELLED_BY_MERCHANT": StatusCancelled,
	"REJECTED":              StatusCancelled,
	"DISPUTE_CREATED":       StatusDisputed,
	"DISPUTE_OPENED":        StatusDisputed,
	"CONFLICT":              StatusDisputed,
	"TIMED_OUT":             StatusExpired,
	"TIMEOUT":               StatusExpired,
}

var canonicalStatuses = map[OrderStatus]struct{}{
	StatusOpen:        {},
	StatusAccepted:    {},
	StatusEscrowed:    {},
	StatusPaymentSent: {},
	StatusCompleted:   {},
	StatusCancelled:   {},
	StatusDisputed:    {},
	StatusExpired:     {},
}

// NormalizeStatus maps a raw status value to the canonical enumeration.
// Already-canonical input comes back unchanged, so re-normalization is
// idempotent. Unknown input returns a *NormalizationError.
func NormalizeStatus(raw string) (OrderStatus, error) {
	upper := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := canonicalStatuses[upper]; ok {
		return upper, nil
	}
	if canonical, ok := legacyStatuses[string(upper)]; ok {
		return canonical, nil
	}
	return "", &NormalizationError{Raw: raw}
}

// EffectiveStatus returns the canonical status of a snapshot. A canonical
// Status field is authoritative; otherwise the legacy value is folded.
func EffectiveStatus(o *Order) (OrderStatus, error) {
	if o.Status != "" {
		if _, ok := canonicalStatuses[o.Status]; !ok {
			return "", &NormalizationError{Raw: string(o.Status)}
		}
		return o.Status, nil
	}
	return NormalizeStatus(o.LegacyStatus)
}
