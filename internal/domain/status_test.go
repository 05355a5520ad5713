package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus_LegacyVocabulary(t *testing.T) {
	cases := map[string]OrderStatus{
		"CREATED":               StatusOpen,
		"LISTED":                StatusOpen,
		"ACCEPTED_BY_MERCHANT":  StatusAccepted,
		"MATCHED":               StatusAccepted,
		"ESCROW_FUNDED":         StatusEscrowed,
		"FUNDS_LOCKED":          StatusEscrowed,
		"PAID":                  StatusPaymentSent,
		"FIAT_SENT":             StatusPaymentSent,
		"DONE":                  StatusCompleted,
		"RELEASED":              StatusCompleted,
		"CANCELED":              StatusCancelled,
		"CANCELLED_BY_MERCHANT": StatusCancelled,
		"DISPUTE_OPENED":        StatusDisputed,
		"TIMED_OUT":             StatusExpired,
	}
	for raw, want := range cases {
		got, err := NormalizeStatus(raw)
		require.NoError(t, err, "raw=%s", raw)
		assert.Equal(t, want, got, "raw=%s", raw)
	}
}

func TestNormalizeStatus_CanonicalPassthrough(t *testing.T) {
	for _, s := range []OrderStatus{
		StatusOpen, StatusAccepted, StatusEscrowed, StatusPaymentSent,
		StatusCompleted, StatusCancelled, StatusDisputed, StatusExpired,
	} {
		got, err := NormalizeStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestNormalizeStatus_Idempotent(t *testing.T) {
	first, err := NormalizeStatus("escrow_funded")
	require.NoError(t, err)

	second, err := NormalizeStatus(string(first))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeStatus_TrimsAndUppercases(t *testing.T) {
	got, err := NormalizeStatus("  paid \n")
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentSent, got)
}

func TestNormalizeStatus_UnknownFailsLoudly(t *testing.T) {
	_, err := NormalizeStatus("HALF_DONE")
	require.Error(t, err)

	var normErr *NormalizationError
	require.True(t, errors.As(err, &normErr))
	assert.Equal(t, "HALF_DONE", normErr.Raw)
}

func TestEffectiveStatus(t *testing.T) {
	t.Run("canonical field wins", func(t *testing.T) {
		got, err := EffectiveStatus(&Order{Status: StatusEscrowed, LegacyStatus: "DONE"})
		require.NoError(t, err)
		assert.Equal(t, StatusEscrowed, got)
	})

	t.Run("legacy fallback", func(t *testing.T) {
		got, err := EffectiveStatus(&Order{LegacyStatus: "TAKEN"})
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, got)
	})

	t.Run("non-canonical status field is drift", func(t *testing.T) {
		_, err := EffectiveStatus(&Order{Status: "WEIRD"})
		var normErr *NormalizationError
		require.True(t, errors.As(err, &normErr))
	})
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.False(t, StatusDisputed.Terminal())
	assert.False(t, StatusOpen.Terminal())
	assert.False(t, StatusPaymentSent.Terminal())
}
