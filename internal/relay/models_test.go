package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dErrors "tessera/pkg/domain-errors"
)

func TestDecodeNotification(t *testing.T) {
	valid := Notification{
		EventID:     "evt-1",
		Depositor:   "holder-1",
		Amount:      100,
		DepositedAt: time.Now().UTC(),
	}

	t.Run("round trip", func(t *testing.T) {
		payload, err := valid.Encode()
		require.NoError(t, err)
		got, err := DecodeNotification(payload)
		require.NoError(t, err)
		require.Equal(t, valid.EventID, got.EventID)
		require.Equal(t, valid.Depositor, got.Depositor)
		require.Equal(t, valid.Amount, got.Amount)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeNotification([]byte("deposit 100"))
		require.Error(t, err)
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("missing event id", func(t *testing.T) {
		n := valid
		n.EventID = ""
		_, err := n.Encode()
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("invalid depositor", func(t *testing.T) {
		_, err := DecodeNotification([]byte(`{"event_id":"evt-1","depositor":"","amount":100}`))
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := DecodeNotification([]byte(`{"event_id":"evt-1","depositor":"holder-1","amount":0}`))
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestStateTerminality(t *testing.T) {
	require.False(t, StateReceived.IsTerminal())
	require.False(t, StateSubmitted.IsTerminal())
	require.True(t, StateCompleted.IsTerminal())
	require.True(t, StateFailed.IsTerminal())
}
