package amqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionEventMessageJSON(t *testing.T) {
	msg := NewTransactionEventMessage("tx-123")
	require.False(t, msg.Timestamp.IsZero())

	body, err := msg.ToJSON()
	require.NoError(t, err)

	got, err := TransactionEventMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "tx-123", got.ID)
}

func TestTransactionEventMessageFromBadJSON(t *testing.T) {
	_, err := TransactionEventMessageFromJSON([]byte("not json"))
	assert.Error(t, err)
}
