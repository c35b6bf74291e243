package mq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmanager/apiserver/config"
)

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	q, err := Open(ctx, config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, q)

	q, err = Open(ctx, config.MQConfig{Backend: "Memory"})
	require.NoError(t, err)
	require.NotNil(t, q)
	require.NoError(t, q.Close())

	_, err = Open(ctx, config.MQConfig{Backend: "kafka"})
	require.Error(t, err)

	_, err = Open(ctx, config.MQConfig{Backend: BackendPubSub})
	require.ErrorContains(t, err, "project id is required")
}

func TestMemoryBrokerDelivers(t *testing.T) {
	broker := NewMemoryBroker()
	q := New(broker)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- q.Subscribe(ctx, "account-events", func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()
	require.Eventually(t, func() bool { return broker.Subscribers("account-events") == 1 }, time.Second, 5*time.Millisecond)

	id, err := q.Publish(ctx, "account-events", []byte(`{"type":"user.created"}`), map[string]string{"type": "user.created"})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.ID)
		assert.JSONEq(t, `{"type":"user.created"}`, string(msg.Data))
		assert.Equal(t, "user.created", msg.Attributes["type"])
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	// Other channels are isolated.
	_, err = q.Publish(ctx, "other", []byte("x"), nil)
	require.NoError(t, err)
	assert.Empty(t, received)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Zero(t, broker.Subscribers("account-events"))
}

func TestMemoryBrokerClose(t *testing.T) {
	broker := NewMemoryBroker()
	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close())

	_, err := broker.Publish(context.Background(), "c", nil, nil)
	require.ErrorIs(t, err, ErrClosed)

	err = broker.Subscribe(context.Background(), "c", func(context.Context, Message) error { return nil })
	require.ErrorIs(t, err, ErrClosed)

	_, err = NewMemoryBroker().Publish(context.Background(), " ", nil, nil)
	require.Error(t, err)
}

func TestHeaderConversion(t *testing.T) {
	headers := attributesToHeaders(map[string]string{"type": "user.linked"})
	assert.Equal(t, amqp.Table{"type": "user.linked"}, headers)

	attrs := headersToAttributes(amqp.Table{"type": "user.linked", "raw": []byte("b"), "n": int32(3)})
	assert.Equal(t, map[string]string{"type": "user.linked", "raw": "b", "n": "3"}, attrs)
	assert.Nil(t, headersToAttributes(nil))
}
