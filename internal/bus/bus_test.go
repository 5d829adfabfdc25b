package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectOrSkip dials a local NATS server and skips the test when none
// is reachable; these tests exercise the client against a real server
// rather than a fake, and do nothing useful without one running.
func connectOrSkip(t *testing.T) *Bus {
	t.Helper()
	b, err := Connect(Config{URL: "nats://127.0.0.1:4222", MaxRetries: 1, RetryInterval: 10 * time.Millisecond})
	if err != nil {
		t.Skip("no local NATS server reachable, skipping bus integration test")
	}
	return b
}

func TestBus_SendAndReceive_RoundTrip(t *testing.T) {
	b := connectOrSkip(t)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	received := make(chan Message, 1)
	_, err := b.Subscribe(ctx, "vectorfs.test.roundtrip", func(_ context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)

	require.NoError(t, b.Send(ctx, Message{Subject: "vectorfs.test.roundtrip", Data: []byte("hello")}))

	select {
	case msg := <-received:
		assert.Equal(t, "hello", string(msg.Data))
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestBus_Connect_FailsWhenServerUnreachable(t *testing.T) {
	b, err := Connect(Config{URL: "nats://127.0.0.1:1", MaxRetries: 1, RetryInterval: time.Millisecond})
	if err == nil {
		b.Close()
		t.Skip("unexpectedly connected to a server on the unreachable test address")
	}
	assert.Error(t, err)
}
