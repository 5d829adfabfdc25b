// Package bus implements the message-bus client spec.md §5 describes:
// send uses a non-blocking bounded retry loop (default 5 retries, 100 ms
// apart) surfacing a timeout as a non-fatal send error; receive polls
// with a short idle sleep and exits when the running flag clears.
//
// Grounded in the pack's NATS usage
// (other_examples/25db3955_WessleyAI-wessley-mvp, which subscribes a
// handler on a fixed subject) and the teacher's internal/async
// stop-channel/done-channel shutdown pattern, generalized into a
// publish/subscribe wrapper over github.com/nats-io/nats.go.
package bus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

const (
	// DefaultMaxRetries and DefaultRetryInterval implement spec.md §5's
	// bounded send retry loop.
	DefaultMaxRetries    = 5
	DefaultRetryInterval = 100 * time.Millisecond

	// idlePollInterval is the receiver thread's idle sleep.
	idlePollInterval = time.Millisecond
)

// Message is one envelope exchanged over the bus.
type Message struct {
	Subject string
	Data    []byte
}

// Handler processes one received Message.
type Handler func(ctx context.Context, msg Message)

// Bus wraps a NATS connection with the send-retry and poll-receive
// semantics the dispatcher relies on.
type Bus struct {
	conn          *nats.Conn
	maxRetries    int
	retryInterval time.Duration
}

// Config configures a Bus.
type Config struct {
	URL           string
	MaxRetries    int
	RetryInterval time.Duration
}

// Connect dials the NATS server at cfg.URL, applying defaults for unset
// retry parameters.
func Connect(cfg Config) (*Bus, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, verrors.Transient("connect to message bus", err)
	}

	return &Bus{conn: conn, maxRetries: cfg.MaxRetries, retryInterval: cfg.RetryInterval}, nil
}

// Send publishes msg, retrying up to maxRetries times at retryInterval
// apart on failure. A timeout after retries is exhausted surfaces as a
// non-fatal *verrors.VError with KindTransient; it never blocks forever.
func (b *Bus) Send(ctx context.Context, msg Message) error {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return verrors.Transient("send cancelled", ctx.Err())
		default:
		}

		if err := b.conn.Publish(msg.Subject, msg.Data); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < b.maxRetries {
			select {
			case <-ctx.Done():
				return verrors.Transient("send cancelled", ctx.Err())
			case <-time.After(b.retryInterval):
			}
		}
	}
	return verrors.Transient("send failed after retries", lastErr)
}

// Subscribe starts a receiver goroutine on subject that calls handler
// for every inbound message, polling with a short idle sleep and
// exiting when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, subject string, handler Handler) (*nats.Subscription, error) {
	ch := make(chan *nats.Msg, 64)
	sub, err := b.conn.ChanSubscribe(subject, ch)
	if err != nil {
		return nil, verrors.Transient("subscribe to subject", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(ctx, Message{Subject: msg.Subject, Data: msg.Data})
			case <-time.After(idlePollInterval):
			}
		}
	}()

	return sub, nil
}

// Close drains and closes the underlying connection.
func (b *Bus) Close() {
	b.conn.Close()
}
