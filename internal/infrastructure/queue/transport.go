// Package queue defines the render orchestration engine's message-broker
// contract (component C6's transport collaborator) and a Redis Streams
// implementation of it. The core never depends on a concrete broker; only
// this interface.
package queue

import "context"

// Message is one broker record: an opaque body plus whatever the transport
// needs to acknowledge or retry it.
type Message struct {
	Body      []byte
	DeliverID string // transport-specific delivery handle, opaque to callers
	Attempt   int    // 1-indexed delivery attempt, for retry/backoff bookkeeping
}

// Transport is the collaborator the queue-mode dispatcher drives. The core
// render pipeline never imports this package directly — only the
// dispatcher does, keeping the broker swappable per the spec's "no
// specific broker mandate" non-goal.
type Transport interface {
	// Subscribe delivers request messages to handle until ctx is cancelled.
	// handle returning nil acks the message; a non-nil error leaves it for
	// retry/dead-letter per the transport's own policy.
	Subscribe(ctx context.Context, handle func(context.Context, Message) error) error

	// Publish sends a reply/result message to the configured result topic.
	Publish(ctx context.Context, body []byte) error

	// DeadLetter sends a message that exhausted its retries to the
	// configured dead-letter topic.
	DeadLetter(ctx context.Context, msg Message, reason error) error

	Close() error
}
