package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrChannelDisabled indicates that Send() was called on a disabled channel.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInvalidMessage indicates that the message has no title to render.
	ErrInvalidMessage = errors.New("invalid message: empty title")

	// ErrNoChannels is reported when no channel is enabled, so nothing could be delivered.
	ErrNoChannels = errors.New("no notification channels enabled")

	// ErrCircuitBreakerOpen indicates that the circuit breaker is open for this channel
	// and deliveries are being rejected until its timeout elapses.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")
)
