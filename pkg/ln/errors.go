package ln

import "errors"

var (
	// ErrQueueFull indicates the message doesn't fit in the transmit queue.
	ErrQueueFull = errors.New("transmit queue full")
	// ErrInvalidMessage indicates the submitted bytes are not a single
	// well-formed message.
	ErrInvalidMessage = errors.New("invalid message")
)
