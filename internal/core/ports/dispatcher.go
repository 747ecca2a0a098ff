package ports

import (
	"context"
	"errors"
)

// ErrQueueFull is returned when a Dispatcher cannot accept more work.
var ErrQueueFull = errors.New("dispatcher: queue full")

// Dispatcher runs jobs outside the calling request.
type Dispatcher interface {
	Submit(job func(ctx context.Context)) error
}
