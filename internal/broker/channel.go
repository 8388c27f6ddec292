package broker

import (
	"context"
	"log/slog"
	"sync"
)

// ChannelQueue is an in-process queue for single node deployments and tests.
type ChannelQueue struct {
	ch     chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func NewChannelQueue(size int, logger *slog.Logger) *ChannelQueue {
	return &ChannelQueue{
		ch:     make(chan []byte, size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *ChannelQueue) Publish(ctx context.Context, data []byte) error {
	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.ch <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ChannelQueue) Subscribe() error { return nil }

// Consume delivers messages until ctx is cancelled or the queue is closed.
// On cancellation, messages still buffered are handed to handler before
// Consume returns.
func (c *ChannelQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			c.drain(handler)
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case msg := <-c.ch:
			c.handle(handler, msg)
		}
	}
}

func (c *ChannelQueue) drain(handler func([]byte) error) {
	for {
		select {
		case msg := <-c.ch:
			c.handle(handler, msg)
		default:
			return
		}
	}
}

func (c *ChannelQueue) handle(handler func([]byte) error, msg []byte) {
	if err := handler(msg); err != nil {
		c.logger.Error("error processing message", "err", err)
	}
}

func (c *ChannelQueue) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
