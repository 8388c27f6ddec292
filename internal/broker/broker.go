package broker

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("message queue closed")

// MessageQueue carries serialized reading batches from ingestion to the
// workers. Subscribe must be called once before Consume.
type MessageQueue interface {
	Publish(ctx context.Context, data []byte) error
	Consume(ctx context.Context, handler func([]byte) error) error
	Subscribe() error
	Close() error
}
