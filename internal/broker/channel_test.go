package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChannelQueueDelivers(t *testing.T) {
	q := NewChannelQueue(4, discardLogger())
	defer q.Close()

	buf := []byte("batch-1")
	if err := q.Publish(context.Background(), buf); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	buf[0] = 'X'

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make(chan string, 1)
	go q.Consume(ctx, func(b []byte) error {
		got <- string(b)
		return nil
	})

	select {
	case msg := <-got:
		if msg != "batch-1" {
			t.Fatalf("expected published copy, got %q", msg)
		}
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestChannelQueuePublishAfterClose(t *testing.T) {
	q := NewChannelQueue(1, discardLogger())
	q.Close()
	q.Close()

	if err := q.Publish(context.Background(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestChannelQueueConsumeStopsOnCancel(t *testing.T) {
	q := NewChannelQueue(1, discardLogger())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Consume(ctx, func([]byte) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChannelQueuePublishBlocksUntilCancel(t *testing.T) {
	q := NewChannelQueue(1, discardLogger())
	defer q.Close()

	if err := q.Publish(context.Background(), []byte("fill")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, []byte("overflow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestChannelQueueDrainsBufferOnCancel(t *testing.T) {
	q := NewChannelQueue(8, discardLogger())
	defer q.Close()

	for _, msg := range []string{"a", "b", "c"} {
		if err := q.Publish(context.Background(), []byte(msg)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []string
	err := q.Consume(ctx, func(b []byte) error {
		got = append(got, string(b))
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected buffered messages to be delivered, got %v", got)
	}
}
