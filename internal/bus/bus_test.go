package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var received atomic.Bool
		var receivedMsg *domain.Message

		var wg sync.WaitGroup
		wg.Add(1)

		_, err := bus.Subscribe(ctx, "test.topic", func(ctx context.Context, msg *domain.Message) error {
			receivedMsg = msg
			received.Store(true)
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		// Allow subscription to be active
		time.Sleep(10 * time.Millisecond)

		err = bus.Publish(ctx, "test.topic", []byte("hello"))
		if err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		// Wait for message
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}

		if !received.Load() {
			t.Error("message not received")
		}

		if string(receivedMsg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(receivedMsg.Payload))
		}
		if receivedMsg.Topic != "test.topic" {
			t.Errorf("expected topic 'test.topic', got '%s'", receivedMsg.Topic)
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var flagged atomic.Int32
		var created atomic.Int32

		bus.Subscribe(ctx, domain.TopicTransactionFlagged, func(ctx context.Context, msg *domain.Message) error {
			flagged.Add(1)
			return nil
		})
		bus.Subscribe(ctx, domain.TopicTransactionCreated, func(ctx context.Context, msg *domain.Message) error {
			created.Add(1)
			return nil
		})

		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, domain.TopicTransactionFlagged, []byte("a"))
		bus.Publish(ctx, domain.TopicTransactionFlagged, []byte("b"))
		bus.Publish(ctx, domain.TopicTransactionCreated, []byte("c"))

		time.Sleep(50 * time.Millisecond)

		if flagged.Load() != 2 {
			t.Errorf("expected 2 flagged messages, got %d", flagged.Load())
		}
		if created.Load() != 1 {
			t.Errorf("expected 1 created message, got %d", created.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int32

		for i := 0; i < 3; i++ {
			bus.Subscribe(ctx, "fanout.topic", func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				return nil
			})
		}

		time.Sleep(10 * time.Millisecond)
		bus.Publish(ctx, "fanout.topic", []byte("broadcast"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 3 {
			t.Errorf("expected 3 deliveries, got %d", count.Load())
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, err := bus.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		time.Sleep(10 * time.Millisecond)
		bus.Publish(ctx, "unsub.topic", []byte("one"))
		time.Sleep(50 * time.Millisecond)

		sub.Unsubscribe()
		bus.Publish(ctx, "unsub.topic", []byte("two"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message before unsubscribe, got %d", count.Load())
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)
	ctx := context.Background()

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := bus.Publish(ctx, "t", []byte("x")); err == nil {
		t.Error("expected publish on closed bus to fail")
	}
	if _, err := bus.Subscribe(ctx, "t", nil); err == nil {
		t.Error("expected subscribe on closed bus to fail")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping on closed bus to fail")
	}

	// Double close is a no-op
	if err := bus.Close(); err != nil {
		t.Errorf("double close failed: %v", err)
	}
}

func TestNewBus(t *testing.T) {
	t.Run("Channel", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer b.Close()
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := New(domain.EventBusConfig{Type: "kafka"})
		if err == nil {
			t.Error("expected error for unsupported bus type")
		}
	})
}
