// ABOUTME: Tests for the change-notification broadcaster
// ABOUTME: Covers subscribe, publish, coalescing, unsubscribe, context cancellation

package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroadcaster_SingleSubscriberIsNotified(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), RoomsKey("u1"))

	b.Publish(RoomsKey("u1"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestBroadcaster_MultipleSubscribersAllNotified(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), MessagesKey("room-1"))
	ch2, _ := b.Subscribe(t.Context(), MessagesKey("room-1"))
	ch3, _ := b.Subscribe(t.Context(), MessagesKey("room-1"))

	b.Publish(MessagesKey("room-1"))

	for i, ch := range []<-chan struct{}{ch1, ch2, ch3} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_KeysAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), MessagesKey("room-1"))
	ch2, _ := b.Subscribe(t.Context(), MessagesKey("room-2"))

	b.Publish(MessagesKey("room-1"))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("room-1 subscriber timed out")
	}

	select {
	case <-ch2:
		t.Fatal("room-2 subscriber received a notification for room-1")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_NotificationsCoalesce(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), RoomsKey("u1"))

	// Many publishes while the subscriber is not draining collapse into
	// one pending notification.
	for i := 0; i < 10; i++ {
		b.Publish(RoomsKey("u1"))
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("expected publishes to coalesce into a single notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background(), RoomsKey("u1"))
	assert.Equal(t, 1, b.SubscriberCount(RoomsKey("u1")))

	b.Unsubscribe(RoomsKey("u1"), subID)

	_, open := <-ch
	assert.False(t, open, "channel should be closed after unsubscribe")
	assert.Equal(t, 0, b.SubscriberCount(RoomsKey("u1")))

	// Publishing after unsubscribe must not panic
	b.Publish(RoomsKey("u1"))
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, _ = b.Subscribe(ctx, RoomsKey("u1"))

	cancel()

	// Cleanup is asynchronous
	assert.Eventually(t, func() bool {
		return b.SubscriberCount(RoomsKey("u1")) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcaster_PublishRacingUnsubscribeDoesNotPanic(t *testing.T) {
	// A publish interleaving with an unsubscribe on the same key must never
	// send on the closed channel. This interleaving happens whenever a
	// client disconnects or switches rooms while a send in that room is
	// publishing.
	b := NewBroadcaster(nil)
	defer b.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				b.Publish(MessagesKey("room-1"))
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		_, subID := b.Subscribe(context.Background(), MessagesKey("room-1"))
		b.Unsubscribe(MessagesKey("room-1"), subID)
	}
	close(done)
	wg.Wait()
}

func TestBroadcaster_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch, _ := b.Subscribe(t.Context(), MessagesKey("room-1"))
			select {
			case <-ch:
			case <-time.After(100 * time.Millisecond):
			}
		}()
		go func() {
			defer wg.Done()
			b.Publish(MessagesKey("room-1"))
		}()
	}
	wg.Wait()
}
