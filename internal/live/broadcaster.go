// ABOUTME: In-memory fan-out of change notifications for live queries
// ABOUTME: Subscribers register per filter key and re-query on each notification

package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Broadcaster provides in-memory pub/sub of change notifications keyed by
// a filter key ("rooms/<ownerID>", "messages/<roomID>"). A notification
// carries no payload: it tells the subscriber that the result set behind
// its key changed, and the subscriber re-reads the full snapshot from the
// store. Because every refresh reads the whole result set, notifications
// coalesce: each subscriber channel has a buffer of one, and a full buffer
// means a refresh is already pending, so further notifications for the
// same key can be dropped without losing data.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan struct{} // filterKey -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan struct{}),
		logger:      logger.With("component", "live"),
	}
}

// Subscribe registers a subscriber for change notifications on the given
// filter key. Returns the notification channel and a subscription ID for
// Unsubscribe. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, filterKey string) (<-chan struct{}, string) {
	subID := uuid.New().String()
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if _, ok := b.subscribers[filterKey]; !ok {
		b.subscribers[filterKey] = make(map[string]chan struct{})
	}
	b.subscribers[filterKey][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "filter_key", filterKey, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(filterKey, subID)
	}()

	return ch, subID
}

// Publish notifies all subscribers of the given filter key that the
// result set behind it changed. Non-blocking.
//
// The sends happen under the read lock: Unsubscribe and Close only close
// subscriber channels under the write lock, so a channel observed here
// cannot be closed mid-send. The sends never block (buffer of one plus
// default case), so holding the lock across them is safe.
func (b *Broadcaster) Publish(filterKey string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[filterKey] {
		select {
		case ch <- struct{}{}:
		default:
			// Refresh already pending for this subscriber
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(filterKey, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[filterKey]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, filterKey)
	}

	b.logger.Debug("subscriber removed", "filter_key", filterKey, "sub_id", subID)
}

// SubscriberCount returns the number of active subscriptions for a key.
func (b *Broadcaster) SubscriberCount(filterKey string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[filterKey])
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}

	b.logger.Debug("broadcaster closed")
}

// RoomsKey is the filter key for a user's room directory.
func RoomsKey(ownerID string) string {
	return "rooms/" + ownerID
}

// MessagesKey is the filter key for a room's message stream.
func MessagesKey(roomID string) string {
	return "messages/" + roomID
}
