// ABOUTME: Live message-list subscription for one consumer
// ABOUTME: One subscription per room id; SetRoom cancels the previous one first

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/parlor-chat/parlor/internal/live"
	"github.com/parlor-chat/parlor/internal/store"
)

// Snapshot is one full message-list delivery. It carries the room id the
// list was read for, so consumers see the (room, list) pair as one unit
// even when a snapshot from a previous room is still buffered after a
// room switch.
type Snapshot struct {
	RoomID   string
	Messages []*store.Message
}

// Watcher maintains a live message query for a single consumer. Every
// change notification re-reads the room's full, ordered message list and
// delivers it as a snapshot that replaces the previous one — there is no
// incremental diffing. SetRoom tears down the previous subscription
// before opening the next, so switching rooms can never leave a stale
// live query delivering into the same channel.
type Watcher struct {
	svc     *Service
	changes *live.Broadcaster
	out     chan Snapshot
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewWatcher creates a watcher with no active subscription.
func (s *Service) NewWatcher() *Watcher {
	return &Watcher{
		svc:     s,
		changes: s.changes,
		out:     make(chan Snapshot, 1),
		logger:  s.logger,
	}
}

// Snapshots returns the channel of message-list snapshots.
func (w *Watcher) Snapshots() <-chan Snapshot {
	return w.out
}

// SetRoom re-targets the watcher at roomID's message stream, cancelling
// the previous subscription first. An empty room id just tears down the
// current subscription: with no room selected there is nothing to sync.
func (w *Watcher) SetRoom(ctx context.Context, roomID string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if roomID == "" {
		w.mu.Unlock()
		return
	}
	subCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	notify, _ := w.changes.Subscribe(subCtx, live.MessagesKey(roomID))

	go func() {
		w.deliver(subCtx, roomID)
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
				w.deliver(subCtx, roomID)
			}
		}
	}()
}

// Close cancels the active subscription and closes the snapshot channel.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	close(w.out)
}

func (w *Watcher) deliver(ctx context.Context, roomID string) {
	messages, err := w.svc.Messages(ctx, roomID)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("message snapshot query failed", "room_id", roomID, "error", err)
		}
		return
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	snapshot := Snapshot{RoomID: roomID, Messages: messages}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || ctx.Err() != nil {
		return
	}
	select {
	case w.out <- snapshot:
	default:
		select {
		case <-w.out:
		default:
		}
		select {
		case w.out <- snapshot:
		default:
		}
	}
}
