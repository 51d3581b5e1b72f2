// ABOUTME: Live room-list subscription for one consumer
// ABOUTME: One subscription per owner id; SetOwner cancels the previous one first

package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/parlor-chat/parlor/internal/live"
	"github.com/parlor-chat/parlor/internal/store"
)

// Watcher maintains a live room-list query for a single consumer. Each
// change notification makes it re-read the owner's full room list and
// deliver it as a snapshot; snapshots replace each other wholesale, and a
// consumer that falls behind only ever misses intermediate states, never
// the final one. SetOwner tears down the previous subscription before
// opening the next, so there is never more than one live query per
// watcher.
type Watcher struct {
	svc     *Service
	changes *live.Broadcaster
	out     chan []*store.Room
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
		out:     make(chan []*store.Room, 1),
		logger:  s.logger,
	}
}

// Snapshots returns the channel of room-list snapshots. Each value is the
// complete, ordered result set for the current owner.
func (w *Watcher) Snapshots() <-chan []*store.Room {
	return w.out
}

// SetOwner re-targets the watcher at ownerID's room list. The previous
// subscription, if any, is cancelled first. The initial snapshot is
// delivered immediately; subsequent snapshots follow store changes. An
// empty owner id yields an empty snapshot and no further updates of
// interest (the degraded unauthenticated query).
func (w *Watcher) SetOwner(ctx context.Context, ownerID string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	notify, _ := w.changes.Subscribe(subCtx, live.RoomsKey(ownerID))

	go func() {
		w.deliver(subCtx, ownerID)
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
				w.deliver(subCtx, ownerID)
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

// deliver re-reads the full room list and queues it, replacing any stale
// undelivered snapshot.
func (w *Watcher) deliver(ctx context.Context, ownerID string) {
	rooms, err := w.svc.ListRooms(ctx, ownerID)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("room snapshot query failed", "owner_id", ownerID, "error", err)
		}
		return
	}
	if rooms == nil {
		rooms = []*store.Room{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || ctx.Err() != nil {
		return
	}
	select {
	case w.out <- rooms:
	default:
		// Replace the stale snapshot; only the latest matters.
		select {
		case <-w.out:
		default:
		}
		select {
		case w.out <- rooms:
		default:
		}
	}
}
