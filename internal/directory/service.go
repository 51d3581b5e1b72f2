// ABOUTME: Room directory: the per-owner room list and room creation
// ABOUTME: Publishes a change notification for the owner's live room query

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/parlor-chat/parlor/internal/live"
	"github.com/parlor-chat/parlor/internal/store"
)

// ErrEmptyName is returned when creating a room with an empty or
// whitespace-only name. No room document is written in that case.
var ErrEmptyName = errors.New("room name is empty")

// RoomStore defines what the directory needs from storage.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *store.Room) error
	GetRoom(ctx context.Context, id string) (*store.Room, error)
	ListRoomsByOwner(ctx context.Context, ownerID string) ([]*store.Room, error)
}

// Service maintains the room directory: rooms owned by one identity, in
// ascending creation order. Rooms are created here and never renamed or
// deleted.
type Service struct {
	store   RoomStore
	changes *live.Broadcaster
	logger  *slog.Logger
}

// New creates a directory service. Pass nil logger for default.
func New(roomStore RoomStore, changes *live.Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   roomStore,
		changes: changes,
		logger:  logger.With("component", "directory"),
	}
}

// CreateRoom writes a new room owned by ownerID. The name is trimmed;
// an empty result is rejected with ErrEmptyName before any store access.
// The creation timestamp is assigned by the store.
func (s *Service) CreateRoom(ctx context.Context, ownerID, name string) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	room := &store.Room{
		ID:      uuid.New().String(),
		Name:    name,
		OwnerID: ownerID,
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}

	s.logger.Info("room created", "room_id", room.ID, "owner_id", ownerID)
	s.changes.Publish(live.RoomsKey(ownerID))
	return room, nil
}

// ListRooms returns the owner's rooms in ascending creation order. An
// empty owner id (unauthenticated) matches nothing.
func (s *Service) ListRooms(ctx context.Context, ownerID string) ([]*store.Room, error) {
	return s.store.ListRoomsByOwner(ctx, ownerID)
}

// GetRoom returns one room by id.
func (s *Service) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	return s.store.GetRoom(ctx, id)
}
