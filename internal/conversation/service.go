// ABOUTME: Conversation service: message persistence and the send operation
// ABOUTME: User message is recorded first; the bot reply is appended strictly after

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/parlor-chat/parlor/internal/live"
	"github.com/parlor-chat/parlor/internal/store"
)

// Send errors
var (
	// ErrNoRoomSelected is returned when sending without an active room.
	ErrNoRoomSelected = errors.New("no room selected")

	// ErrEmptyMessage is returned for empty or whitespace-only input.
	// Nothing is written and the pending state is never set.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrSendInFlight is returned when a send is already pending for the
	// room. Overlapping sends are rejected, not queued.
	ErrSendInFlight = errors.New("send already in flight for this room")

	// ErrReplyFailed wraps a completion-service failure. The user message
	// stands, the pending state is cleared, and the caller may retry.
	ErrReplyFailed = errors.New("automated reply failed")
)

// Replier is the automated reply boundary: one prompt in, one reply out.
type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// MessageStore defines what the service needs from storage.
type MessageStore interface {
	GetRoom(ctx context.Context, id string) (*store.Room, error)
	CreateMessage(ctx context.Context, msg *store.Message) error
	ListRoomMessages(ctx context.Context, roomID string) ([]*store.Message, error)
}

// SendResult reports the two messages a successful send produced.
type SendResult struct {
	UserMessage *store.Message
	BotMessage  *store.Message
}

// Service is the conversation layer. All message writes flow through
// here: the user message is persisted before the reply request is issued,
// and the bot message is persisted after it returns, so creation order
// always has the user turn strictly before its reply.
type Service struct {
	store   MessageStore
	replier Replier
	changes *live.Broadcaster
	logger  *slog.Logger

	// mu guards inFlight. One send per room at a time; the flag doubles
	// as the UI-observable "awaiting reply" pending state.
	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a conversation service. Pass nil logger for default.
func New(messageStore MessageStore, replier Replier, changes *live.Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    messageStore,
		replier:  replier,
		changes:  changes,
		logger:   logger.With("component", "conversation"),
		inFlight: make(map[string]bool),
	}
}

// Pending reports whether a send is awaiting its reply for the room.
func (s *Service) Pending(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[roomID]
}

// Messages returns the room's messages in ascending creation order.
func (s *Service) Messages(ctx context.Context, roomID string) ([]*store.Message, error) {
	return s.store.ListRoomMessages(ctx, roomID)
}

// Send records the user message, requests the automated reply, and
// records it as the bot message.
//
// Rules, in order:
//   - no room selected or empty/whitespace-only input: no-op error,
//     nothing written, pending never set;
//   - a send already pending for the room: rejected with ErrSendInFlight;
//   - the user message is written (raw input text, server timestamp)
//     before the reply request is issued;
//   - the reply call carries the raw input as the sole prompt, no
//     conversation history;
//   - on reply failure the user message stands, pending is cleared, and
//     the error wraps ErrReplyFailed so the caller can offer a retry;
//   - on success the bot message is written with a strictly later
//     timestamp and pending is cleared.
func (s *Service) Send(ctx context.Context, roomID, text string) (*SendResult, error) {
	if roomID == "" {
		return nil, ErrNoRoomSelected
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, fmt.Errorf("resolving room: %w", err)
	}

	s.mu.Lock()
	if s.inFlight[roomID] {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.inFlight[roomID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, roomID)
		s.mu.Unlock()
	}()

	userMsg := &store.Message{
		ID:     uuid.New().String(),
		RoomID: roomID,
		Text:   text,
		Sender: store.SenderUser,
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}
	s.changes.Publish(live.MessagesKey(roomID))

	s.logger.Debug("user message recorded", "room_id", roomID, "message_id", userMsg.ID)

	replyText, err := s.replier.Reply(ctx, text)
	if err != nil {
		s.logger.Error("reply request failed", "room_id", roomID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReplyFailed, err)
	}

	botMsg := &store.Message{
		ID:     uuid.New().String(),
		RoomID: roomID,
		Text:   replyText,
		Sender: store.SenderBot,
	}
	if err := s.store.CreateMessage(ctx, botMsg); err != nil {
		return nil, fmt.Errorf("recording bot message: %w", err)
	}
	s.changes.Publish(live.MessagesKey(roomID))

	s.logger.Debug("bot message recorded", "room_id", roomID, "message_id", botMsg.ID)

	return &SendResult{UserMessage: userMsg, BotMessage: botMsg}, nil
}
