// ABOUTME: WebSocket endpoint for live room and message snapshots
// ABOUTME: Each connection holds per-client state and re-sends full lists on change

package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parlor-chat/parlor/internal/conversation"
	"github.com/parlor-chat/parlor/internal/session"
	"github.com/parlor-chat/parlor/internal/store"
)

// upgrader upgrades HTTP connections to WebSocket.
// Origin checks are handled by the CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientCommand is a message from the client. Currently the only command
// is selecting (or deselecting, with an empty room_id) a room.
type clientCommand struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// serverEvent is a message to the client. Snapshots replace any previous
// state wholesale; the client never merges.
type serverEvent struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"room_id,omitempty"`
	Rooms    []RoomResponse    `json:"rooms,omitempty"`
	Messages []MessageResponse `json:"messages,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// handleLiveSocket handles GET /api/ws. It pushes full room-list snapshots
// for the authenticated user, and full message snapshots for whichever room
// the client currently has selected.
func (g *Gateway) handleLiveSocket(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Per-connection state: the signed-in user plus the selected room.
	// Closing the connection signs the client out, which also clears the
	// selection.
	state := session.NewAppState(cancel, g.logger)
	state.Identity.Set(user)
	defer state.Identity.Set(nil)

	roomWatcher := g.directory.NewWatcher()
	defer roomWatcher.Close()
	roomWatcher.SetOwner(ctx, user.ID)

	messageWatcher := g.conversation.NewWatcher()
	defer messageWatcher.Close()

	// Serialize writes through a single goroutine; gorilla connections
	// support at most one concurrent writer.
	events := make(chan serverEvent, 8)
	go g.forwardSnapshots(ctx, roomWatcher.Snapshots(), messageWatcher.Snapshots(), state.Selection, events)

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					g.logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}()

	g.readCommands(ctx, conn, user, state.Selection, messageWatcher, events)
}

// forwardSnapshots converts watcher snapshots into client events.
func (g *Gateway) forwardSnapshots(
	ctx context.Context,
	rooms <-chan []*store.Room,
	messages <-chan conversation.Snapshot,
	selection *session.Selection,
	events chan<- serverEvent,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case snapshot, ok := <-rooms:
			if !ok {
				return
			}
			event := serverEvent{Type: "rooms", Rooms: make([]RoomResponse, len(snapshot))}
			for i, room := range snapshot {
				event.Rooms[i] = roomResponse(room)
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}

		case snapshot, ok := <-messages:
			if !ok {
				return
			}
			// The snapshot carries the room it was read for; drop it when
			// the client has since deselected or switched rooms so a stale
			// buffered list is never labeled with the new selection.
			roomID, _, selected := selection.Get()
			if !selected || roomID != snapshot.RoomID {
				continue
			}
			event := serverEvent{Type: "messages", RoomID: snapshot.RoomID, Messages: make([]MessageResponse, len(snapshot.Messages))}
			for i, msg := range snapshot.Messages {
				event.Messages[i] = g.messageResponse(msg, false)
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// readCommands consumes client commands until the connection drops.
func (g *Gateway) readCommands(
	ctx context.Context,
	conn *websocket.Conn,
	user *store.User,
	selection *session.Selection,
	messageWatcher *conversation.Watcher,
	events chan<- serverEvent,
) {
	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		if cmd.Type != "select_room" {
			g.logger.Debug("ignoring unknown websocket command", "type", cmd.Type)
			continue
		}

		if cmd.RoomID == "" {
			selection.Clear()
			messageWatcher.SetRoom(ctx, "")
			continue
		}

		room, err := g.roomForUser(ctx, cmd.RoomID, user)
		if err != nil {
			reason := "room not found"
			if !errors.Is(err, store.ErrNotFound) {
				g.logger.Error("failed to resolve selected room", "error", err)
				reason = "internal server error"
			}
			g.trySendError(ctx, events, reason)
			continue
		}

		selection.Set(room.ID, room.Name)
		messageWatcher.SetRoom(ctx, room.ID)
	}
}

// trySendError queues an error event without blocking the read loop.
func (g *Gateway) trySendError(ctx context.Context, events chan<- serverEvent, reason string) {
	select {
	case events <- serverEvent{Type: "error", Error: reason}:
	case <-ctx.Done():
	}
}
