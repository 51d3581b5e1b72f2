// ABOUTME: HTTP API handlers for accounts, rooms, and messages
// ABOUTME: Maps service errors to status codes and renders message markdown on demand

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/parlor-chat/parlor/internal/conversation"
	"github.com/parlor-chat/parlor/internal/directory"
	"github.com/parlor-chat/parlor/internal/identity"
	"github.com/parlor-chat/parlor/internal/store"
)

// SessionCookieName is the cookie carrying the opaque session ID.
const SessionCookieName = "parlor_session"

type contextKey string

// userContextKey holds the authenticated *store.User in request contexts.
const userContextKey contextKey = "parlor.user"

// CredentialsRequest is the JSON request body for register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the JSON shape for an account.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is the JSON response for POST /api/login.
// The session is also set as a cookie; the token serves non-browser clients.
type LoginResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// CreateRoomRequest is the JSON request body for POST /api/rooms.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// RoomResponse is the JSON shape for a room.
type RoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// SendMessageRequest is the JSON request body for posting a message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse is the JSON shape for a message. HTML is only populated
// when the client asks for rendered markdown via ?format=html.
type MessageResponse struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	Text      string `json:"text"`
	HTML      string `json:"html,omitempty"`
	Sender    string `json:"sender"`
	CreatedAt string `json:"created_at"`
}

// SendMessageResponse is the JSON response for a completed send.
type SendMessageResponse struct {
	UserMessage MessageResponse `json:"user_message"`
	BotMessage  MessageResponse `json:"bot_message"`
}

// registerAPIRoutes registers the API routes on the mux. All routes except
// register and login require an authenticated user.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", g.handleRegister)
	mux.HandleFunc("POST /api/login", g.handleLogin)

	mux.Handle("POST /api/logout", g.requireAuth(g.handleLogout))
	mux.Handle("GET /api/me", g.requireAuth(g.handleMe))
	mux.Handle("GET /api/rooms", g.requireAuth(g.handleListRooms))
	mux.Handle("POST /api/rooms", g.requireAuth(g.handleCreateRoom))
	mux.Handle("GET /api/rooms/{id}/messages", g.requireAuth(g.handleListMessages))
	mux.Handle("POST /api/rooms/{id}/messages", g.requireAuth(g.handleSendMessage))
	mux.Handle("GET /api/ws", g.requireAuth(g.handleLiveSocket))
}

// requireAuth resolves the caller via session cookie or bearer token and
// stores the user in the request context. Unauthenticated requests get 401.
func (g *Gateway) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.resolveUser(r)
		if err != nil {
			g.sendJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

// resolveUser checks the session cookie first, then a bearer JWT.
func (g *Gateway) resolveUser(r *http.Request) (*store.User, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		user, err := g.identity.ResolveSession(r.Context(), cookie.Value)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return g.identity.ResolveToken(r.Context(), strings.TrimPrefix(header, "Bearer "))
	}

	return nil, store.ErrNotFound
}

// userFrom returns the authenticated user placed by requireAuth.
func userFrom(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey).(*store.User)
	return user
}

// handleRegister handles POST /api/register. A successful registration does
// not sign the user in; clients follow up with a login.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := g.identity.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		g.sendIdentityError(w, err)
		return
	}

	g.writeJSON(w, http.StatusCreated, userResponse(user))
}

// handleLogin handles POST /api/login. On success it sets the session
// cookie and returns a bearer token alongside the account.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, session, err := g.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		g.sendIdentityError(w, err)
		return
	}

	token, err := g.identity.IssueToken(user)
	if err != nil {
		g.logger.Error("failed to issue token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	g.writeJSON(w, http.StatusOK, LoginResponse{User: userResponse(user), Token: token})
}

// handleLogout handles POST /api/logout. It deletes the server-side session
// and expires the cookie.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := g.identity.Logout(r.Context(), cookie.Value); err != nil {
			g.logger.Error("failed to delete session", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /api/me.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, userResponse(userFrom(r.Context())))
}

// handleListRooms handles GET /api/rooms. Rooms are scoped to the caller
// and ordered by creation time.
func (g *Gateway) handleListRooms(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	rooms, err := g.directory.ListRooms(r.Context(), user.ID)
	if err != nil {
		g.logger.Error("failed to list rooms", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]RoomResponse, len(rooms))
	for i, room := range rooms {
		response[i] = roomResponse(room)
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleCreateRoom handles POST /api/rooms.
func (g *Gateway) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	room, err := g.directory.CreateRoom(r.Context(), user.ID, req.Name)
	if err != nil {
		if errors.Is(err, directory.ErrEmptyName) {
			g.sendJSONError(w, http.StatusUnprocessableEntity, "room name is required")
			return
		}
		g.logger.Error("failed to create room", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, http.StatusCreated, roomResponse(room))
}

// roomForUser loads a room and verifies the caller owns it. Rooms owned by
// other users are reported as not found rather than forbidden.
func (g *Gateway) roomForUser(ctx context.Context, roomID string, user *store.User) (*store.Room, error) {
	room, err := g.directory.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != user.ID {
		return nil, store.ErrNotFound
	}
	return room, nil
}

// handleListMessages handles GET /api/rooms/{id}/messages.
// With ?format=html each message additionally carries rendered markdown.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	room, err := g.roomForUser(r.Context(), r.PathValue("id"), user)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get room", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := g.conversation.Messages(r.Context(), room.ID)
	if err != nil {
		g.logger.Error("failed to list messages", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	renderHTML := r.URL.Query().Get("format") == "html"
	response := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		response[i] = g.messageResponse(msg, renderHTML)
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleSendMessage handles POST /api/rooms/{id}/messages.
// The response carries both the stored user message and the bot reply.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	room, err := g.roomForUser(r.Context(), r.PathValue("id"), user)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get room", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := g.conversation.Send(r.Context(), room.ID, req.Text)
	if err != nil {
		g.sendConversationError(w, err)
		return
	}

	g.writeJSON(w, http.StatusCreated, SendMessageResponse{
		UserMessage: g.messageResponse(result.UserMessage, false),
		BotMessage:  g.messageResponse(result.BotMessage, false),
	})
}

// sendIdentityError maps identity errors to status codes.
func (g *Gateway) sendIdentityError(w http.ResponseWriter, err error) {
	var validationErr *identity.ValidationError
	switch {
	case errors.As(err, &validationErr):
		g.sendJSONError(w, http.StatusUnprocessableEntity, validationErr.Error())
	case errors.Is(err, identity.ErrEmailInUse):
		g.sendJSONError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, identity.ErrInvalidCredential):
		g.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		g.logger.Error("identity operation failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendConversationError maps conversation errors to status codes.
func (g *Gateway) sendConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		g.sendJSONError(w, http.StatusUnprocessableEntity, "message text is required")
	case errors.Is(err, conversation.ErrSendInFlight):
		g.sendJSONError(w, http.StatusConflict, "a send is already in progress for this room")
	case errors.Is(err, conversation.ErrReplyFailed):
		g.sendJSONError(w, http.StatusBadGateway, "reply generation failed; your message was saved, try again")
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "room not found")
	default:
		g.logger.Error("failed to send message", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func userResponse(user *store.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (g *Gateway) messageResponse(msg *store.Message, renderHTML bool) MessageResponse {
	response := MessageResponse{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Text:      msg.Text,
		Sender:    msg.Sender,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339Nano),
	}
	if renderHTML {
		html, err := renderMarkdown(msg.Text)
		if err != nil {
			g.logger.Error("failed to render message markdown", "error", err, "message_id", msg.ID)
		} else {
			response.HTML = html
		}
	}
	return response
}
