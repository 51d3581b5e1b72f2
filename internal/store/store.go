// ABOUTME: Store interface and data types for parlor persistence
// ABOUTME: Defines User, Session, Room, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailInUse is returned when creating a user with an email that
// already has an account
var ErrEmailInUse = errors.New("email already in use")

// User represents a registered account. The password hash is bcrypt;
// the plaintext never reaches the store.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session represents a server-side login session resolved from a cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Room represents a named conversation owned by exactly one user.
// Rooms are never renamed or deleted.
type Room struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Sender constants for messages
const (
	SenderUser = "user" // authored by the room owner
	SenderBot  = "bot"  // authored by the automated reply service
)

// Message represents a single turn within a room. Immutable once created.
// CreatedAt is assigned by the store, never by the caller.
type Message struct {
	ID        string
	RoomID    string
	Text      string
	Sender    string
	CreatedAt time.Time
}

// Store defines the interface for parlor persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)

	// Rooms. ListRoomsByOwner returns rooms in ascending creation order;
	// an empty owner id matches nothing.
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	ListRoomsByOwner(ctx context.Context, ownerID string) ([]*Room, error)

	// Messages. ListRoomMessages returns messages in ascending creation
	// order; ordering is the store's responsibility, subscribers render
	// snapshots as delivered.
	CreateMessage(ctx context.Context, msg *Message) error
	ListRoomMessages(ctx context.Context, roomID string) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
