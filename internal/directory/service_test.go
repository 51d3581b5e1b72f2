// ABOUTME: Tests for the room directory service and watcher
// ABOUTME: Covers create-room rules, owner filtering, and live re-subscription

package directory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-chat/parlor/internal/live"
	"github.com/parlor-chat/parlor/internal/store"
)

func setupService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := live.NewBroadcaster(nil)
	t.Cleanup(b.Close)

	return New(s, b, nil), s
}

func addUser(t *testing.T, s *store.SQLiteStore, email string) *store.User {
	t.Helper()
	u := &store.User{ID: uuid.New().String(), Email: email, PasswordHash: "x"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestService_CreateRoom(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	owner := addUser(t, s, "u1@example.com")

	room, err := svc.CreateRoom(ctx, owner.ID, "General")
	require.NoError(t, err)
	assert.Equal(t, "General", room.Name)
	assert.Equal(t, owner.ID, room.OwnerID)
	assert.False(t, room.CreatedAt.IsZero())

	rooms, err := svc.ListRooms(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
}

func TestService_CreateRoom_EmptyNameIsNoOp(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	owner := addUser(t, s, "u1@example.com")

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := svc.CreateRoom(ctx, owner.ID, name)
		assert.ErrorIs(t, err, ErrEmptyName)
	}

	rooms, err := svc.ListRooms(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms, "cancelled or empty input must create zero rooms")
}

func TestService_CreateRoom_TrimsName(t *testing.T) {
	svc, s := setupService(t)
	owner := addUser(t, s, "u1@example.com")

	room, err := svc.CreateRoom(context.Background(), owner.ID, "  Support  ")
	require.NoError(t, err)
	assert.Equal(t, "Support", room.Name)
}

func TestService_ListRooms_FilteredAndOrdered(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	u1 := addUser(t, s, "u1@example.com")
	u2 := addUser(t, s, "u2@example.com")

	_, err := svc.CreateRoom(ctx, u1.ID, "General")
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, u1.ID, "Support")
	require.NoError(t, err)

	rooms, err := svc.ListRooms(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "General", rooms[0].Name)
	assert.Equal(t, "Support", rooms[1].Name)

	rooms, err = svc.ListRooms(ctx, u2.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func waitForSnapshot(t *testing.T, ch <-chan []*store.Room) []*store.Room {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room snapshot")
		return nil
	}
}

func TestWatcher_InitialSnapshotAndUpdates(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	owner := addUser(t, s, "u1@example.com")

	_, err := svc.CreateRoom(ctx, owner.ID, "General")
	require.NoError(t, err)

	w := svc.NewWatcher()
	defer w.Close()
	w.SetOwner(ctx, owner.ID)

	snap := waitForSnapshot(t, w.Snapshots())
	require.Len(t, snap, 1)
	assert.Equal(t, "General", snap[0].Name)

	_, err = svc.CreateRoom(ctx, owner.ID, "Support")
	require.NoError(t, err)

	// Snapshots replace wholesale; wait for the one that includes the
	// new room.
	assert.Eventually(t, func() bool {
		select {
		case snap := <-w.Snapshots():
			return len(snap) == 2 && snap[1].Name == "Support"
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_SetOwnerReplacesSubscription(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	u1 := addUser(t, s, "u1@example.com")
	u2 := addUser(t, s, "u2@example.com")

	_, err := svc.CreateRoom(ctx, u1.ID, "General")
	require.NoError(t, err)

	w := svc.NewWatcher()
	defer w.Close()

	w.SetOwner(ctx, u1.ID)
	snap := waitForSnapshot(t, w.Snapshots())
	require.Len(t, snap, 1)

	// Identity change: re-target, previous subscription torn down first
	w.SetOwner(ctx, u2.ID)
	assert.Eventually(t, func() bool {
		select {
		case snap := <-w.Snapshots():
			return len(snap) == 0
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// A room created for u1 after the switch must not reach this watcher
	_, err = svc.CreateRoom(ctx, u1.ID, "Stale")
	require.NoError(t, err)
	select {
	case snap := <-w.Snapshots():
		assert.Empty(t, snap, "watcher re-targeted to u2 must not see u1 rooms")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_ResubscribeSameOwnerYieldsSameSnapshot(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	owner := addUser(t, s, "u1@example.com")

	_, err := svc.CreateRoom(ctx, owner.ID, "General")
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, owner.ID, "Support")
	require.NoError(t, err)

	w := svc.NewWatcher()
	defer w.Close()

	w.SetOwner(ctx, owner.ID)
	first := waitForSnapshot(t, w.Snapshots())

	w.SetOwner(ctx, owner.ID)
	second := waitForSnapshot(t, w.Snapshots())

	require.Len(t, second, len(first), "re-subscribing must not duplicate entries")
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestWatcher_UnauthenticatedOwnerSeesNoRooms(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	owner := addUser(t, s, "u1@example.com")

	_, err := svc.CreateRoom(ctx, owner.ID, "General")
	require.NoError(t, err)

	w := svc.NewWatcher()
	defer w.Close()

	w.SetOwner(ctx, "")
	snap := waitForSnapshot(t, w.Snapshots())
	assert.Empty(t, snap)
}
