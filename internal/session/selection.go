// ABOUTME: Active room selection held in memory as one atomic (id, name) pair
// ABOUTME: Set from a single directory snapshot; cleared on sign-out

package session

import "sync"

// Selection is the active room: a (roomID, roomName) pair that is always
// read and written as one unit. The pair must come from the same room
// snapshot — the name is never looked up separately after the fact, so a
// directory refresh between render and click cannot produce a mismatched
// pair. Not persisted; reset on sign-out and process restart.
type Selection struct {
	mu       sync.RWMutex
	roomID   string
	roomName string
	active   bool
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// Set records the active room.
func (s *Selection) Set(roomID, roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.roomName = roomName
	s.active = true
}

// Get returns the active room pair. ok is false when nothing is selected.
func (s *Selection) Get() (roomID, roomName string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID, s.roomName, s.active
}

// Clear resets the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = ""
	s.roomName = ""
	s.active = false
}
