// ABOUTME: AppState bundles identity and selection into one passed-around object
// ABOUTME: Replaces ambient shared state with explicit read/write capabilities

package session

import "log/slog"

// AppState is the application-state object handed to every consumer that
// needs the current identity or the active room. There is one writer per
// field (the auth surface for Identity, the directory surface for
// Selection) and many readers. Sign-out clears the selection before the
// navigation hook runs.
type AppState struct {
	Identity  *Store
	Selection *Selection
}

// NewAppState wires a session store and selection together. onSignedOut
// runs after the selection is cleared; it may be nil.
func NewAppState(onSignedOut func(), logger *slog.Logger) *AppState {
	selection := NewSelection()
	identity := NewStore(func() {
		selection.Clear()
		if onSignedOut != nil {
			onSignedOut()
		}
	}, logger)

	return &AppState{
		Identity:  identity,
		Selection: selection,
	}
}
