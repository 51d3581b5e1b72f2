// Package store provides persistence for parlor: users, login sessions,
// rooms, and messages.
//
// The Store interface abstracts the backing database; SQLiteStore is the
// only implementation. Two properties matter to callers beyond plain CRUD:
//
//   - Room and message creation timestamps are server-assigned. Callers
//     never supply them; the store overwrites whatever is in the struct.
//   - Message timestamps come from a monotonic allocator, so a message
//     created after another is always strictly later by timestamp. The
//     ascending created_at queries therefore reproduce creation order
//     exactly, and subscribers can render snapshots without sorting.
package store
