// Package conversation implements the message layer of parlor: the send
// operation and the live message-list subscription.
//
// Send is the one write path. It persists the user message, asks the
// automated reply boundary for a completion with that text as the sole
// prompt, and persists the returned text as the bot message. Ordering is
// structural: the bot write only happens after the reply returns, and
// store timestamps are monotonic, so a reply can never sort before the
// message that caused it.
//
// Two explicit policies that the original left implicit:
//
//   - Overlapping sends to the same room are rejected (ErrSendInFlight)
//     rather than interleaved. The per-room pending flag is also the
//     "awaiting reply" indicator surfaced to clients.
//   - A failed reply leaves the user message in place, clears the
//     pending flag, and surfaces a retryable ErrReplyFailed. No rollback
//     and no automatic retry.
//
// Watcher is the read path: a full-snapshot live query per room id, with
// the one-subscription-per-input discipline (cancel before re-subscribe).
package conversation
