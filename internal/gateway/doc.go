// Package gateway assembles the parlor server.
//
// # Overview
//
// The gateway wires the SQLite store, the identity provider, the room
// directory, and the conversation service behind a single HTTP server.
// It owns listener setup (plain TCP or a Tailscale tsnet node), CORS,
// the expired-session sweeper, and graceful shutdown.
//
// # HTTP API
//
// Account endpoints:
//
//	POST /api/register   create an account (email + password)
//	POST /api/login      open a session; sets a cookie and returns a token
//	POST /api/logout     delete the session
//	GET  /api/me         the authenticated account
//
// Room and message endpoints (authenticated):
//
//	GET  /api/rooms                    rooms owned by the caller
//	POST /api/rooms                    create a room
//	GET  /api/rooms/{id}/messages      messages in creation order
//	POST /api/rooms/{id}/messages      send a message and get the bot reply
//
// Live updates:
//
//	GET /api/ws    WebSocket pushing full room and message snapshots
//
// Authentication accepts either the session cookie or an Authorization
// bearer token; browsers use the cookie, other clients use the token.
package gateway
