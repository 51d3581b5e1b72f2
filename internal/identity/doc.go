// Package identity is the authentication boundary for parlor.
//
// It owns four operations: register, login, logout, and session
// resolution (cookie sessions for browsers, HS256 JWTs for API clients).
// Input validation mirrors what the login and registration forms enforce
// and runs before any store access, so rejected input never reaches the
// provider. Exactly two failures are distinguishable to callers:
// ErrInvalidCredential (login) and ErrEmailInUse (registration);
// everything else is generic.
package identity
