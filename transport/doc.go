// Package transport turns engine tokens into HTTP artifacts and back.
//
// Tokens travel either as httpOnly cookies or as bearer Authorization
// headers. Which source wins when both are present, and whether header
// auth is accepted at all, is decided by [gatehouse.CookieConfig].
//
// # Guards
//
//   - [Adapter.Authenticate] extracts the access token from a request
//     and resolves it through the engine (signature, expiry, revocation).
//   - [Guard] is the middleware form of the above; injects the resulting
//     principal into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. It does NOT
// parse or validate tokens itself and never touches Redis; every
// accept/reject decision is delegated to the engine.
package transport
