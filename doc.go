// Package gatehouse is the authentication core of a multi-tenant web
// application platform. It owns the token/session state machine: minting,
// validating and revoking access, refresh, step-up and two-factor tokens,
// together with the two-factor sub-protocol (TOTP, email codes, recovery
// codes) that gates privileged operations.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after construction through
// [Builder.Build].
//
// # Architecture boundaries
//
// gatehouse is the public surface. It exposes [Engine], [Builder], [Config],
// the [Principal] authorization view and the value types of the domain (User,
// Session, TwoFactorSettings). Redis-backed ephemeral state (the per-session
// valid-token-id sets and the notification cooldown gate) lives under
// internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Persist users. Persistence is the host's job, reached through the
//     narrow [UserStore] interface (find/save plus one compare-and-swap
//     primitive for refresh rotation).
//   - Send email. Delivery goes through [Notifier]; gatehouse only decides
//     when a message may be sent (cooldowns) and what code it carries.
//   - Speak HTTP. The transport subpackage turns tokens into cookies and
//     bearer headers and back, but routing and controllers belong to the
//     host.
//
// # Trust model
//
// Tokens are signed claim sets, never persisted. An access token is trusted
// only while its id is present in the revocation cache entry for its
// (user, session) pair; a refresh token only while it matches the live
// session's refresh-token id; a step-up token only for the exact
// (user, session) that requested it. The two-factor token is deliberately the
// lowest-trust artifact: it carries no session or role claims and is never
// accepted where an access token is expected.
package gatehouse
