// Package revocation maintains the set of currently-valid access-token ids
// per (user, session) in Redis. Membership in the set is a hard requirement
// for access-token validity: deleting an entry revokes every unexpired token
// of that session immediately, which is how logout takes effect before
// natural expiry. Entries are keyed per session, never per user, so revoking
// one session cannot disturb tokens minted for the user's other sessions.
package revocation
