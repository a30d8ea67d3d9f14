// Package cooldown is a generic "has this key fired within N seconds" gate
// backed by Redis. The check-and-set is a single SETNX-with-TTL round trip,
// so two near-simultaneous dispatch attempts can never both pass; exactly one
// caller wins the window.
package cooldown
