// Package password wraps bcrypt hashing for account passwords and the
// one-time recovery codes minted at TOTP setup. Plaintexts are never stored;
// recovery-code validation matches against the hash set only.
package password
