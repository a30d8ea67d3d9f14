// Package token encodes and decodes the signed, expiring claim sets used by
// the gatehouse engine. Each token kind (access, refresh, step-up,
// two-factor, session, verification, password-reset) has its own claim type
// and a fully independent decode path, so a token minted for one purpose can
// never be accepted by a decoder expecting another, even though all kinds
// share one signing key. The purpose tag is embedded as a claim and checked
// on every parse.
//
// The package also provides [Sealer], an AES-GCM envelope for the TOTP setup
// token: the one artifact that must carry a secret through the client without
// the server persisting it.
package token
