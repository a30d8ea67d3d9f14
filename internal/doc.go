// Package internal holds randomness helpers shared by the gatehouse engine:
// token ids, numeric one-time codes and recovery codes. Everything here uses
// crypto/rand; nothing is exported outside the module.
package internal
