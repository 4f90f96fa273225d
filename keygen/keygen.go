// Package keygen produces the random keys, secrets and verifiers used by
// the credential store.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Key returns a 32-character high-entropy key. With unique set, wall-clock
// nanoseconds and a fresh UUID are mixed into the digest; use it for
// externally visible identifiers (consumer keys, tokens) where collisions
// must be even less likely than for plain secrets.
func Key(unique bool) string {
	var buf [40]byte
	if _, err := rand.Read(buf[:16]); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// there is no usable fallback for credential material.
		panic("keygen: " + err.Error())
	}
	if unique {
		binary.BigEndian.PutUint64(buf[16:24], uint64(time.Now().UnixNano()))
		u := uuid.New()
		copy(buf[24:], u[:])
	}
	sum := sha256.Sum256(buf[:])
	return hex.EncodeToString(sum[:16])
}

// Verifier returns the short random verifier bound to an authorized request
// token for the 1.0a exchange step.
func Verifier() string {
	return Key(false)[:10]
}
