// CLAUDE:SUMMARY Pluggable ID generation: UUIDv7 default, prefixed variants for cache entries and fetch logs.
// Package idgen provides pluggable ID generation.
//
// Constructors across the repo accept a Generator, making the ID strategy a
// startup-time decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// New is the default generator: RFC 9562 UUID v7, time-sortable.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// UUIDv7 returns a Generator producing UUID v7 strings.
func UUIDv7() Generator {
	return New
}

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short and URL-safe; use where a UUID is too verbose.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		b := make([]byte, length)
		for i := range b {
			b[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(b)
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Used for type-scoped identifiers (e.g. "cand_", "cache_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}
