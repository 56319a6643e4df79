package quicrx

//
// Randomness, abstracted for testability
//
// This mirrors the way the teacher framework abstracts math/rand.Rand
// behind LinkFwdRNG so that frame-forwarding tests can inject a
// deterministic generator; here the same idiom lets stateless-responder
// and path-migration tests pin the exact challenge/reset bytes produced.
//

import (
	"crypto/rand"
)

// RandomSource is the [random] collaborator of §6: it produces the public
// (non-secret) randomness used for the first byte of version-negotiation
// and retry replies, stateless reset padding, the server's replacement
// source CID in a retry, and path-validation challenges.
// None of these values are secret, so a cryptographically strong source is
// not required, but [cryptoRandomSource] uses one anyway because it is the
// natural stdlib default, matching the teacher's own preference for real
// primitives over hand-rolled ones.
type RandomSource interface {
	// PublicRandom fills buf with random bytes.
	PublicRandom(buf []byte)

	// PublicUniformRandom returns a value in [0, max).
	PublicUniformRandom(max int) int

	// PublicRandom64 returns a random 64-bit value.
	PublicRandom64() uint64
}

// cryptoRandomSource implements [RandomSource] using crypto/rand.
type cryptoRandomSource struct{}

// NewRandomSource returns the default [RandomSource].
func NewRandomSource() RandomSource {
	return &cryptoRandomSource{}
}

var _ RandomSource = &cryptoRandomSource{}

// PublicRandom implements RandomSource
func (*cryptoRandomSource) PublicRandom(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
}

// PublicUniformRandom implements RandomSource
func (*cryptoRandomSource) PublicUniformRandom(max int) int {
	if max <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return int(beUint64(buf[:]) % uint64(max))
}

// PublicRandom64 implements RandomSource
func (*cryptoRandomSource) PublicRandom64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return beUint64(buf[:])
}
