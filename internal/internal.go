// Package internal contains test doubles shared by the quicrx test suite.
package internal

import (
	"math/rand"

	"github.com/quicrxlabs/quicrx"
)

// NullLogger is a [quicrx.Logger] that does not emit logs.
type NullLogger struct{}

// Debug implements quicrx.Logger
func (nl *NullLogger) Debug(message string) {
	// nothing
}

// Debugf implements quicrx.Logger
func (nl *NullLogger) Debugf(format string, v ...any) {
	// nothing
}

// Info implements quicrx.Logger
func (nl *NullLogger) Info(message string) {
	// nothing
}

// Infof implements quicrx.Logger
func (nl *NullLogger) Infof(format string, v ...any) {
	// nothing
}

// Warn implements quicrx.Logger
func (nl *NullLogger) Warn(message string) {
	// nothing
}

// Warnf implements quicrx.Logger
func (nl *NullLogger) Warnf(format string, v ...any) {
	// nothing
}

var _ quicrx.Logger = &NullLogger{}

// DeterministicRandom is a [quicrx.RandomSource] seeded for reproducible
// tests. It is not safe for concurrent use, matching [quicrx.RandomSource]'s
// contract that it is only called from the single cooperative driver loop.
type DeterministicRandom struct {
	rng *rand.Rand
}

// NewDeterministicRandom returns a [DeterministicRandom] seeded with seed.
func NewDeterministicRandom(seed int64) *DeterministicRandom {
	return &DeterministicRandom{rng: rand.New(rand.NewSource(seed))}
}

// PublicRandom implements quicrx.RandomSource
func (d *DeterministicRandom) PublicRandom(buf []byte) {
	d.rng.Read(buf) //nolint:errcheck // math/rand.Rand.Read never errors
}

// PublicUniformRandom implements quicrx.RandomSource
func (d *DeterministicRandom) PublicUniformRandom(max int) int {
	if max <= 0 {
		return 0
	}
	return d.rng.Intn(max)
}

// PublicRandom64 implements quicrx.RandomSource
func (d *DeterministicRandom) PublicRandom64() uint64 {
	return d.rng.Uint64()
}

var _ quicrx.RandomSource = &DeterministicRandom{}
