package quicrx

//
// Error kinds (§7)
//
// Following the teacher's quicparse.go pattern of a sentinel error plus a
// newErrX(message) constructor that wraps it with %w, so callers can test
// disposition with errors.Is while still getting a descriptive message in
// logs.
//

import (
	"errors"
	"fmt"
)

// ErrMalformedHeader means a segment's header failed to parse: length
// underrun or a length field that does not fit within the datagram.
// Disposition: drop silently, log.
var ErrMalformedHeader = errors.New("quicrx: malformed header")

// ErrInitialTooShort means a server-side Initial segment was shorter than
// the enforced minimum datagram size. Disposition: drop.
var ErrInitialTooShort = errors.New("quicrx: initial packet too short")

// ErrAeadCheck means header-protection removal or AEAD decryption failed.
// Disposition: drop; if the owning CryptoContext was newly created for
// this Initial, the caller tears it down.
var ErrAeadCheck = errors.New("quicrx: AEAD or header protection check failed")

// ErrDuplicate means the packet number was already present in the path's
// SACK set for this packet context. Disposition: set ackNeeded, drop.
var ErrDuplicate = errors.New("quicrx: duplicate packet number")

// ErrUnexpectedPacket means the packet type is not valid for the
// connection's current state. Disposition: drop.
var ErrUnexpectedPacket = errors.New("quicrx: unexpected packet for connection state")

// ErrCnxidCheck means a destination or source connection-ID invariant was
// violated. Disposition: drop.
var ErrCnxidCheck = errors.New("quicrx: connection-id check failed")

// ErrRetry means either a valid server Retry was observed by a client, or
// a Retry was just enqueued by a server. Disposition: do not ACK; await a
// new Initial.
var ErrRetry = errors.New("quicrx: retry")

// ErrStatelessReset means the trailing 16 bytes of an unrecognized packet
// matched a registered reset token. Disposition: transition to
// Disconnected, fire the StatelessReset callback.
var ErrStatelessReset = errors.New("quicrx: stateless reset token matched")

// ErrConnectionDeleted means a transient Initial-only connection context
// was rejected and torn down. Disposition: drop.
var ErrConnectionDeleted = errors.New("quicrx: connection deleted")

// ErrMemory means an allocation failed. Disposition: return up, caller
// drops the segment; never fatal to the endpoint.
var ErrMemory = errors.New("quicrx: memory allocation failed")

// ErrFrameBufferTooSmall means a writer (e.g. a stateless responder) had
// insufficient space for its output. Disposition: return up.
var ErrFrameBufferTooSmall = errors.New("quicrx: frame buffer too small")

// ErrProtocolViolation means the peer violated the protocol in a way that
// is fatal to the connection (e.g. 0-RTT under the wrong version).
// Disposition: close the connection.
var ErrProtocolViolation = errors.New("quicrx: protocol violation")

// ErrFnvCheck means a checksum embedded in a stateless packet did not
// verify.
var ErrFnvCheck = errors.New("quicrx: FNV checksum check failed")

// benignErrors are the error kinds that §4.4 rule 4 disposes of by
// dropping the segment silently and continuing with the next one.
var benignErrors = []error{
	ErrAeadCheck, ErrInitialTooShort, ErrUnexpectedPacket, ErrFnvCheck,
	ErrCnxidCheck, ErrRetry, ErrConnectionDeleted,
}

// isBenign reports whether err (or anything it wraps) is one of
// benignErrors, i.e. a transport-layer error recovered locally per §7's
// policy rather than surfaced to the user callback.
func isBenign(err error) bool {
	for _, candidate := range benignErrors {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

func newErrMalformedHeader(message string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHeader, message)
}

func newErrAeadCheck(message string) error {
	return fmt.Errorf("%w: %s", ErrAeadCheck, message)
}

func newErrUnexpectedPacket(message string) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedPacket, message)
}

func newErrCnxidCheck(message string) error {
	return fmt.Errorf("%w: %s", ErrCnxidCheck, message)
}
