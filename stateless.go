package quicrx

//
// StatelessResponder (§4.5): version negotiation, stateless reset, retry
// issuance. None of these replies require per-connection state, so they
// are grouped behind one type constructed once per endpoint.
//

import (
	"crypto"

	"golang.org/x/crypto/hkdf"
)

// resetPacketMinSize is RESET_PACKET_MIN_SIZE (§6): 17 bytes of randomized
// prefix plus the 16-byte token.
const resetPacketMinSize = 17 + 16

// StatelessResponder builds the three connection-less reply datagrams this
// pipeline can emit.
type StatelessResponder struct {
	// Random is the MANDATORY source of public randomness.
	Random RandomSource

	// ResetSecret is the MANDATORY per-endpoint secret used to derive
	// stateless-reset tokens, keyed by destination CID.
	ResetSecret []byte

	// RetryKey is the MANDATORY per-endpoint secret used to derive retry
	// tokens, keyed by peer IP address. Only used when retry-token
	// enforcement is enabled (§4.4's Initial handler).
	RetryKey []byte
}

// keyedHash derives a 16-byte token from key and context using HKDF-Expand,
// reusing the same golang.org/x/crypto/hkdf dependency crypto.go already
// pulls in for the real AEAD key schedule, rather than introducing a
// second keyed-hash primitive for what is, here, non-secret bookkeeping.
func keyedHash(key, context []byte) [16]byte {
	var out [16]byte
	r := hkdf.Expand(crypto.SHA256.New, key, context)
	if _, err := r.Read(out[:]); err != nil {
		panic("quicrx: keyedHash: " + err.Error())
	}
	return out
}

// DeriveResetToken computes the 16-byte stateless-reset token for destCID
// (§4.5's "derived deterministically from the incoming destCID").
func (sr *StatelessResponder) DeriveResetToken(destCID []byte) [16]byte {
	return keyedHash(sr.ResetSecret, destCID)
}

// ComputeRetryToken computes the expected 16-byte retry token for a peer
// IP address (§4.4's Initial handler: "a keyed hash of the peer IP bytes
// (4 for IPv4, 16 for IPv6)").
func (sr *StatelessResponder) ComputeRetryToken(peerIP []byte) [16]byte {
	return keyedHash(sr.RetryKey, peerIP)
}

// BuildVersionNegotiation builds a Version Negotiation reply for ph, per
// §4.5's layout: random byte0 with the high bit forced, zero version,
// destCID/srceCID swapped relative to the incoming packet, payload is the
// concatenation of every supported version (4 bytes each).
func (sr *StatelessResponder) BuildVersionNegotiation(ph *PacketHeader) []byte {
	var first [1]byte
	sr.Random.PublicRandom(first[:])
	out := []byte{first[0] | 0x80}
	out = putUint32(out, 0)
	out = appendConnectionID(out, ph.SrceCID)
	out = appendConnectionID(out, ph.DestCID)
	for _, v := range SupportedVersions {
		out = putUint32(out, v)
	}
	return out
}

// BuildStatelessReset builds a stateless reset datagram for destCID, per
// §4.5's layout. phase selects byte0 (0x30 vs 0x70, §4.3's key-phase
// rule); peerPacketLength bounds the reply size so the reset does not
// exceed the packet that triggered it (anti-amplification, the same bound
// §4.5 describes as "length-17"). The padding never drops below 20 bytes,
// so a trigger shorter than 37 bytes still gets a 37-byte reset.
func (sr *StatelessResponder) BuildStatelessReset(destCID []byte, peerPacketLength int, phase int) []byte {
	byte0 := byte(0x30)
	if phase != 0 {
		byte0 = 0x70
	}

	maxPadding := peerPacketLength - 17
	if maxPadding < 20 {
		maxPadding = 20
	}
	padLen := 20 + sr.Random.PublicUniformRandom(maxPadding-19)

	out := make([]byte, 0, 1+padLen+16)
	out = append(out, byte0)
	padding := make([]byte, padLen)
	sr.Random.PublicRandom(padding)
	out = append(out, padding...)

	token := sr.DeriveResetToken(destCID)
	out = append(out, token[:]...)
	return out
}

// BuildRetry builds a Retry packet in response to ph, using token as the
// opaque retry token and newSrceCID as the server's freshly rotated source
// CID, per §4.5's layout: destCID = incoming srceCID, srceCID = rotated,
// a 1-byte odcil field (low nibble = original destCID length, high nibble
// random), the original destCID bytes, then the token.
//
// This does not append the 16-byte Retry Integrity Tag of RFC 9001 §5.8:
// that tag authenticates the retry under a version-specific AEAD key that
// belongs to the TLS key schedule, an external collaborator per §1, and
// spec.md's wire layout for Retry (§4.5) does not mention it either.
func (sr *StatelessResponder) BuildRetry(ph *PacketHeader, newSrceCID []byte, token []byte) []byte {
	var randomBits [1]byte
	sr.Random.PublicRandom(randomBits[:])
	byte0 := byte(0xC0) | (3 << 4) | (randomBits[0] & 0x0F)
	out := []byte{byte0}
	out = putUint32(out, SupportedVersions[ph.VersionIndex])
	out = appendConnectionID(out, ph.SrceCID)
	out = appendConnectionID(out, newSrceCID)

	var odcilByte [1]byte
	sr.Random.PublicRandom(odcilByte[:])
	odcil := odcilByte[0]&0xF0 | byte(len(ph.DestCID)&0x0F)
	out = append(out, odcil)
	out = append(out, ph.DestCID...)
	out = append(out, token...)
	return out
}
