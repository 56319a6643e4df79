package quicrx

//
// PNRecovery (§4.2): reconstruct a 64-bit packet number from a truncated
// PN plus the expected next value, following RFC 9000 Appendix A.3.
//

// DecodePacketNumber reconstructs pn64 from a truncated pn, a pnMask
// (PacketHeader.PNMask, a prefix of ones covering the untruncated high
// bits), and the expected next packet number (highest accepted + 1),
// implementing §4.2's formal contract: the chosen pn64 minimizes
// |pn64 - expected|, with ties broken toward the earlier value only when
// its low bits are non-zero.
func DecodePacketNumber(expected uint64, pnMask uint64, pn uint64) uint64 {
	truncated := pn &^ pnMask
	candidate := (expected & pnMask) | truncated
	win := ^pnMask + 1 // 2^k, the span one truncated PN unit covers

	if win == 0 {
		// pnMask == 0: the truncated value already is the full PN.
		return candidate
	}

	candidateUp := candidate + win
	candidateDown := candidate - win // wraps harmlessly if candidate < win

	best := candidate
	bestDelta := absDelta(candidate, expected)

	if d := absDelta(candidateUp, expected); d < bestDelta ||
		(d == bestDelta && candidateUp < best) {
		best, bestDelta = candidateUp, d
	}
	if candidate >= win {
		if d := absDelta(candidateDown, expected); d < bestDelta {
			best, bestDelta = candidateDown, d
		} else if d == bestDelta && candidateDown < best && (candidateDown&pnMask) > 0 {
			best, bestDelta = candidateDown, d
		}
	}
	return best
}

// absDelta returns |a - b| for uint64 operands without overflowing.
func absDelta(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
