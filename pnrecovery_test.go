package quicrx

import "testing"

// pnMaskFor returns the PNMask crypto.go would compute for a packet number
// truncated to pnLength bytes.
func pnMaskFor(pnLength int) uint64 {
	return ^uint64(0) << uint(8*pnLength)
}

func TestDecodePacketNumberRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		expected uint64
		full     uint64
		pnLength int
	}{
		{"adjacent, 1 byte", 1, 2, 1},
		{"adjacent, 2 bytes", 0x1000, 0x1001, 2},
		{"far apart still closest, 2 bytes", 0xa82f30ea, 0xa82f9b32, 2},
		{"wraps forward across window, 1 byte", 0xff, 0x100, 1},
		{"wraps backward across window, 1 byte", 0x101, 0x100, 1},
		{"zero expected", 0, 0, 1},
		{"large full value, 4 bytes", 0xaa82f30ea82f30, 0xaa82f30ea82f31, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := pnMaskFor(tt.pnLength)
			truncated := tt.full &^ mask
			got := DecodePacketNumber(tt.expected, mask, truncated)
			if got != tt.full {
				t.Fatalf("DecodePacketNumber(%#x, %#x, %#x) = %#x, want %#x",
					tt.expected, mask, truncated, got, tt.full)
			}
		})
	}
}

func TestDecodePacketNumberPicksClosestCandidate(t *testing.T) {
	// RFC 9000 Appendix A.3's worked example: expected 0xa82f30ea, a
	// 2-byte truncated PN of 0x9b32 recovers to 0xa82f9b32, not some other
	// candidate an equal-or-greater distance away.
	mask := pnMaskFor(2)
	got := DecodePacketNumber(0xa82f30ea, mask, 0x9b32)
	want := uint64(0xa82f9b32)
	if got != want {
		t.Fatalf("DecodePacketNumber = %#x, want %#x", got, want)
	}
}

func TestAbsDelta(t *testing.T) {
	if d := absDelta(10, 3); d != 7 {
		t.Fatalf("absDelta(10, 3) = %d, want 7", d)
	}
	if d := absDelta(3, 10); d != 7 {
		t.Fatalf("absDelta(3, 10) = %d, want 7", d)
	}
	if d := absDelta(5, 5); d != 0 {
		t.Fatalf("absDelta(5, 5) = %d, want 0", d)
	}
}
