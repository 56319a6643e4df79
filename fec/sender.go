package fec

//
// Sender bookkeeping (§3's FECState "per-send bookkeeping", §4.8's
// mutual-exclusion invariant around prepare/finalize).
//

// Sender holds one connection's send-side FEC bookkeeping, shared by every
// [Scheme] implementation.
type Sender struct {
	// Scheme is the active coding scheme.
	Scheme Scheme

	// CurrentPacket and CurrentPacketLength describe the packet currently
	// between prepare_packet_ready and finalize_and_protect_packet.
	CurrentPacket       []byte
	CurrentPacketLength int

	// CurrentSfpidFrame is non-nil only in that same interval.
	CurrentSfpidFrame *SourceFPIDFrame

	// CurrentPacketContainsFecFrame and CurrentPacketContainsFpidFrame are
	// mutually exclusive (§4.8): a prepared packet carries at most one of
	// a FEC repair frame or a SourceFPID frame.
	CurrentPacketContainsFecFrame  bool
	CurrentPacketContainsFpidFrame bool

	// SfpidReserved tracks whether this packet has already reserved frame
	// space for a SourceFPID frame; cleared on finalize.
	SfpidReserved bool

	// OldestFecBlockNumber is the oldest block number the sender still
	// considers live (informational; the receiver's ring enforces actual
	// eviction).
	OldestFecBlockNumber uint32

	// nextBlockNumber and nextSFPID are the scheme-agnostic counters
	// [BlockScheme] and [WindowScheme] both build on.
	nextBlockNumber uint32
	nextSFPID       uint32

	// currentBlock is the in-progress block a [BlockScheme] fills.
	currentBlock *Block

	// windowSymbols is the live sliding window a [WindowScheme] draws from.
	windowSymbols []*SourceSymbol
}

// NewSender constructs a [Sender] using scheme.
func NewSender(scheme Scheme) *Sender {
	return &Sender{Scheme: scheme}
}

// BeginPacket resets the per-packet flags, implementing the
// prepare_packet_ready half of §4.8's mutual-exclusion invariant.
func (s *Sender) BeginPacket() {
	s.CurrentPacket = nil
	s.CurrentPacketLength = 0
	s.CurrentSfpidFrame = nil
	s.CurrentPacketContainsFecFrame = false
	s.CurrentPacketContainsFpidFrame = false
}

// FinalizeAndProtectPacket clears the SFPID reservation, implementing
// finalize_and_protect_packet's side of §4.8's invariant.
func (s *Sender) FinalizeAndProtectPacket() {
	s.SfpidReserved = false
	s.CurrentSfpidFrame = nil
}

// ProtectSourceSymbol wraps payload (the packet's decrypted frame bytes) as
// a [SourceSymbol] under a freshly assigned SFPID, records it with the
// active scheme, and returns any repair symbols the scheme decided to
// flush as a result.
func (s *Sender) ProtectSourceSymbol(payload []byte, pn64 uint64) (*SourceSymbol, []*RepairSymbol) {
	sfpid := s.Scheme.GetSourceFpid(s)
	ss := NewSourceSymbol(sfpid, pn64, payload)
	return ss, s.Scheme.ProtectSourceSymbol(s, ss)
}

// SourceFPIDFrame is the wire frame of §4.8: 1-byte type, 4-byte SFPID.
type SourceFPIDFrame struct {
	SFPID uint32
}
