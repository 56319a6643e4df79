// Package fec implements the FECFramework of §4.8: a symbol-oriented coding
// layer that wraps protected QUIC packets into source symbols, emits repair
// symbols via a pluggable [Scheme] (block-based or sliding-window), and on
// the receive side reconstructs lost packets from whatever source and
// repair symbols arrive.
//
// This package never imports the root quicrx package: recovered symbols are
// handed back to the caller through a callback rather than by reaching back
// into Connection/frame-decoder types, keeping the coding layer reusable
// independent of the transport it happens to be riding on.
package fec

import "fmt"

// sfpidTypeTag is the one-byte type tag a source symbol's data is prefixed
// with (§3's SourceSymbol: "a 64-bit packet number and a one-byte type
// tag").
const sfpidTypeTag = 0x00

// SourceSymbol is one protected packet's payload, prefixed with its 64-bit
// packet number and a type tag (§3).
type SourceSymbol struct {
	// SFPID is the source FEC payload identifier, unique within the
	// enclosing block or window.
	SFPID uint32

	// Data is the type tag, packet number, and payload, concatenated.
	Data []byte
}

// NewSourceSymbol builds a [SourceSymbol] wrapping a protected packet's
// 64-bit packet number and decrypted frame bytes.
func NewSourceSymbol(sfpid uint32, pn64 uint64, payload []byte) *SourceSymbol {
	data := make([]byte, 0, 9+len(payload))
	data = append(data, sfpidTypeTag)
	data = appendUint64(data, pn64)
	data = append(data, payload...)
	return &SourceSymbol{SFPID: sfpid, Data: data}
}

// PacketNumber extracts the 64-bit packet number embedded in Data, per
// §4.8's recovery rule ("the first 8 payload bytes after the 1-byte type
// tag").
func (ss *SourceSymbol) PacketNumber() (uint64, bool) {
	if len(ss.Data) < 9 {
		return 0, false
	}
	return readUint64(ss.Data[1:9]), true
}

// Payload returns the bytes following the type tag and packet number.
func (ss *SourceSymbol) Payload() []byte {
	if len(ss.Data) < 9 {
		return nil
	}
	return ss.Data[9:]
}

// RepairSymbol is produced by a coding scheme; it carries enough redundancy
// to reconstruct missing source symbols of its block (§3).
type RepairSymbol struct {
	// RFPID is the repair FEC payload identifier.
	RFPID uint32

	// Data is the repair payload, already padded to the block's symbol
	// size by the scheme that produced it.
	Data []byte
}

// Block is FECBlock of §3: a fixed-capacity set of source and repair
// symbol slots, exclusively owning both (§3's Ownership rules).
type Block struct {
	// Number is the 24-bit block number (fecBlockNumber).
	Number uint32

	// TotalSourceSymbols is the block's declared source-symbol count.
	TotalSourceSymbols int

	// CurrentSourceSymbols is how many source-symbol slots are filled.
	CurrentSourceSymbols int

	// TotalRepairSymbols is the block's declared repair-symbol count.
	TotalRepairSymbols int

	// SourceSymbols is indexed by block-relative SFPID (§3's invariant:
	// slot i is nil or holds a symbol whose SFPID == i).
	SourceSymbols []*SourceSymbol

	// RepairSymbols holds every repair symbol received for this block.
	RepairSymbols []*RepairSymbol

	// sized is true once TotalSourceSymbols was fixed by an authoritative
	// source (a repair symbol's declared nss); until then, PutSourceSymbol
	// grows the block to accommodate SFPIDs arriving before any repair
	// symbol does (source symbols carry no nss of their own, §4.8).
	sized bool
}

// NewBlock allocates a block with totalSourceSymbols source slots.
func NewBlock(number uint32, totalSourceSymbols int) *Block {
	return &Block{
		Number:             number,
		TotalSourceSymbols: totalSourceSymbols,
		SourceSymbols:      make([]*SourceSymbol, totalSourceSymbols),
	}
}

// PutSourceSymbol installs ss at its block-relative slot, per §3's
// invariant. Returns false if the slot index is out of range or already
// held a different symbol.
func (b *Block) PutSourceSymbol(ss *SourceSymbol) bool {
	idx := int(ss.SFPID)
	if idx < 0 {
		return false
	}
	if idx >= len(b.SourceSymbols) {
		if b.sized {
			return false
		}
		grown := make([]*SourceSymbol, idx+1)
		copy(grown, b.SourceSymbols)
		b.SourceSymbols = grown
		b.TotalSourceSymbols = len(grown)
	}
	if b.SourceSymbols[idx] != nil {
		return b.SourceSymbols[idx].SFPID == ss.SFPID
	}
	b.SourceSymbols[idx] = ss
	b.CurrentSourceSymbols++
	return true
}

// PutRepairSymbol appends rs to the block's repair symbols.
func (b *Block) PutRepairSymbol(rs *RepairSymbol) {
	b.RepairSymbols = append(b.RepairSymbols, rs)
}

// Decodable reports whether present source+repair symbols meet or exceed
// TotalSourceSymbols (§3).
func (b *Block) Decodable() bool {
	if b.TotalSourceSymbols == 0 {
		return false
	}
	present := b.CurrentSourceSymbols + len(b.RepairSymbols)
	return present >= b.TotalSourceSymbols
}

// MissingIndices returns the block-relative indices still missing a source
// symbol.
func (b *Block) MissingIndices() []int {
	var missing []int
	for i, ss := range b.SourceSymbols {
		if ss == nil {
			missing = append(missing, i)
		}
	}
	return missing
}

func (b *Block) String() string {
	return fmt.Sprintf("fec.Block{number=%d, source=%d/%d, repair=%d}",
		b.Number, b.CurrentSourceSymbols, b.TotalSourceSymbols, len(b.RepairSymbols))
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(b, tmp[:]...)
}

func readUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b[:8] {
		v = (v << 8) | uint64(c)
	}
	return v
}
