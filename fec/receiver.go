package fec

//
// Receiver (§3's fec_blocks ring, §4.8's recovery and eviction rules).
//

// Receiver holds one connection's receive-side FEC state: the arena-style
// ring fec_blocks[MAX_FEC_BLOCKS] of §3/§9, indexed modulo capacity.
type Receiver struct {
	// Scheme is the active coding scheme.
	Scheme Scheme

	// Evicted counts blocks freed by collision before becoming decodable
	// (§4.8: "losing unrecovered data is acceptable and reported as a
	// counter").
	Evicted int

	blocks [MaxFECBlocks]*Block
}

// NewReceiver constructs a [Receiver] using scheme.
func NewReceiver(scheme Scheme) *Receiver {
	return &Receiver{Scheme: scheme}
}

// slotFor returns the ring slot for blockNumber.
func slotFor(blockNumber uint32) uint32 {
	return blockNumber % MaxFECBlocks
}

// BlockAt returns the block currently occupying blockNumber's slot, or nil
// if the slot is empty or holds a different block number (§9's "weak" read
// path: always validate slot.blockNumber == expected before use).
func (r *Receiver) BlockAt(blockNumber uint32) *Block {
	b := r.blocks[slotFor(blockNumber)]
	if b == nil || b.Number != blockNumber {
		return nil
	}
	return b
}

// ensureBlock returns the block for blockNumber, allocating it (and
// evicting whatever previously-incomplete block occupied the slot) if
// necessary. sized marks total as authoritative (from a repair symbol's
// declared nss, §4.8); an unsized block grows to fit whatever SFPIDs a
// source symbol stream turns out to carry.
func (r *Receiver) ensureBlock(blockNumber uint32, total int, sized bool) *Block {
	slot := slotFor(blockNumber)
	existing := r.blocks[slot]
	if existing != nil && existing.Number == blockNumber {
		if sized && !existing.sized {
			if total > len(existing.SourceSymbols) {
				grown := make([]*SourceSymbol, total)
				copy(grown, existing.SourceSymbols)
				existing.SourceSymbols = grown
			}
			existing.TotalSourceSymbols = total
			existing.sized = true
		}
		return existing
	}
	if existing != nil && !existing.Decodable() {
		r.Evicted++
	}
	b := NewBlock(blockNumber, total)
	b.sized = sized
	r.blocks[slot] = b
	return b
}

// free removes blockNumber's block from the ring, implementing the
// "recovered block is freed from the ring" step of §4.8.
func (r *Receiver) free(blockNumber uint32) {
	slot := slotFor(blockNumber)
	if b := r.blocks[slot]; b != nil && b.Number == blockNumber {
		r.blocks[slot] = nil
	}
}

// ReceiveSourceSymbol delegates to the active scheme.
func (r *Receiver) ReceiveSourceSymbol(ss *SourceSymbol, blockNumber uint32, totalSourceSymbols int, onRecovered RecoveredSymbolFunc) error {
	return r.Scheme.ReceiveSourceSymbol(r, ss, blockNumber, totalSourceSymbols, onRecovered)
}

// ReceiveRepairSymbol delegates to the active scheme.
func (r *Receiver) ReceiveRepairSymbol(rs *RepairSymbol, blockNumber uint32, nss, nrs int, onRecovered RecoveredSymbolFunc) error {
	return r.Scheme.ReceiveRepairSymbol(r, rs, blockNumber, nss, nrs, onRecovered)
}

// recover runs the active scheme's decode step over b and, for each newly
// materialized symbol whose data (type tag, packet number and payload) is
// longer than minDecodedSymbolToParse bytes, invokes
// onRecovered with its packet number and payload (§4.8's Recovery rule).
func recover(b *Block, onRecovered RecoveredSymbolFunc) error {
	if b.CurrentSourceSymbols >= b.TotalSourceSymbols {
		// Every source symbol already arrived directly; nothing to
		// reconstruct, so there is nothing to replay through the decoder
		// either (the normal per-packet path already delivered each one).
		return nil
	}
	before := make([]bool, len(b.SourceSymbols))
	for i, ss := range b.SourceSymbols {
		before[i] = ss != nil
	}
	if err := rsRecoverBlock(b); err != nil {
		return err
	}
	for i, ss := range b.SourceSymbols {
		if before[i] || ss == nil {
			continue
		}
		if len(ss.Data) <= minDecodedSymbolToParse {
			continue
		}
		pn64, ok := ss.PacketNumber()
		if !ok {
			continue
		}
		if onRecovered != nil {
			if err := onRecovered(pn64, ss.Payload()); err != nil {
				return err
			}
		}
	}
	return nil
}
