package fec

//
// WindowScheme (§4.8): sliding window of live source symbols, repair
// symbols generated periodically over whatever is currently in transit
// rather than over a fixed, closed block.
//

// WindowScheme codes a sliding window of source symbols: every time K new
// source symbols have entered the window since the last repair round, it
// emits up to N-K repair symbols covering the symbols currently in
// [smallestInTransit, highestInTransit] (§4.8).
type WindowScheme struct {
	// N and K configure the repair ratio, the same way as [BlockScheme]'s.
	N, K int
}

// NewWindowScheme returns a [WindowScheme] with window capacity
// [ReceiveBufferMaxLength] and the given repair ratio.
func NewWindowScheme(n, k int) *WindowScheme {
	return &WindowScheme{N: n, K: k}
}

var _ Scheme = (*WindowScheme)(nil)

func (s *WindowScheme) Name() string { return "window" }

// GetSourceFpid returns a monotonically increasing SFPID; unlike
// [BlockScheme] it never resets, since the window has no block boundary.
func (s *WindowScheme) GetSourceFpid(snd *Sender) uint32 {
	sfpid := snd.nextSFPID
	snd.nextSFPID++
	return sfpid
}

// ProtectSourceSymbol appends ss to the sliding window, evicting the
// oldest entry once the window exceeds [ReceiveBufferMaxLength], and emits
// a repair round every K symbols.
func (s *WindowScheme) ProtectSourceSymbol(snd *Sender, ss *SourceSymbol) []*RepairSymbol {
	snd.windowSymbols = append(snd.windowSymbols, ss)
	if len(snd.windowSymbols) > ReceiveBufferMaxLength {
		snd.windowSymbols = snd.windowSymbols[len(snd.windowSymbols)-ReceiveBufferMaxLength:]
	}
	if len(snd.windowSymbols)%s.K != 0 {
		return nil
	}
	return s.emitRepairRound(snd)
}

// FlushRepair forces a repair round over whatever is currently in the
// window, even if it isn't a multiple of K.
func (s *WindowScheme) FlushRepair(snd *Sender) []*RepairSymbol {
	if len(snd.windowSymbols) == 0 {
		return nil
	}
	return s.emitRepairRound(snd)
}

// emitRepairRound builds an ephemeral block from the live window (§4.8:
// "select every live source symbol in the window whose slot index matches
// its sfpid; totalSourceSymbols = currentSourceSymbols"), encodes repair
// shards over it, and tags the round with a fresh block number so the
// receiver has something to key its ring on.
func (s *WindowScheme) emitRepairRound(snd *Sender) []*RepairSymbol {
	current := snd.windowSymbols
	total := len(current)
	if total == 0 {
		return nil
	}
	blockNumber := snd.nextBlockNumber
	snd.nextBlockNumber++

	b := NewBlock(blockNumber, total)
	for i, ss := range current {
		b.PutSourceSymbol(&SourceSymbol{SFPID: uint32(i), Data: ss.Data})
	}
	b.TotalRepairSymbols = minInt(s.N-s.K, total)
	return rsEncodeBlock(b)
}

// ReceiveSourceSymbol delegates to the same block-based ring logic
// [BlockScheme] uses: the window's repair rounds each carry a fresh block
// number the receiver keys its ring on exactly as it would a fixed block.
func (s *WindowScheme) ReceiveSourceSymbol(rcv *Receiver, ss *SourceSymbol, blockNumber uint32, totalSourceSymbols int, onRecovered RecoveredSymbolFunc) error {
	b := rcv.ensureBlock(blockNumber, totalSourceSymbols, false)
	b.PutSourceSymbol(ss)
	return s.maybeRecover(rcv, b, onRecovered)
}

// ReceiveRepairSymbol mirrors [BlockScheme.ReceiveRepairSymbol].
func (s *WindowScheme) ReceiveRepairSymbol(rcv *Receiver, rs *RepairSymbol, blockNumber uint32, nss, nrs int, onRecovered RecoveredSymbolFunc) error {
	b := rcv.ensureBlock(blockNumber, nss, true)
	if b.TotalRepairSymbols == 0 {
		b.TotalRepairSymbols = nrs
	}
	b.PutRepairSymbol(rs)
	return s.maybeRecover(rcv, b, onRecovered)
}

func (s *WindowScheme) maybeRecover(rcv *Receiver, b *Block, onRecovered RecoveredSymbolFunc) error {
	if !b.Decodable() {
		return nil
	}
	if err := recover(b, onRecovered); err != nil {
		return err
	}
	rcv.free(b.Number)
	return nil
}
