package fec

//
// BlockScheme (§4.8): fixed (n, k) per block.
//

// BlockScheme codes fixed-size blocks of k source symbols into n-k repair
// symbols, per §4.8: "totalRepairSymbols = min(n - k, currentSourceSymbols)
// at close."
type BlockScheme struct {
	// N and K are the block's configured shard counts; N-K is the maximum
	// repair-symbol budget per block.
	N, K int
}

// NewBlockScheme returns a [BlockScheme] coding k source symbols into up to
// n-k repair symbols per block.
func NewBlockScheme(n, k int) *BlockScheme {
	return &BlockScheme{N: n, K: k}
}

var _ Scheme = (*BlockScheme)(nil)

func (s *BlockScheme) Name() string { return "block" }

// GetSourceFpid assigns the next SFPID within the sender's current block,
// starting a new block once K symbols have been assigned to the current
// one.
func (s *BlockScheme) GetSourceFpid(snd *Sender) uint32 {
	if snd.currentBlock == nil || snd.nextSFPID >= uint32(s.K) {
		snd.currentBlock = NewBlock(snd.nextBlockNumber, s.K)
		snd.nextBlockNumber++
		snd.nextSFPID = 0
	}
	sfpid := snd.nextSFPID
	snd.nextSFPID++
	return sfpid
}

// ProtectSourceSymbol records ss in the sender's current block and, once
// the block is full, emits its repair symbols and closes it.
func (s *BlockScheme) ProtectSourceSymbol(snd *Sender, ss *SourceSymbol) []*RepairSymbol {
	b := snd.currentBlock
	if b == nil {
		return nil
	}
	b.PutSourceSymbol(ss)
	if b.CurrentSourceSymbols < s.K {
		return nil
	}
	return s.closeBlock(snd)
}

// FlushRepair closes whatever block is in progress, even if it has fewer
// than K source symbols, per §4.8's flushRepairSymbols contract.
func (s *BlockScheme) FlushRepair(snd *Sender) []*RepairSymbol {
	if snd.currentBlock == nil || snd.currentBlock.CurrentSourceSymbols == 0 {
		return nil
	}
	return s.closeBlock(snd)
}

func (s *BlockScheme) closeBlock(snd *Sender) []*RepairSymbol {
	b := snd.currentBlock
	b.TotalRepairSymbols = minInt(s.N-s.K, b.CurrentSourceSymbols)
	repairs := encodeBlockRepairSymbols(b)
	snd.currentBlock = nil
	return repairs
}

// ReceiveSourceSymbol places ss into blockNumber's ring slot and attempts
// recovery once the block is decodable.
func (s *BlockScheme) ReceiveSourceSymbol(rcv *Receiver, ss *SourceSymbol, blockNumber uint32, totalSourceSymbols int, onRecovered RecoveredSymbolFunc) error {
	b := rcv.ensureBlock(blockNumber, totalSourceSymbols, false)
	b.PutSourceSymbol(ss)
	return s.maybeRecover(rcv, b, onRecovered)
}

// ReceiveRepairSymbol places rs into blockNumber's ring slot and attempts
// recovery once the block is decodable.
func (s *BlockScheme) ReceiveRepairSymbol(rcv *Receiver, rs *RepairSymbol, blockNumber uint32, nss, nrs int, onRecovered RecoveredSymbolFunc) error {
	b := rcv.ensureBlock(blockNumber, nss, true)
	if b.TotalRepairSymbols == 0 {
		b.TotalRepairSymbols = nrs
	}
	b.PutRepairSymbol(rs)
	return s.maybeRecover(rcv, b, onRecovered)
}

func (s *BlockScheme) maybeRecover(rcv *Receiver, b *Block, onRecovered RecoveredSymbolFunc) error {
	if !b.Decodable() {
		return nil
	}
	if err := recover(b, onRecovered); err != nil {
		return err
	}
	rcv.free(b.Number)
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// encodeBlockRepairSymbols runs klauspost/reedsolomon's Encode step over a
// full block, producing b.TotalRepairSymbols parity shards sized to the
// block's widest source symbol.
func encodeBlockRepairSymbols(b *Block) []*RepairSymbol {
	if b.TotalRepairSymbols <= 0 {
		return nil
	}
	return rsEncodeBlock(b)
}
