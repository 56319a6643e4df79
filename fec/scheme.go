package fec

//
// Scheme (§9): the capability set the source's string-keyed dispatch table
// ("create_fec_framework", …) is re-architected into. Two variants satisfy
// it: [BlockScheme] and [WindowScheme].
//

// RecoveredSymbolFunc is invoked once per source symbol a [Receiver]
// reconstructs, in the order §4.8 describes: "for each recovered symbol …
// feed the remaining bytes through the frame decoder as if freshly
// received." The caller (the root quicrx package) supplies this rather
// than this package importing a frame-decoder type directly.
type RecoveredSymbolFunc func(pn64 uint64, payload []byte) error

// Scheme is the coding-scheme capability set of §4.8/§9.
type Scheme interface {
	// Name identifies the scheme for logging.
	Name() string

	// GetSourceFpid returns the next SFPID to assign, monotone in send
	// order within the active block/window.
	GetSourceFpid(snd *Sender) uint32

	// ProtectSourceSymbol records ss in the active block/window and may
	// trigger repair-symbol generation per the scheme's policy, returning
	// any repair symbols ready to send.
	ProtectSourceSymbol(snd *Sender, ss *SourceSymbol) []*RepairSymbol

	// FlushRepair forces emission of any pending repair symbols, closing
	// the current block.
	FlushRepair(snd *Sender) []*RepairSymbol

	// ReceiveSourceSymbol places ss into blockNumber's block (allocating it
	// with totalSourceSymbols slots if new), recovering and delivering any
	// now-decodable symbols via onRecovered. The SourceFPID wire frame
	// (§4.8) carries only a bare SFPID, so the caller is responsible for
	// tracking which block number a stream of source symbols currently
	// belongs to (e.g. from the most recently seen FEC frame's block
	// number, or a dedicated block-number field the sender interleaves —
	// left to the caller's framing, not this package's concern).
	ReceiveSourceSymbol(rcv *Receiver, ss *SourceSymbol, blockNumber uint32, totalSourceSymbols int, onRecovered RecoveredSymbolFunc) error

	// ReceiveRepairSymbol inserts rs into the block it identifies
	// (allocating it with nss/nrs if new), recovering and delivering any
	// now-decodable symbols via onRecovered.
	ReceiveRepairSymbol(rcv *Receiver, rs *RepairSymbol, blockNumber uint32, nss, nrs int, onRecovered RecoveredSymbolFunc) error
}
