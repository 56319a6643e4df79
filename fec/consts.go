package fec

import "errors"

// Constants of §6.
const (
	// MaxFECBlocks sizes the receive-side ring fec_blocks[MAX_FEC_BLOCKS].
	MaxFECBlocks = 16

	// ReceiveBufferMaxLength bounds a sliding window's in-transit span.
	ReceiveBufferMaxLength = 256

	// maxRecoveredInOneRow is MAX_RECOVERED_IN_ONE_ROW: at most this many
	// previously-missing symbols are materialized per recovery pass.
	maxRecoveredInOneRow = 5

	// minDecodedSymbolToParse is MIN_DECODED_SYMBOL_TO_PARSE: a recovered
	// symbol whose data is this many bytes or shorter is not handed to the
	// frame decoder.
	minDecodedSymbolToParse = 50
)

var (
	errBlockNotDecodable = errors.New("fec: block is not decodable yet")
	errNoParityShards    = errors.New("fec: block declares no repair shards")
)
