// Package quicrx implements the incoming-packet processing pipeline of a
// QUIC endpoint, extended with an in-band forward-error-correction (FEC)
// sublayer carried alongside protected QUIC packets.
//
// The entry point is [IncomingDispatcher.IncomingPacket], which mirrors a
// single call to the underlying socket's ReadFrom: given a raw UDP
// datagram, the peer and local addresses, and the receive interface index,
// it splits the datagram into coalesced segments, parses and decrypts each
// one with [ParseHeader] and [CryptoGate], recovers the 64-bit packet
// number with [DecodePacketNumber], resolves or creates the owning
// [Connection] through a [ConnectionTable], and dispatches to the handler
// for the segment's packet type.
//
// A [Connection] owns its [Path] slice, its per-epoch [CryptoContext]
// values, and its FEC state. [StatelessResponder] builds the three
// connection-less reply datagrams this pipeline can emit without any
// [Connection] at hand: version negotiation, stateless reset, and retry.
//
// The fec subpackage implements the symbol-oriented coding layer described
// by fec.Scheme: outgoing protected packets become source symbols,
// repair symbols are generated by a block or sliding-window Reed-Solomon
// scheme, and on the receive side a ring of [fec.Block] values accumulates
// symbols until a block becomes decodable and its missing source symbols
// are reconstructed and re-injected into the frame decoder.
//
// TLS key schedule, frame encoding/decoding, congestion control, loss
// detection, and socket I/O are external collaborators described only by
// the interfaces in collaborators.go.
package quicrx
