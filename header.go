package quicrx

//
// HeaderParser (§4.1): version-aware long/short header parse into
// [PacketHeader].
//
// Grounded on the teacher's quicparse.go, which already walks a long
// header byte by byte with a bytes.Reader cursor (version, destination ID,
// source ID, token length, token, payload length) using quicvarint for the
// variable-length fields. This generalizes that one-shot Initial-only
// parser to every long-header type plus the short header, per §4.1's rules.
//

import (
	"bytes"
	"net"
	"time"
)

// PacketType is the wire-level type of one parsed segment (§3).
type PacketType int

const (
	PacketTypeError PacketType = iota
	PacketTypeVersionNegotiation
	PacketTypeInitial
	PacketTypeZeroRTT
	PacketTypeHandshake
	PacketTypeRetry
	PacketTypeOneRTTPhase0
	PacketTypeOneRTTPhase1
)

// Epoch is a TLS key-schedule level (GLOSSARY).
type Epoch int

const (
	EpochInitial Epoch = iota
	EpochZeroRTT
	EpochHandshake
	EpochOneRTT
)

// PacketContext groups packet number spaces (GLOSSARY).
type PacketContext int

const (
	PacketContextInitial PacketContext = iota
	PacketContextHandshake
	PacketContextApplication
)

// String implements fmt.Stringer for log messages.
func (pc PacketContext) String() string {
	switch pc {
	case PacketContextInitial:
		return "initial"
	case PacketContextHandshake:
		return "handshake"
	default:
		return "application"
	}
}

// PacketHeader is the parsed view of one wire segment (§3). It never owns
// the underlying bytes: DestCID, SrceCID and the various offsets all
// reference the caller's datagram buffer, which the dispatcher owns
// exclusively for the duration of one segment (§4.9's in-place-mutation
// contract).
type PacketHeader struct {
	// Type is the decoded packet type, or PacketTypeError if byte0 did not
	// look like a valid long or short header.
	Type PacketType

	// Version is the 32-bit version field of a long header; zero for short
	// headers.
	Version uint32

	// VersionIndex is the index of Version within [SupportedVersions], or
	// -1 if unsupported.
	VersionIndex int

	// DestCID is the destination connection ID.
	DestCID []byte

	// SrceCID is the source connection ID (long headers only).
	SrceCID []byte

	// Offset is the number of bytes consumed by the header, excluding the
	// packet number (which is still header-protected at parse time).
	Offset int

	// PnOffset is the offset of the (still protected) packet number field.
	PnOffset int

	// TokenOffset is the offset of the token field (Initial packets only).
	TokenOffset int

	// TokenLength is the length of the token field (Initial packets only).
	TokenLength int

	// PayloadLength is the number of bytes remaining after PnOffset: packet
	// number plus encrypted payload.
	PayloadLength int

	// PN is the truncated packet number, filled in by [CryptoGate] once
	// header protection has been removed.
	PN uint32

	// PNMask is the mask applied by [DecodePacketNumber] to align the
	// truncated PN with the expected 64-bit value.
	PNMask uint64

	// PN64 is the recovered 64-bit packet number.
	PN64 uint64

	// Epoch is the key-schedule level this segment was protected under.
	Epoch Epoch

	// PacketContext is the packet-number space this segment belongs to.
	PacketContext PacketContext

	// HasSpinBit is true for short headers, where byte0 bit 5 carries the
	// spin bit.
	HasSpinBit bool

	// Spin is the spin-bit value, valid only when HasSpinBit is true.
	Spin bool

	// raw is the datagram buffer this header's slices alias.
	raw []byte
}

// ParseHeader implements §4.1. raw is the remaining bytes of the datagram
// starting at this segment; addrFrom is the sender's address (used for
// by-address connection lookups); isServer indicates whether we are
// parsing on the receiving side of a server; localCIDLength is the
// endpoint's configured short-header destination CID length (0 if none
// configured, in which case short headers fall back to by-address lookup).
func ParseHeader(raw []byte, addrFrom net.Addr, isServer bool, localCIDLength int, table *ConnectionTable, now time.Time) (*PacketHeader, *Connection, error) {
	if len(raw) < 1 {
		return nil, nil, newErrMalformedHeader("empty segment")
	}
	byte0 := raw[0]

	// "If byte0 bit 6 is 0, the packet is marked Error" (§4.1).
	if byte0&0x40 == 0 {
		return &PacketHeader{Type: PacketTypeError, Offset: len(raw), raw: raw}, nil, nil
	}

	if byte0&0x80 != 0 {
		return parseLongHeader(raw, byte0, addrFrom, isServer, table, now)
	}
	return parseShortHeader(raw, byte0, addrFrom, localCIDLength, table)
}

// parseLongHeader implements the long-header branch of §4.1.
func parseLongHeader(raw []byte, byte0 byte, addrFrom net.Addr, isServer bool, table *ConnectionTable, now time.Time) (*PacketHeader, *Connection, error) {
	if len(raw) < 7 {
		return nil, nil, newErrMalformedHeader("long header shorter than 7 bytes")
	}
	cursor := bytes.NewReader(raw[1:])
	version, err := readUint32(cursor)
	if err != nil {
		return nil, nil, err
	}
	destCID, err := readConnectionID(cursor)
	if err != nil {
		return nil, nil, err
	}
	srceCID, err := readConnectionID(cursor)
	if err != nil {
		return nil, nil, err
	}

	ph := &PacketHeader{
		Version:      version,
		VersionIndex: versionIndex(version),
		DestCID:      destCID,
		SrceCID:      srceCID,
		raw:          raw,
	}

	if version == 0 {
		ph.Type = PacketTypeVersionNegotiation
		ph.PacketContext = PacketContextInitial
		ph.Offset = len(raw) - cursor.Len()
		cnx := lookupForVersionNegotiation(table, destCID, addrFrom)
		return ph, cnx, nil
	}

	if ph.VersionIndex < 0 {
		// Unsupported version: the caller (IncomingDispatcher) is
		// responsible for replying with Version Negotiation; we still
		// report as much of the header as we could parse.
		ph.Type = PacketTypeError
		ph.Offset = len(raw) - cursor.Len()
		return ph, nil, nil
	}

	typeBits := (byte0 & 0x30) >> 4
	switch typeBits {
	case 0:
		ph.Type = PacketTypeInitial
		ph.Epoch = EpochInitial
		ph.PacketContext = PacketContextInitial
	case 1:
		ph.Type = PacketTypeZeroRTT
		ph.Epoch = EpochZeroRTT
		ph.PacketContext = PacketContextApplication
	case 2:
		ph.Type = PacketTypeHandshake
		ph.Epoch = EpochHandshake
		ph.PacketContext = PacketContextHandshake
	case 3:
		ph.Type = PacketTypeRetry
		ph.Epoch = EpochInitial
		ph.PacketContext = PacketContextInitial
	}

	if ph.Type == PacketTypeInitial {
		tokenLen, err := readVarint(cursor)
		if err != nil {
			return nil, nil, err
		}
		ph.TokenOffset = len(raw) - cursor.Len()
		ph.TokenLength = int(tokenLen)
		if _, err := cursor.Seek(int64(tokenLen), 1); err != nil {
			return nil, nil, newErrMalformedHeader("token length overruns segment")
		}
	}

	if ph.Type == PacketTypeRetry {
		// "the rest of the segment is payload (no length varint, no PN)".
		ph.Offset = len(raw) - cursor.Len()
		ph.PnOffset = ph.Offset
		ph.PayloadLength = cursor.Len()
		return ph, resolveConnection(table, ph, addrFrom, isServer, now), nil
	}

	payloadLength, err := readVarint(cursor)
	if err != nil {
		return nil, nil, err
	}
	offset := len(raw) - cursor.Len()
	if offset+int(payloadLength) > len(raw) {
		return nil, nil, newErrMalformedHeader("payload length overruns segment")
	}
	ph.Offset = offset
	ph.PnOffset = offset
	ph.PayloadLength = int(payloadLength)

	return ph, resolveConnection(table, ph, addrFrom, isServer, now), nil
}

// parseShortHeader implements the short-header branch of §4.1.
func parseShortHeader(raw []byte, byte0 byte, addrFrom net.Addr, localCIDLength int, table *ConnectionTable) (*PacketHeader, *Connection, error) {
	ph := &PacketHeader{
		PacketContext: PacketContextApplication,
		Epoch:         EpochOneRTT,
		raw:           raw,
	}

	cidLen := localCIDLength
	var cnx *Connection
	if cidLen == 0 && table != nil {
		cnx = table.ByNet(addrFrom)
		if cnx != nil {
			cidLen = len(cnx.remoteCIDForPeer())
		}
	}
	if 1+cidLen > len(raw) {
		return nil, nil, newErrMalformedHeader("short header shorter than destination CID")
	}
	ph.DestCID = append([]byte{}, raw[1:1+cidLen]...)
	ph.Offset = 1 + cidLen
	ph.PnOffset = ph.Offset

	if cnx == nil && table != nil {
		cnx = table.ByID(ph.DestCID)
	}
	if cnx == nil && table != nil && localCIDLength == 0 {
		cnx = table.ByNet(addrFrom)
	}

	if cnx != nil && cnx.versionIndex >= 0 {
		ph.HasSpinBit = true
		ph.Type = PacketTypeOneRTTPhase0
		ph.Spin = byte0&0x20 != 0
		ph.VersionIndex = cnx.versionIndex
	} else {
		ph.Type = PacketTypeError
	}
	ph.PayloadLength = len(raw) - ph.Offset
	return ph, cnx, nil
}

// resolveConnection looks a long-header segment's connection up by
// destination CID, per §4.1 ("look up connection by destCID"). For a
// server receiving an Initial with no matching entry, it creates a fresh
// server-side [Connection] instead of returning nil, per §2's data-flow
// description ("ConnectionTable lookup, or creation for Initial").
func resolveConnection(table *ConnectionTable, ph *PacketHeader, addrFrom net.Addr, isServer bool, now time.Time) *Connection {
	if table == nil {
		return nil
	}
	if cnx := table.ByID(ph.DestCID); cnx != nil {
		return cnx
	}
	if isServer && ph.Type == PacketTypeInitial {
		return table.Create(ph.DestCID, nil, addrFrom, now, ph.Version, false)
	}
	return nil
}

// lookupForVersionNegotiation implements the VN-specific lookup rule:
// "look up connection by destCID (or by address if destCID empty and the
// connection's local CID is empty)".
func lookupForVersionNegotiation(table *ConnectionTable, destCID []byte, addrFrom net.Addr) *Connection {
	if table == nil {
		return nil
	}
	if cnx := table.ByID(destCID); cnx != nil {
		return cnx
	}
	if len(destCID) == 0 {
		if cnx := table.ByNet(addrFrom); cnx != nil && len(cnx.initialCID) == 0 {
			return cnx
		}
	}
	return nil
}
