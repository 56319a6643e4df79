package quicrx

//
// WireCodec: varints, 32-bit fields, connection-id parse/format
//
// Grounded on the teacher's quicparse.go, which already reads QUIC long
// headers field by field using github.com/quic-go/quic-go/quicvarint and a
// bytes.Reader cursor. This file generalizes that one-shot Initial parser
// into a reusable codec shared by HeaderParser and StatelessResponder; the
// fec wire frames call quicvarint directly.
//

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/quic-go/quic-go/quicvarint"
)

// maxCIDLength is the maximum length of a QUIC connection ID (RFC 9000 §17.2).
const maxCIDLength = 20

// beUint64 decodes eight big-endian bytes. It panics if buf is shorter than
// eight bytes; callers are expected to have already size-checked.
func beUint64(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf[:8])
}

// putUint32 appends n as four big-endian bytes to b.
func putUint32(b []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(b, tmp[:]...)
}

// readUint32 reads four big-endian bytes from r.
func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, newErrMalformedHeader("cannot read 32-bit field")
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

// readConnectionID reads a length-prefixed (one byte length, 0..20 bytes)
// connection ID from r, the same layout quicparse.go's unmarshalInitial
// uses for both the destination and source connection ID.
func readConnectionID(r *bytes.Reader) ([]byte, error) {
	length, err := r.ReadByte()
	if err != nil {
		return nil, newErrMalformedHeader("cannot read connection-id length")
	}
	if int(length) > maxCIDLength {
		return nil, newErrMalformedHeader("connection-id too long")
	}
	cid := make([]byte, int(length))
	if length > 0 {
		if _, err := r.Read(cid); err != nil {
			return nil, newErrMalformedHeader("cannot read connection-id bytes")
		}
	}
	return cid, nil
}

// appendConnectionID appends a length-prefixed connection ID to b.
func appendConnectionID(b []byte, cid []byte) []byte {
	b = append(b, byte(len(cid)))
	return append(b, cid...)
}

// readVarint reads a QUIC variable-length integer using quicvarint, the
// same package quicparse.go imports for token length and payload length.
func readVarint(r *bytes.Reader) (uint64, error) {
	v, err := quicvarint.Read(r)
	if err != nil {
		return 0, newErrMalformedHeader("cannot read varint")
	}
	return v, nil
}

// appendVarint appends n encoded as a QUIC variable-length integer.
func appendVarint(b []byte, n uint64) []byte {
	return quicvarint.Append(b, n)
}

// varintLen returns the wire length, in bytes, of n encoded as a varint.
func varintLen(n uint64) int {
	return quicvarint.Len(n)
}

// errShortBuffer is not returned by the readers above, which report a read
// past the end of the segment as ErrMalformedHeader directly.
var errShortBuffer = errors.New("quicrx: short buffer")
