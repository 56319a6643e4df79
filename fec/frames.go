package fec

//
// Wire frames (§4.8): SourceFPID and FEC.
//

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/quic-go/quic-go/quicvarint"
)

var errShortFECFrame = errors.New("fec: FEC frame shorter than its declared header or data length")

// sourceFpidFrameType and fecFrameType are the 1-byte type tags introduced
// by §4.8 ("SOURCE_FPID_TYPE"); values are chosen from the QUIC
// greased/private-use frame-type range so they don't collide with any
// standard frame the external [FrameDecoder] also understands.
const (
	sourceFpidFrameType byte = 0x3f
	fecFrameType        byte = 0x40
)

// EncodeSourceFPIDFrame encodes a SourceFPID frame: 1-byte type, 4-byte
// big-endian SFPID. Encoded size is always 5 bytes (§4.8).
func EncodeSourceFPIDFrame(sfpid uint32) []byte {
	out := make([]byte, 5)
	out[0] = sourceFpidFrameType
	binary.BigEndian.PutUint32(out[1:], sfpid)
	return out
}

// DecodeSourceFPIDFrame decodes a SourceFPID frame from the start of buf,
// returning the SFPID and the number of bytes consumed.
func DecodeSourceFPIDFrame(buf []byte) (sfpid uint32, consumed int, ok bool) {
	if len(buf) < 5 || buf[0] != sourceFpidFrameType {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(buf[1:5]), 5, true
}

// EncodeFECFrame encodes a FEC frame carrying one repair symbol: header
// {repair_fec_payload_id (u32), nss (u8), nrs (u8), dataLength (varint)}
// followed by data (§4.8). Repair symbols are not split across multiple
// FEC frames, matching §9's noted limitation.
func EncodeFECFrame(repairFecPayloadID uint32, nss, nrs int, data []byte) []byte {
	out := make([]byte, 1, 1+4+1+1+quicvarint.Len(uint64(len(data)))+len(data))
	out[0] = fecFrameType
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], repairFecPayloadID)
	out = append(out, tmp[:]...)
	out = append(out, byte(nss), byte(nrs))
	out = quicvarint.Append(out, uint64(len(data)))
	out = append(out, data...)
	return out
}

// DecodedFECFrame is a parsed FEC wire frame.
type DecodedFECFrame struct {
	RepairFecPayloadID uint32
	NSS, NRS           int
	Data               []byte
}

// DecodeFECFrame decodes a FEC frame from the start of buf, returning the
// decoded frame and the number of bytes consumed.
func DecodeFECFrame(buf []byte) (*DecodedFECFrame, int, error) {
	if len(buf) < 7 || buf[0] != fecFrameType {
		return nil, 0, errShortFECFrame
	}
	rfpid := binary.BigEndian.Uint32(buf[1:5])
	nss := int(buf[5])
	nrs := int(buf[6])

	r := bytes.NewReader(buf[7:])
	dataLength, err := quicvarint.Read(r)
	if err != nil {
		return nil, 0, errShortFECFrame
	}
	headerLen := 7 + quicvarint.Len(dataLength)
	total := headerLen + int(dataLength)
	if total > len(buf) {
		return nil, 0, errShortFECFrame
	}
	return &DecodedFECFrame{
		RepairFecPayloadID: rfpid,
		NSS:                nss,
		NRS:                nrs,
		Data:               append([]byte{}, buf[headerLen:total]...),
	}, total, nil
}
