package fec

import "testing"

func TestSourceFPIDFrameRoundTrip(t *testing.T) {
	encoded := EncodeSourceFPIDFrame(0xdeadbeef)
	if len(encoded) != 5 {
		t.Fatalf("encoded length = %d, want 5", len(encoded))
	}
	sfpid, consumed, ok := DecodeSourceFPIDFrame(encoded)
	if !ok {
		t.Fatalf("DecodeSourceFPIDFrame failed on its own encoding")
	}
	if sfpid != 0xdeadbeef {
		t.Fatalf("sfpid = %#x, want %#x", sfpid, 0xdeadbeef)
	}
	if consumed != 5 {
		t.Fatalf("consumed = %d, want 5", consumed)
	}
}

func TestDecodeSourceFPIDFrameRejectsWrongType(t *testing.T) {
	buf := []byte{0x00, 1, 2, 3, 4}
	if _, _, ok := DecodeSourceFPIDFrame(buf); ok {
		t.Fatalf("expected decode failure on a mismatched type tag")
	}
}

func TestDecodeSourceFPIDFrameRejectsShortBuffer(t *testing.T) {
	buf := []byte{sourceFpidFrameType, 1, 2}
	if _, _, ok := DecodeSourceFPIDFrame(buf); ok {
		t.Fatalf("expected decode failure on a short buffer")
	}
}

func TestFECFrameRoundTrip(t *testing.T) {
	data := []byte("some repair symbol payload bytes")
	encoded := EncodeFECFrame(42, 5, 2, data)

	decoded, consumed, err := DecodeFECFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFECFrame failed on its own encoding: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed = %d, want %d", consumed, len(encoded))
	}
	if decoded.RepairFecPayloadID != 42 {
		t.Fatalf("RepairFecPayloadID = %d, want 42", decoded.RepairFecPayloadID)
	}
	if decoded.NSS != 5 || decoded.NRS != 2 {
		t.Fatalf("NSS/NRS = %d/%d, want 5/2", decoded.NSS, decoded.NRS)
	}
	if string(decoded.Data) != string(data) {
		t.Fatalf("Data = %q, want %q", decoded.Data, data)
	}
}

func TestFECFrameRoundTripTrailingBytesIgnored(t *testing.T) {
	encoded := EncodeFECFrame(1, 1, 1, []byte("abc"))
	encoded = append(encoded, 0xff, 0xff, 0xff) // a second frame or padding follows
	decoded, consumed, err := DecodeFECFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFECFrame: %v", err)
	}
	if consumed != len(encoded)-3 {
		t.Fatalf("consumed = %d, want %d (must not swallow trailing bytes)", consumed, len(encoded)-3)
	}
	if string(decoded.Data) != "abc" {
		t.Fatalf("Data = %q, want %q", decoded.Data, "abc")
	}
}

func TestDecodeFECFrameRejectsTruncatedData(t *testing.T) {
	encoded := EncodeFECFrame(1, 1, 1, []byte("abcdef"))
	truncated := encoded[:len(encoded)-2]
	if _, _, err := DecodeFECFrame(truncated); err == nil {
		t.Fatalf("expected an error decoding a frame whose declared data is truncated")
	}
}

func TestDecodeFECFrameRejectsWrongType(t *testing.T) {
	buf := []byte{sourceFpidFrameType, 0, 0, 0, 1, 2, 3}
	if _, _, err := DecodeFECFrame(buf); err == nil {
		t.Fatalf("expected an error decoding a frame with the wrong type tag")
	}
}

func TestDecodeFECFrameRejectsShortHeader(t *testing.T) {
	buf := []byte{fecFrameType, 0, 0}
	if _, _, err := DecodeFECFrame(buf); err == nil {
		t.Fatalf("expected an error decoding a frame shorter than its fixed header")
	}
}
