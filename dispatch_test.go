package quicrx

import (
	"net"
	"testing"
	"time"
)

func TestHandleNoConnectionBuildsVersionNegotiation(t *testing.T) {
	d, _, _ := newTestDispatcher(true)
	ph := &PacketHeader{
		Version:      0xdeadbeef,
		VersionIndex: -1,
		DestCID:      []byte{1, 2, 3, 4},
		SrceCID:      []byte{5, 6, 7, 8},
	}
	raw := make([]byte, 40)

	consumed, status := d.handleNoConnection(ph, raw, nil, time.Now())
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d (the whole datagram)", consumed, len(raw))
	}
	if status != -1 {
		t.Fatalf("status = %d, want -1", status)
	}
	out := d.Outbox()
	if len(out) != 1 {
		t.Fatalf("expected exactly one reply datagram, got %d", len(out))
	}
	if out[0][0]&0x80 == 0 {
		t.Fatalf("expected a version-negotiation reply with the long-header bit set")
	}
}

func TestHandleNoConnectionBuildsStatelessReset(t *testing.T) {
	d, _, _ := newTestDispatcher(true)
	ph := &PacketHeader{
		Version:      0, // short header, recognized version
		VersionIndex: 0,
		DestCID:      []byte{1, 2, 3, 4},
	}
	raw := make([]byte, 64)

	d.handleNoConnection(ph, raw, nil, time.Now())
	out := d.Outbox()
	if len(out) != 1 {
		t.Fatalf("expected exactly one stateless-reset reply, got %d", len(out))
	}
	if len(out[0]) < resetPacketMinSize {
		t.Fatalf("reset reply length %d below the minimum %d", len(out[0]), resetPacketMinSize)
	}
}

func TestHandleNoConnectionSkipsResetWhenDatagramTooSmall(t *testing.T) {
	d, _, _ := newTestDispatcher(true)
	ph := &PacketHeader{
		Version:      0,
		VersionIndex: 0,
		DestCID:      []byte{1, 2, 3, 4},
	}
	raw := make([]byte, 10) // below resetPacketMinSize

	d.handleNoConnection(ph, raw, nil, time.Now())
	if out := d.Outbox(); len(out) != 0 {
		t.Fatalf("expected no reply for an undersized triggering datagram, got %d", len(out))
	}
}

func TestHandleNoConnectionSkipsResetWhenNoDestCID(t *testing.T) {
	d, _, _ := newTestDispatcher(true)
	ph := &PacketHeader{Version: 0, VersionIndex: 0, DestCID: nil}
	raw := make([]byte, 64)

	d.handleNoConnection(ph, raw, nil, time.Now())
	if out := d.Outbox(); len(out) != 0 {
		t.Fatalf("expected no reset reply when the segment carries no destCID, got %d", len(out))
	}
}

func TestOutboxDrainsOnce(t *testing.T) {
	d, _, _ := newTestDispatcher(true)
	ph := &PacketHeader{Version: 0xdeadbeef, VersionIndex: -1, DestCID: []byte{1}}
	d.handleNoConnection(ph, make([]byte, 40), nil, time.Now())

	first := d.Outbox()
	if len(first) != 1 {
		t.Fatalf("expected one queued reply, got %d", len(first))
	}
	second := d.Outbox()
	if len(second) != 0 {
		t.Fatalf("expected the outbox to be empty after draining, got %d", len(second))
	}
}

func TestIncomingPacketMalformedSegmentIsDropped(t *testing.T) {
	d, decoder, _ := newTestDispatcher(false)
	// A segment whose first byte is zero is neither a valid long nor a
	// valid short header (bit 0x40 clear, rejected by ParseHeader, per the
	// header tests).
	status, created := d.IncomingPacket([]byte{0x00, 0, 0, 0}, nil, nil, 0, time.Now())
	if created {
		t.Fatalf("a malformed segment must not report a newly created connection")
	}
	if status != -1 {
		t.Fatalf("status = %d, want -1", status)
	}
	if decoder.decodeCalls != 0 {
		t.Fatalf("decoder should never be invoked for a malformed segment")
	}
}

func TestIncomingPacketDoesNotPanicOnEmptyInput(t *testing.T) {
	d, _, _ := newTestDispatcher(false)
	status, created := d.IncomingPacket(nil, &net.UDPAddr{}, nil, 0, time.Now())
	if status != 0 || created {
		t.Fatalf("status/created = %d/%v, want 0/false for empty input", status, created)
	}
}
