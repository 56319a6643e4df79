package quicrx

import (
	"net"
	"testing"
	"time"
)

func buildLongHeaderInitial(version uint32, destCID, srceCID, token, payload []byte) []byte {
	raw := []byte{0xC0}
	raw = putUint32(raw, version)
	raw = appendConnectionID(raw, destCID)
	raw = appendConnectionID(raw, srceCID)
	raw = appendVarint(raw, uint64(len(token)))
	raw = append(raw, token...)
	raw = appendVarint(raw, uint64(len(payload)))
	raw = append(raw, payload...)
	return raw
}

func buildVersionNegotiation(destCID, srceCID []byte) []byte {
	raw := []byte{0xC0}
	raw = putUint32(raw, 0)
	raw = appendConnectionID(raw, destCID)
	raw = appendConnectionID(raw, srceCID)
	return raw
}

func TestParseHeaderInitialNoConnectionCreatesServerSide(t *testing.T) {
	destCID := []byte{1, 2, 3, 4}
	srceCID := []byte{5, 6, 7, 8}
	payload := make([]byte, 20) // at least minimum PN + sample size

	raw := buildLongHeaderInitial(SupportedVersions[0], destCID, srceCID, nil, payload)

	table := NewConnectionTable()
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1234}
	now := time.Now()

	ph, cnx, err := ParseHeader(raw, addr, true, 0, table, now)
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if ph.Type != PacketTypeInitial {
		t.Fatalf("Type = %v, want PacketTypeInitial", ph.Type)
	}
	if cnx == nil {
		t.Fatalf("expected a freshly created server connection, got nil")
	}
	if cnx.State != StateServerInit {
		t.Fatalf("State = %v, want StateServerInit", cnx.State)
	}
	if !bytesEqual(cnx.initialCID, destCID) {
		t.Fatalf("initialCID = %x, want %x", cnx.initialCID, destCID)
	}
	if len(cnx.Paths[0].LocalCID) != 0 {
		t.Fatalf("freshly created connection should have no local CID yet, got %x", cnx.Paths[0].LocalCID)
	}

	// The same destCID now resolves to the connection just created.
	if got := table.ByID(destCID); got != cnx {
		t.Fatalf("table.ByID did not return the created connection")
	}
}

func TestParseHeaderInitialNoConnectionClientSideStaysNil(t *testing.T) {
	destCID := []byte{9, 9, 9, 9}
	raw := buildLongHeaderInitial(SupportedVersions[0], destCID, nil, nil, make([]byte, 16))

	table := NewConnectionTable()
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1234}

	_, cnx, err := ParseHeader(raw, addr, false, 0, table, time.Now())
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if cnx != nil {
		t.Fatalf("client-side parse with no match should not create a connection, got %v", cnx)
	}
}

func TestParseHeaderUnsupportedVersionReportsError(t *testing.T) {
	destCID := []byte{1}
	raw := buildLongHeaderInitial(0xdeadbeef, destCID, nil, nil, make([]byte, 4))

	ph, cnx, err := ParseHeader(raw, nil, true, 0, nil, time.Now())
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if cnx != nil {
		t.Fatalf("unsupported version must not resolve a connection")
	}
	if ph.Type != PacketTypeError {
		t.Fatalf("Type = %v, want PacketTypeError", ph.Type)
	}
	if ph.VersionIndex != -1 {
		t.Fatalf("VersionIndex = %d, want -1", ph.VersionIndex)
	}
}

func TestParseHeaderVersionNegotiation(t *testing.T) {
	destCID := []byte{1, 2}
	srceCID := []byte{3, 4}
	raw := buildVersionNegotiation(destCID, srceCID)

	ph, _, err := ParseHeader(raw, nil, true, 0, nil, time.Now())
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if ph.Type != PacketTypeVersionNegotiation {
		t.Fatalf("Type = %v, want PacketTypeVersionNegotiation", ph.Type)
	}
	if ph.Version != 0 {
		t.Fatalf("Version = %#x, want 0", ph.Version)
	}
}

func TestParseHeaderErrorOnLowBit(t *testing.T) {
	raw := []byte{0x00, 0, 0, 0}
	ph, cnx, err := ParseHeader(raw, nil, false, 0, nil, time.Now())
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if ph.Type != PacketTypeError {
		t.Fatalf("Type = %v, want PacketTypeError", ph.Type)
	}
	if cnx != nil {
		t.Fatalf("expected nil connection for an Error-type header")
	}
}

func TestParseHeaderRejectsEmptySegment(t *testing.T) {
	_, _, err := ParseHeader(nil, nil, false, 0, nil, time.Now())
	if err == nil {
		t.Fatalf("expected an error for an empty segment")
	}
}

func TestParseHeaderShortHeaderFallsBackToByAddress(t *testing.T) {
	table := NewConnectionTable()
	addr := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 4433}
	cnx := newConnection([]byte{1, 2, 3, 4}, []byte{5, 6, 7, 8}, SupportedVersions[0], false, time.Now())
	table.Register(cnx, addr)

	raw := []byte{0x40, 0xAA, 0xBB, 0xCC, 0xDD} // short header, localCIDLength 0 forces by-address lookup
	ph, got, err := ParseHeader(raw, addr, true, 0, table, time.Now())
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if got != cnx {
		t.Fatalf("expected by-address fallback to resolve the registered connection")
	}
	if ph.Type != PacketTypeOneRTTPhase0 {
		t.Fatalf("Type = %v, want PacketTypeOneRTTPhase0", ph.Type)
	}
}
