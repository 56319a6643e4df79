package quicrx

//
// ConnectionTable (§3, §6): lookup by destination CID or by peer address.
//
// §5 requires that concurrency across connections be realized by
// partitioning connection tables rather than locking inside the core; this
// type is therefore intentionally not safe for concurrent use by itself —
// callers that need concurrent endpoints shard by creating one
// [ConnectionTable] per worker, mirroring how the teacher's [RouterPort]
// gives every attached NIC its own queue instead of sharing one under a
// lock.
//

import (
	"net"
	"time"
)

// ConnectionTable indexes live [Connection] values by connection ID and by
// peer network address.
type ConnectionTable struct {
	byID  map[string]*Connection
	byNet map[string]*Connection
}

// NewConnectionTable returns an empty [ConnectionTable].
func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{
		byID:  make(map[string]*Connection),
		byNet: make(map[string]*Connection),
	}
}

// ByID returns the connection registered under connection ID id, or nil.
func (t *ConnectionTable) ByID(id []byte) *Connection {
	return t.byID[string(id)]
}

// ByNet returns the connection registered under peer address addr, or nil.
func (t *ConnectionTable) ByNet(addr net.Addr) *Connection {
	if addr == nil {
		return nil
	}
	return t.byNet[addr.String()]
}

// Create registers a new [Connection] for a handshake starting now,
// keyed by destCID (the client's chosen initial CID) and srceCID (the
// locally-chosen CID, empty until the server picks one). addrFrom anchors
// the by-address lookup used while no CID has been negotiated yet (§4.1's
// short-header fallback).
func (t *ConnectionTable) Create(destCID, srceCID []byte, addrFrom net.Addr, now time.Time, version uint32, clientMode bool) *Connection {
	cnx := newConnection(destCID, srceCID, version, clientMode, now)
	t.Register(cnx, addrFrom)
	return cnx
}

// Register indexes an already-constructed connection, used both by Create
// and by handlers that assign a fresh local CID mid-handshake (e.g. the
// server's first response to a client Initial).
func (t *ConnectionTable) Register(cnx *Connection, addrFrom net.Addr) {
	if len(cnx.initialCID) > 0 {
		t.byID[string(cnx.initialCID)] = cnx
	}
	for _, p := range cnx.Paths {
		if len(p.LocalCID) > 0 {
			t.byID[string(p.LocalCID)] = cnx
		}
	}
	if addrFrom != nil {
		t.byNet[addrFrom.String()] = cnx
	}
}

// RegisterCID additionally indexes cnx under id, used when a connection
// adopts a new local CID (e.g. after a retry or a NEW_CONNECTION_ID frame
// decoded by the external [FrameDecoder]).
func (t *ConnectionTable) RegisterCID(cnx *Connection, id []byte) {
	if len(id) > 0 {
		t.byID[string(id)] = cnx
	}
}

// Delete removes cnx from every index. Per §5, removals happen only on
// explicit connection deletion or a fatal early error.
func (t *ConnectionTable) Delete(cnx *Connection) {
	if len(cnx.initialCID) > 0 {
		delete(t.byID, string(cnx.initialCID))
	}
	for _, p := range cnx.Paths {
		if len(p.LocalCID) > 0 {
			delete(t.byID, string(p.LocalCID))
		}
		if p.PeerAddr != nil {
			if t.byNet[p.PeerAddr.String()] == cnx {
				delete(t.byNet, p.PeerAddr.String())
			}
		}
	}
}
