package quicrx

//
// Connection (§3): endpoint state keyed by local/remote CIDs.
//

import (
	"time"

	"github.com/quicrxlabs/quicrx/fec"
)

// Connection is per-endpoint-pair state (§3). A Connection exclusively owns
// its [Path] slice, its per-epoch [CryptoContext] values, and its FEC
// state (§3's ownership rules); Paths hold only a non-owning back-reference
// resolved through the owning Connection (§9's cyclic-ownership note).
type Connection struct {
	// State is the current position in the state machine of §4.7.
	State ConnectionState

	// clientMode is true if this endpoint initiated the connection.
	clientMode bool

	// versionIndex indexes SupportedVersions; -1 until negotiated.
	versionIndex int

	// initialCID is the destination CID the client chose for its first
	// Initial packet; servers key their connection table entry on it until
	// a Retry or the handshake assigns a different local CID.
	initialCID []byte

	// cryptoContexts holds the per-epoch {aeadDecrypt, aeadEncrypt, hpDec,
	// hpEnc} bundle, supplied by the TLS driver for every epoch except
	// Initial (which this package derives itself, see crypto.go).
	cryptoContexts map[Epoch]*CryptoContext

	// Paths is the connection's path set, owned by index (§9).
	Paths []*Path

	// RetryToken is the single-owner retry token
	// (§5): freed before replacement, never aliased across connections.
	RetryToken []byte

	// CurrentSpin, PrevSpin, SpinEdge and SpinVec are the spin-bit
	// observables of §3, updated by §4.6's edge detector.
	CurrentSpin bool
	PrevSpin    bool
	SpinEdge    time.Time
	SpinVec     int

	// HandshakeDone is set once the TLS driver reports completion and the
	// Ready callback has fired (§4.4, Handshake/server-side rule).
	HandshakeDone bool

	// ProcessedTransportParameter is set once the post-handshake plugin
	// negotiation hook (§4.4's final step) has run.
	ProcessedTransportParameter bool

	// Callback is the application event callback (§6).
	Callback Callback

	// FEC is the per-connection FEC sender/receiver bookkeeping (§3, §4.8).
	FEC *fec.State

	// nextWake is the value last computed by Timers.NextWakeTime.
	nextWake time.Time
}

// newConnection constructs a Connection in its initial state. Servers pass
// clientMode=false; srceCID becomes the server's first local CID.
func newConnection(destCID, srceCID []byte, version uint32, clientMode bool, now time.Time) *Connection {
	state := StateServerInit
	if clientMode {
		state = StateClientInit
	}
	cnx := &Connection{
		State:          state,
		clientMode:     clientMode,
		versionIndex:   versionIndex(version),
		initialCID:     append([]byte{}, destCID...),
		cryptoContexts: make(map[Epoch]*CryptoContext),
		FEC:            fec.NewState(),
	}
	path := &Path{
		RemoteCID:       append([]byte{}, destCID...),
		LocalCID:        append([]byte{}, srceCID...),
		RetransmitTimer: 200 * time.Millisecond,
	}
	cnx.Paths = append(cnx.Paths, path)
	cnx.SetCryptoContext(EpochInitial, NewInitialCryptoContext(destCID, clientMode))
	return cnx
}

// ClientMode reports whether this endpoint initiated the connection.
func (cnx *Connection) ClientMode() bool { return cnx.clientMode }

// VersionIndex returns the negotiated version's index into
// [SupportedVersions], or -1.
func (cnx *Connection) VersionIndex() int { return cnx.versionIndex }

// InitialCID returns the client-chosen Initial destination CID.
func (cnx *Connection) InitialCID() []byte { return cnx.initialCID }

// SetCryptoContext installs the crypto context for epoch.
func (cnx *Connection) SetCryptoContext(epoch Epoch, ctx *CryptoContext) {
	cnx.cryptoContexts[epoch] = ctx
}

// CryptoContext returns the crypto context for epoch, if any.
func (cnx *Connection) CryptoContext(epoch Epoch) (*CryptoContext, bool) {
	ctx, ok := cnx.cryptoContexts[epoch]
	return ctx, ok
}

// remoteCIDForPeer returns the connection ID peers must use as destination
// CID to reach this connection's primary path, used by [ParseHeader]'s
// short-header fallback when the endpoint has no fixed CID length
// configured.
func (cnx *Connection) remoteCIDForPeer() []byte {
	if len(cnx.Paths) == 0 {
		return nil
	}
	return cnx.Paths[0].LocalCID
}

// PrimaryPath returns the connection's first (and, absent multipath, only)
// path.
func (cnx *Connection) PrimaryPath() *Path {
	if len(cnx.Paths) == 0 {
		return nil
	}
	return cnx.Paths[0]
}

// pathForDestCID implements §4.6's "an incoming path must resolve (by
// matching destCID to initialCID or the path's local CID)".
func (cnx *Connection) pathForDestCID(destCID []byte) *Path {
	if bytesEqual(destCID, cnx.initialCID) && len(cnx.Paths) > 0 {
		return cnx.Paths[0]
	}
	for _, p := range cnx.Paths {
		if bytesEqual(destCID, p.LocalCID) {
			return p
		}
	}
	return nil
}

// ResetToVersion implements the VN transition of §4.7: reset the
// connection to attempt version, keeping the same logical phase.
func (cnx *Connection) ResetToVersion(version uint32, now time.Time) {
	cnx.versionIndex = versionIndex(version)
	cnx.State = StateClientInitSent
	destCID := cnx.initialCID
	cnx.SetCryptoContext(EpochInitial, NewInitialCryptoContext(destCID, cnx.clientMode))
}

// UpdateSpin implements §4.6's spin-bit edge detector, called only when
// pn64 strictly exceeds the highest previously accepted PN for the
// packet's context (§5's ordering rule).
func (cnx *Connection) UpdateSpin(spin bool, now time.Time) {
	newSpin := spin != cnx.clientMode // XOR against clientMode
	if newSpin == cnx.CurrentSpin {
		return
	}
	cnx.PrevSpin = cnx.CurrentSpin
	cnx.CurrentSpin = newSpin
	cnx.SpinEdge = now
	if cnx.SpinVec < 3 {
		cnx.SpinVec++
	}
}

// bytesEqual is a small local helper so this file does not need to import
// bytes solely for an equality check.
func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
