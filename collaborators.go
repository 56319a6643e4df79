package quicrx

//
// External collaborators (§6): interfaces only, no implementation. These
// are the seams where the TLS handshake driver, the frame decoder, the
// timer wheel and the observability hooks plug in.
//

import (
	"net"
	"time"
)

// FrameDecoder decodes the QUIC frames carried by a decrypted packet
// payload and applies their effects to cnx. It is the external collaborator
// named in §6; this module never interprets frame bytes itself.
type FrameDecoder interface {
	// Decode decodes bytes received at the given epoch on path, as of now.
	Decode(cnx *Connection, bytes []byte, epoch Epoch, now time.Time, path *Path) error

	// DecodeClosing decodes only the frames permitted while a connection is
	// closing or draining (§4.6), reporting whether a CONNECTION_CLOSE was
	// observed.
	DecodeClosing(cnx *Connection, bytes []byte) (closingReceived bool, err error)
}

// TLSDriver advances the TLS handshake state machine for a connection.
type TLSDriver interface {
	// StreamProcess feeds any buffered CRYPTO data to the handshake state
	// machine and lets it produce new outgoing CRYPTO data or keys.
	StreamProcess(cnx *Connection) error

	// IsHandshakeComplete reports whether the handshake has finished.
	IsHandshakeComplete(cnx *Connection) bool
}

// Timers abstracts the endpoint's timer wheel.
type Timers interface {
	// NextWakeTime recomputes cnx's next wake-up time given now.
	NextWakeTime(cnx *Connection, now time.Time) time.Time
}

// CallbackEvent is the event kind delivered to a connection's application
// [Callback].
type CallbackEvent int

const (
	// CallbackEventReady fires once the handshake has completed.
	CallbackEventReady CallbackEvent = iota

	// CallbackEventStatelessReset fires when a stateless reset has been
	// recognized for this connection.
	CallbackEventStatelessReset

	// CallbackEventPeerAddressChanged denotes a change of a path's peer
	// address. The dispatcher does not deliver it to the Callback; peer
	// address changes are reported through [Observer.PeerAddressChanged].
	CallbackEventPeerAddressChanged
)

// Callback is the application callback invoked by the dispatcher on
// connection-level events.
type Callback func(cnx *Connection, streamID int64, bytes []byte, event CallbackEvent, extra any) error

// Observer receives notifications about dispatcher-internal events;
// implementations are expected to be test doubles or metrics sinks, never
// control flow.
type Observer interface {
	// PeerAddressChanged fires when a path's peer address changes.
	PeerAddressChanged(path *Path)

	// HeaderParsed fires for every segment that resolves to a connection
	// and path and passes decryption, packet-number recovery and the
	// duplicate check, before its type-specific handler runs.
	HeaderParsed(cnx *Connection, ph *PacketHeader, path *Path, consumed int)

	// ReceivedPacket fires once per incoming UDP datagram, before it is
	// split into segments.
	ReceivedPacket(socket net.PacketConn, addrFrom net.Addr, tos int)
}

// NopObserver implements [Observer] with no-op methods; embed it to avoid
// implementing methods you don't care about.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) PeerAddressChanged(path *Path)                                   {}
func (NopObserver) HeaderParsed(cnx *Connection, ph *PacketHeader, path *Path, n int) {}
func (NopObserver) ReceivedPacket(socket net.PacketConn, addrFrom net.Addr, tos int) {}
