package quicrx

//
// Connection state machine (§4.7)
//

// ConnectionState enumerates the states of record in §4.7. States owned by
// the external frame decoder / TLS driver (e.g. the exact sub-phases of
// "processing CRYPTO data") are not modeled here; only the transitions this
// package itself makes are represented.
type ConnectionState int

const (
	StateClientInit ConnectionState = iota
	StateClientInitSent
	StateClientInitResent
	StateClientHandshakeStart
	StateClientHandshakeProgress
	StateClientAlmostReady
	StateClientReady
	StateServerInit
	StateServerHandshake
	StateServerAlmostReady
	StateServerReady
	StateClosingReceived
	StateClosing
	StateDraining
	StateDisconnected
)

// String implements fmt.Stringer for log messages.
func (s ConnectionState) String() string {
	switch s {
	case StateClientInit:
		return "client_init"
	case StateClientInitSent:
		return "client_init_sent"
	case StateClientInitResent:
		return "client_init_resent"
	case StateClientHandshakeStart:
		return "client_handshake_start"
	case StateClientHandshakeProgress:
		return "client_handshake_progress"
	case StateClientAlmostReady:
		return "client_almost_ready"
	case StateClientReady:
		return "client_ready"
	case StateServerInit:
		return "server_init"
	case StateServerHandshake:
		return "server_handshake"
	case StateServerAlmostReady:
		return "server_almost_ready"
	case StateServerReady:
		return "server_ready"
	case StateClosingReceived:
		return "closing_received"
	case StateClosing:
		return "closing"
	case StateDraining:
		return "draining"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// isAtLeastClientAlmostReady reports whether s is at or beyond the point
// where 1-RTT processing is permitted (§4.6's precondition).
func (s ConnectionState) isAtLeastClientAlmostReady() bool {
	switch s {
	case StateClientAlmostReady, StateClientReady,
		StateServerAlmostReady, StateServerReady,
		StateClosingReceived, StateClosing, StateDraining:
		return true
	default:
		return false
	}
}

// isAtLeastClosingReceived reports whether s is in the terminal chain.
func (s ConnectionState) isAtLeastClosingReceived() bool {
	switch s {
	case StateClosingReceived, StateClosing, StateDraining, StateDisconnected:
		return true
	default:
		return false
	}
}
