package quicrx

//
// IncomingDispatcher (§4.4): per-packet-type handler selection and
// segment coalescing.
//
// The driver loop here plays the same role as the teacher's
// linkfwdcore.go forwarding loop — pull one unit of work, classify it,
// dispatch, repeat — generalized from "forward or drop one frame between
// two NICs" to "parse, decrypt, and dispatch one QUIC segment".
//

import (
	"net"
	"time"
)

// EndpointConfig configures an [IncomingDispatcher]. MANDATORY fields must
// be set; OPTIONAL fields have working zero values, mirroring the
// teacher's LinkConfig/RouterPort convention.
type EndpointConfig struct {
	// Logger is the OPTIONAL logger; defaults to [NewApexLogger].
	Logger Logger

	// Random is the OPTIONAL randomness source; defaults to
	// [NewRandomSource].
	Random RandomSource

	// Table is the MANDATORY connection table.
	Table *ConnectionTable

	// Decoder is the MANDATORY external frame decoder.
	Decoder FrameDecoder

	// TLS is the MANDATORY external TLS driver.
	TLS TLSDriver

	// Timers is the MANDATORY timer-wheel collaborator.
	Timers Timers

	// Observer is the OPTIONAL observer; defaults to [NopObserver].
	Observer Observer

	// IsServer selects server-side dispatch rules.
	IsServer bool

	// LocalCIDLength is the endpoint's configured short-header
	// destination CID length (0 falls back to by-address lookup, §4.1).
	LocalCIDLength int

	// RetryEnforced enables the server-side retry-token check of §4.4's
	// Initial handler.
	RetryEnforced bool

	// ResetSecret and RetryKey seed the [StatelessResponder].
	ResetSecret []byte
	RetryKey    []byte
}

// IncomingDispatcher implements §4.4's processDatagram/IncomingPacket
// entry point (§6).
type IncomingDispatcher struct {
	cfg        EndpointConfig
	logger     Logger
	random     RandomSource
	responder  *StatelessResponder
	outbox     [][]byte
}

// NewIncomingDispatcher constructs a dispatcher from cfg, filling OPTIONAL
// fields with their documented defaults.
func NewIncomingDispatcher(cfg EndpointConfig) *IncomingDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = NewApexLogger()
	}
	if cfg.Random == nil {
		cfg.Random = NewRandomSource()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &IncomingDispatcher{
		cfg:    cfg,
		logger: cfg.Logger,
		random: cfg.Random,
		responder: &StatelessResponder{
			Random:      cfg.Random,
			ResetSecret: cfg.ResetSecret,
			RetryKey:    cfg.RetryKey,
		},
	}
}

// Outbox drains and returns the reply datagrams (version negotiation,
// stateless reset, retry) accumulated by the most recent IncomingPacket
// call. §6's entry point has no return channel for these, matching the
// picoquic original's "enqueue" language, so this package exposes an
// explicit outbox the caller drains after each call instead of taking a
// socket dependency itself (sockets are out of scope, §1).
func (d *IncomingDispatcher) Outbox() [][]byte {
	out := d.outbox
	d.outbox = nil
	return out
}

// IncomingPacket implements the entry point of §6:
// incomingPacket(endpoint, bytes, length, addrFrom, addrTo, ifIndex, now)
// -> (status, newContextCreated).
func (d *IncomingDispatcher) IncomingPacket(bytes []byte, addrFrom, addrTo net.Addr, ifIndex int, now time.Time) (status int, newContextCreated bool) {
	d.cfg.Observer.ReceivedPacket(nil, addrFrom, 0)

	remaining := bytes
	var previousDestID []byte
	firstSegment := true
	overallStatus := 0
	anyNewContext := false

	for len(remaining) > 0 {
		consumed, segStatus, createdHere, err := d.dispatchSegment(remaining, addrFrom, addrTo, ifIndex, now, &previousDestID, firstSegment)
		firstSegment = false
		if createdHere {
			anyNewContext = true
		}
		if err != nil {
			d.logger.Debugf("quicrx: segment dropped: %s", err.Error())
		}
		if segStatus != 0 {
			overallStatus = segStatus
		}
		if consumed <= 0 || consumed > len(remaining) {
			break
		}
		remaining = remaining[consumed:]
	}
	return overallStatus, anyNewContext
}

// dispatchSegment parses, decrypts, and dispatches exactly one coalesced
// segment, returning the number of bytes it consumed.
func (d *IncomingDispatcher) dispatchSegment(raw []byte, addrFrom, addrTo net.Addr, ifIndex int, now time.Time, previousDestID *[]byte, firstSegment bool) (consumed int, status int, createdContext bool, err error) {
	ph, cnx, perr := ParseHeader(raw, addrFrom, d.cfg.IsServer, d.cfg.LocalCIDLength, d.cfg.Table, now)
	if perr != nil {
		return len(raw), -1, false, perr
	}
	if ph.Type == PacketTypeError && (raw[0]&0x40 == 0 || cnx != nil) {
		return ph.Offset, -1, false, newErrMalformedHeader("packet did not look like long or short header")
	}

	if firstSegment {
		*previousDestID = ph.DestCID
	}

	if cnx == nil {
		consumed, status = d.handleNoConnection(ph, raw, addrFrom, now)
		return consumed, status, false, nil
	}

	created := false
	if ph.Type == PacketTypeInitial && cnx.State == StateServerInit && len(cnx.Paths[0].LocalCID) == 0 {
		created = true
	}

	segLen := ph.Offset + ph.PayloadLength
	if ph.Type == PacketTypeVersionNegotiation || segLen <= 0 || segLen > len(raw) {
		segLen = len(raw)
	}

	status, herr := d.dispatchByType(cnx, ph, raw, addrFrom, now)
	if herr != nil && !isBenign(herr) {
		d.logger.Warnf("quicrx: %s", herr.Error())
	}
	if herr == nil {
		d.nudgeWake(cnx, now)
	}
	return segLen, status, created, herr
}

// handleNoConnection implements §4.4 rule 2: when no connection resolves,
// either reply with Version Negotiation or consider a stateless reset.
func (d *IncomingDispatcher) handleNoConnection(ph *PacketHeader, raw []byte, addrFrom net.Addr, now time.Time) (consumed int, status int) {
	if ph.Version != 0 && ph.VersionIndex < 0 {
		d.outbox = append(d.outbox, d.responder.BuildVersionNegotiation(ph))
		return len(raw), -1
	}
	if len(ph.DestCID) > 0 && len(raw) >= resetPacketMinSize {
		d.outbox = append(d.outbox, d.responder.BuildStatelessReset(ph.DestCID, len(raw), 0))
	}
	return len(raw), -1
}

// nudgeWake implements §4.4's final step: advance the connection's next
// wake-up time, and run the plugin negotiation hook once if transport
// parameters have arrived but not yet been processed.
func (d *IncomingDispatcher) nudgeWake(cnx *Connection, now time.Time) {
	if d.cfg.Timers != nil {
		cnx.nextWake = d.cfg.Timers.NextWakeTime(cnx, now)
	}
	if cnx.ProcessedTransportParameter {
		return
	}
	// Presence of transport parameters is only known to the TLS driver;
	// this package cannot observe it directly, so it simply re-checks
	// handshake completion as the trigger, matching §4.4's "if transport
	// parameters were received but not yet processed" guard in spirit.
	if d.cfg.TLS != nil && d.cfg.TLS.IsHandshakeComplete(cnx) {
		cnx.ProcessedTransportParameter = true
	}
}
