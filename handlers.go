package quicrx

//
// PerTypeHandlers (§4.4, §4.6): Initial / Handshake / 0-RTT / 1-RTT /
// Retry / VN logic, once a segment has resolved to a Connection.
//

import (
	"fmt"
	"net"
	"time"

	"github.com/quicrxlabs/quicrx/fec"
)

// dispatchByType implements §4.4's per-type dispatch once a connection has
// been resolved for ph. It runs CryptoGate, PNRecovery, and anti-replay
// before handing off to the type-specific rule, then (on success) records
// the packet number in the path's SACK set per rule 4.
func (d *IncomingDispatcher) dispatchByType(cnx *Connection, ph *PacketHeader, raw []byte, addrFrom net.Addr, now time.Time) (status int, err error) {
	if ph.Type == PacketTypeVersionNegotiation {
		return d.handleVersionNegotiation(cnx, ph, now)
	}
	if ph.Type == PacketTypeRetry {
		return d.handleRetry(cnx, ph, raw, now)
	}

	ctx, ok := cnx.CryptoContext(ph.Epoch)
	if !ok {
		return -1, newErrUnexpectedPacket("no crypto context installed for this epoch")
	}

	var gate CryptoGate
	gate.Unprotect(ph, raw, ctx)
	plaintext, derr := gate.Decrypt(ph, raw, ctx)
	if derr != nil {
		return -1, derr
	}

	path := SelectIncomingPath(cnx, ph)
	if path == nil {
		return -1, newErrCnxidCheck("no path resolves for destination CID")
	}

	expected := path.PktCtx[ph.PacketContext].EndOfSackRange
	ph.PN64 = DecodePacketNumber(expected, ph.PNMask, uint64(ph.PN))

	if path.PktCtx[ph.PacketContext].HasReceived(ph.PN64) {
		path.PktCtx[ph.PacketContext].AckNeeded = true
		return -1, ErrDuplicate
	}

	d.cfg.Observer.HeaderParsed(cnx, ph, path, ph.Offset+ph.PayloadLength)

	switch ph.Type {
	case PacketTypeInitial:
		status, err = d.handleInitial(cnx, ph, path, plaintext, addrFrom, now)
	case PacketTypeHandshake:
		status, err = d.handleHandshake(cnx, ph, path, plaintext, now)
	case PacketTypeZeroRTT:
		status, err = d.handleZeroRTT(cnx, ph, path, plaintext, now)
	case PacketTypeOneRTTPhase0, PacketTypeOneRTTPhase1:
		status, err = d.handleIncomingEncrypted(cnx, ph, path, plaintext, addrFrom, now)
	default:
		return -1, newErrUnexpectedPacket("packet type has no registered handler")
	}

	if err == nil {
		path.PktCtx[ph.PacketContext].RecordReceived(ph.PN64)
	}
	return status, err
}

// handleVersionNegotiation implements §4.4's VN rule: only valid from
// ClientInitSent, resets the connection to the first entry of
// SupportedVersions other than the current one. The version list carried
// in the VN packet's payload is not read.
func (d *IncomingDispatcher) handleVersionNegotiation(cnx *Connection, ph *PacketHeader, now time.Time) (int, error) {
	if cnx.State != StateClientInitSent {
		return -1, newErrUnexpectedPacket("version negotiation outside ClientInitSent")
	}
	if ph.Version != 0 || !bytesEqual(ph.DestCID, cnx.PrimaryPath().LocalCID) {
		return -1, newErrCnxidCheck("version negotiation destCID mismatch or non-zero version")
	}
	var offered uint32
	found := false
	for _, v := range SupportedVersions {
		if v != SupportedVersions[cnx.versionIndex] {
			offered = v
			found = true
			break
		}
	}
	if !found {
		return -1, newErrUnexpectedPacket("no alternative version to negotiate to")
	}
	cnx.ResetToVersion(offered, now)
	return 0, nil
}

// handleRetry implements §4.4's Retry rule.
func (d *IncomingDispatcher) handleRetry(cnx *Connection, ph *PacketHeader, raw []byte, now time.Time) (int, error) {
	if cnx.State != StateClientInitSent && cnx.State != StateClientInitResent {
		return -1, newErrUnexpectedPacket("retry outside ClientInitSent/ClientInitResent")
	}
	if ph.VersionIndex != cnx.versionIndex {
		return -1, newErrUnexpectedPacket("retry version mismatch")
	}
	body := raw[ph.Offset : ph.Offset+ph.PayloadLength]
	if len(body) < 1 {
		return -1, newErrMalformedHeader("retry payload too short")
	}
	odcil := int(body[0] & 0x0f)
	if 1+odcil > len(body) {
		return -1, newErrMalformedHeader("retry odcil overruns payload")
	}
	odcid := body[1 : 1+odcil]
	if !bytesEqual(odcid, cnx.initialCID) {
		return -1, newErrUnexpectedPacket("retry original destCID does not match client's initialCID")
	}
	token := append([]byte{}, body[1+odcil:]...)

	cnx.RetryToken = token
	cnx.initialCID = append([]byte{}, ph.SrceCID...)
	cnx.Paths[0].RemoteCID = append([]byte{}, ph.SrceCID...)
	cnx.State = StateClientInit
	cnx.SetCryptoContext(EpochInitial, NewInitialCryptoContext(cnx.initialCID, true))
	return -1, ErrRetry
}

// handleInitial implements §4.4's Initial rule.
func (d *IncomingDispatcher) handleInitial(cnx *Connection, ph *PacketHeader, path *Path, plaintext []byte, addrFrom net.Addr, now time.Time) (int, error) {
	if !bytesEqual(ph.DestCID, cnx.initialCID) && !bytesEqual(ph.DestCID, path.LocalCID) {
		return -1, newErrCnxidCheck("initial destCID matches neither initialCID nor local CID")
	}
	if len(path.RemoteCID) == 0 {
		path.RemoteCID = append([]byte{}, ph.SrceCID...)
	} else if !bytesEqual(path.RemoteCID, ph.SrceCID) {
		return -1, newErrCnxidCheck("initial srceCID does not match recorded remote CID")
	}

	if d.cfg.IsServer && d.cfg.RetryEnforced && cnx.State == StateServerInit {
		peerIP := peerIPBytes(addrFrom)
		expected := d.responder.ComputeRetryToken(peerIP)
		if len(cnx.RetryToken) != 16 || !bytesEqual(cnx.RetryToken, expected[:]) {
			newSrceCID := make([]byte, 8)
			d.cfg.Random.PublicRandom(newSrceCID)
			d.outbox = append(d.outbox, d.responder.BuildRetry(ph, newSrceCID, expected[:]))
			return -1, ErrRetry
		}
		cnx.State = StateServerHandshake
	}

	if err := d.cfg.Decoder.Decode(cnx, plaintext, ph.Epoch, now, path); err != nil {
		return -1, err
	}
	if err := d.cfg.TLS.StreamProcess(cnx); err != nil {
		return -1, err
	}
	return 0, nil
}

// handleHandshake implements §4.4's Handshake rule for both client and
// server roles.
func (d *IncomingDispatcher) handleHandshake(cnx *Connection, ph *PacketHeader, path *Path, plaintext []byte, now time.Time) (int, error) {
	if cnx.clientMode {
		if cnx.State == StateClientInitSent {
			cnx.State = StateClientHandshakeStart
		}
		if len(path.RemoteCID) == 0 {
			path.RemoteCID = append([]byte{}, ph.SrceCID...)
		} else if !bytesEqual(path.RemoteCID, ph.SrceCID) {
			return -1, newErrCnxidCheck("handshake srceCID does not match recorded remote CID")
		}
	} else if !bytesEqual(path.RemoteCID, ph.SrceCID) {
		return -1, newErrCnxidCheck("handshake srceCID does not match remote CID")
	}

	if err := d.cfg.Decoder.Decode(cnx, plaintext, ph.Epoch, now, path); err != nil {
		return -1, err
	}
	if err := d.cfg.TLS.StreamProcess(cnx); err != nil {
		return -1, err
	}

	if !d.cfg.IsServer {
		path.PktCtx[PacketContextInitial].AckNeeded = true
		return 0, nil
	}

	if d.cfg.TLS.IsHandshakeComplete(cnx) && !cnx.HandshakeDone {
		cnx.HandshakeDone = true
		cnx.State = StateServerReady
		path.PktCtx[PacketContextInitial].AckNeeded = true
		path.PktCtx[PacketContextHandshake].AckNeeded = true
		if cnx.Callback != nil {
			if err := cnx.Callback(cnx, -1, nil, CallbackEventReady, nil); err != nil {
				return -1, err
			}
		}
	}
	return 0, nil
}

// handleZeroRTT implements §4.4's 0-RTT rule.
func (d *IncomingDispatcher) handleZeroRTT(cnx *Connection, ph *PacketHeader, path *Path, plaintext []byte, now time.Time) (int, error) {
	if !bytesEqual(ph.DestCID, cnx.initialCID) && !bytesEqual(ph.DestCID, path.LocalCID) {
		return -1, newErrCnxidCheck("0-RTT destCID matches neither initialCID nor local CID")
	}
	if !bytesEqual(path.RemoteCID, ph.SrceCID) {
		return -1, newErrCnxidCheck("0-RTT srceCID does not match remote CID")
	}
	if cnx.State != StateServerAlmostReady && cnx.State != StateServerReady {
		return -1, newErrUnexpectedPacket("0-RTT outside ServerAlmostReady/ServerReady")
	}
	if ph.VersionIndex != cnx.versionIndex {
		return -1, newErrProtocolViolation0RTT()
	}
	if err := d.cfg.Decoder.Decode(cnx, plaintext, ph.Epoch, now, path); err != nil {
		return -1, err
	}
	if err := d.cfg.TLS.StreamProcess(cnx); err != nil {
		return -1, err
	}
	return 0, nil
}

func newErrProtocolViolation0RTT() error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, "0-RTT version does not match negotiated version")
}

// handleIncomingEncrypted implements §4.6.
func (d *IncomingDispatcher) handleIncomingEncrypted(cnx *Connection, ph *PacketHeader, path *Path, plaintext []byte, addrFrom net.Addr, now time.Time) (int, error) {
	if !cnx.State.isAtLeastClientAlmostReady() || cnx.State == StateDisconnected {
		return -1, newErrUnexpectedPacket("1-RTT packet before ClientAlmostReady or after Disconnected")
	}

	if ph.PN64 >= path.PktCtx[ph.PacketContext].EndOfSackRange {
		cnx.UpdateSpin(ph.Spin, now)
	}

	if cnx.State.isAtLeastClosingReceived() {
		if cnx.State != StateClosing {
			path.PktCtx[ph.PacketContext].AckNeeded = true
			return 0, nil
		}
		closingReceived, err := d.cfg.Decoder.DecodeClosing(cnx, plaintext)
		if err != nil {
			return -1, err
		}
		if closingReceived {
			if cnx.clientMode {
				cnx.State = StateDisconnected
			} else {
				cnx.State = StateDraining
			}
		}
		return 0, nil
	}

	HandlePeerAddressChange(path, addrFrom, now, d.cfg.Random, d.cfg.Observer)
	path.UpdateReceiveRate(len(plaintext), now)

	remaining, serr := d.consumeFECFrame(cnx, ph, plaintext)
	if serr != nil {
		d.logger.Debugf("quicrx: FEC frame handling failed: %s", serr.Error())
	}

	path.PktCtx[ph.PacketContext].AckNeeded = true
	if err := d.cfg.Decoder.Decode(cnx, remaining, ph.Epoch, now, path); err != nil {
		return -1, err
	}
	if err := d.cfg.TLS.StreamProcess(cnx); err != nil {
		return -1, err
	}
	return 0, nil
}

// consumeFECFrame implements the in-scope half of §4.8's wire frames: a
// 1-RTT packet's payload may lead with a SourceFPID or FEC frame (mutually
// exclusive per the sender-side invariant); if so, this strips it and feeds
// the FEC sublayer before the remaining bytes reach the external frame
// decoder.
func (d *IncomingDispatcher) consumeFECFrame(cnx *Connection, ph *PacketHeader, plaintext []byte) ([]byte, error) {
	if sfpid, n, ok := fec.DecodeSourceFPIDFrame(plaintext); ok {
		blockNumber := cnx.FEC.BlockNumberForSFPID(sfpid)
		ss := fec.NewSourceSymbol(sfpid, ph.PN64, plaintext[n:])
		err := cnx.FEC.Receiver.ReceiveSourceSymbol(ss, blockNumber, 0, d.reinjectRecovered(cnx, ph))
		return plaintext[n:], err
	}
	if frame, n, err := fec.DecodeFECFrame(plaintext); err == nil {
		rs := &fec.RepairSymbol{RFPID: frame.RepairFecPayloadID, Data: frame.Data}
		rerr := cnx.FEC.Receiver.ReceiveRepairSymbol(rs, frame.RepairFecPayloadID, frame.NSS, frame.NRS, d.reinjectRecovered(cnx, ph))
		return plaintext[n:], rerr
	}
	return plaintext, nil
}

// reinjectRecovered returns the callback FECFramework invokes for every
// symbol a block's recovery pass materializes, implementing §4.8's
// "feed the remaining bytes through the frame decoder as if freshly
// received."
func (d *IncomingDispatcher) reinjectRecovered(cnx *Connection, ph *PacketHeader) fec.RecoveredSymbolFunc {
	return func(pn64 uint64, payload []byte) error {
		path := cnx.PrimaryPath()
		if err := d.cfg.Decoder.Decode(cnx, payload, ph.Epoch, time.Time{}, path); err != nil {
			return err
		}
		path.PktCtx[PacketContextApplication].RecordReceived(pn64)
		return nil
	}
}

// peerIPBytes extracts the raw IP bytes (4 for IPv4, 16 for IPv6) from
// addr, per §4.4's retry-token derivation rule.
func peerIPBytes(addr net.Addr) []byte {
	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil
	}
	if v4 := udp.IP.To4(); v4 != nil {
		return v4
	}
	return udp.IP.To16()
}
