package quicrx

//
// PathManager (§4.6, subset): incoming-path selection, peer-address
// migration, receive-rate accounting. The receive-rate math itself lives on
// [Path.UpdateReceiveRate]; this file covers the two other pieces of
// §4.6 that need more than one Path's worth of context: which path an
// incoming segment resolves to, and what happens when its source address
// moves.
//

import (
	"net"
	"time"
)

// SelectIncomingPath implements §4.6's precondition: "an incoming path
// must resolve (by matching destCID to initialCID or the path's local
// CID)". Returns nil if no path resolves.
func SelectIncomingPath(cnx *Connection, ph *PacketHeader) *Path {
	return cnx.pathForDestCID(ph.DestCID)
}

// HandlePeerAddressChange implements §4.6's migration rule: if addrFrom
// differs from path.PeerAddr (and is not the zero address), adopt it,
// issue a fresh path-validation challenge, and notify observer.
func HandlePeerAddressChange(path *Path, addrFrom net.Addr, now time.Time, random RandomSource, observer Observer) {
	if addrFrom == nil || isZeroAddr(addrFrom) {
		return
	}
	if path.PeerAddr != nil && path.PeerAddr.String() == addrFrom.String() {
		return
	}
	path.PeerAddr = addrFrom
	path.Challenge = random.PublicRandom64()
	path.ChallengeVerified = false
	path.ChallengeTime = now.Add(path.RetransmitTimer)
	path.ChallengeRepeatCount = 0
	observer.PeerAddressChanged(path)
}

// isZeroAddr reports whether addr is the unspecified 0.0.0.0 (or [::])
// address, which §4.6 excludes from triggering a migration.
func isZeroAddr(addr net.Addr) bool {
	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		return false
	}
	return udp.IP.IsUnspecified()
}
