package quicrx

//
// Path (§3): per-destination state.
//

import (
	"net"
	"time"

	"github.com/montanaflynn/stats"
)

// bandwidthTimeIntervalMin is PICOQUIC_BANDWIDTH_TIME_INTERVAL_MIN (§6): the
// minimum elapsed time before the receive-rate estimator re-anchors.
const bandwidthTimeIntervalMin = 100 * time.Millisecond

// receiveRateSampleWindow bounds how many receive-rate samples [Path] keeps
// for the jitter estimate; this is the one place this module goes beyond
// the bare two counters of spec.md §3 (receiveRateEstimate/receiveRateMax),
// enriched with github.com/montanaflynn/stats now that a stats library is
// part of the domain stack (see SPEC_FULL.md §6).
const receiveRateSampleWindow = 16

// PktCtx is the per-(path, packetContext) bookkeeping of §3.
type PktCtx struct {
	// SendSequence is the next outgoing packet number in this context.
	SendSequence uint64

	// EndOfSackRange is one past the highest packet number fully processed
	// without a fatal error, the "expected" input to [DecodePacketNumber].
	EndOfSackRange uint64

	// sack is the set of packet numbers already received, used for the
	// anti-replay check (§4.3). A map is adequate here: the single-
	// threaded cooperative model (§5) never accesses it concurrently, and
	// eviction of old entries is deliberately left to the caller via
	// PruneSackBefore, mirroring picoquic's bounded SACK ranges.
	sack map[uint64]bool

	// AckNeeded is set whenever a packet was accepted (or was a duplicate)
	// and the path owes the peer an acknowledgment.
	AckNeeded bool
}

// HasReceived reports whether pn64 is already recorded in the SACK set.
func (pc *PktCtx) HasReceived(pn64 uint64) bool {
	return pc.sack[pn64]
}

// RecordReceived records pn64 as received and advances EndOfSackRange,
// implementing the "Monotone SACK" invariant of §8.
func (pc *PktCtx) RecordReceived(pn64 uint64) {
	if pc.sack == nil {
		pc.sack = make(map[uint64]bool)
	}
	pc.sack[pn64] = true
	if pn64+1 > pc.EndOfSackRange {
		pc.EndOfSackRange = pn64 + 1
	}
}

// PruneSackBefore discards SACK entries older than pn64, bounding memory
// use; callers typically call this once EndOfSackRange has advanced well
// past pn64.
func (pc *PktCtx) PruneSackBefore(pn64 uint64) {
	for k := range pc.sack {
		if k < pn64 {
			delete(pc.sack, k)
		}
	}
}

// Path is per-destination connection state (§3).
type Path struct {
	// PeerAddr is the path's current remote address.
	PeerAddr net.Addr

	// LocalAddr is the local address this path is bound to.
	LocalAddr net.Addr

	// IfIndex is the receive interface index the path was last observed on.
	IfIndex int

	// RemoteCID is the connection ID this endpoint places in outgoing
	// packets' destination CID field.
	RemoteCID []byte

	// LocalCID is the connection ID peers must use as destination CID to
	// reach this path.
	LocalCID []byte

	// PktCtx holds per-packet-context state, indexed by [PacketContext].
	PktCtx [3]PktCtx

	// Challenge is the outstanding path-validation challenge, valid only
	// while ChallengeVerified is false.
	Challenge uint64

	// ChallengeVerified is true once the peer has echoed Challenge back.
	ChallengeVerified bool

	// ChallengeTime is when the challenge is due for retransmission: the
	// time it was issued plus RetransmitTimer.
	ChallengeTime time.Time

	// ChallengeRepeatCount counts challenge retransmissions.
	ChallengeRepeatCount int

	// Received is the cumulative number of payload bytes received on this
	// path.
	Received uint64

	// ReceivedPrior is the value of Received at the last receive-rate
	// anchor point.
	ReceivedPrior uint64

	// ReceiveRateEpoch is when the current receive-rate measurement window
	// started; zero means "not yet anchored".
	ReceiveRateEpoch time.Time

	// ReceiveRateEstimate is the most recent receive-rate estimate, in
	// bytes per second.
	ReceiveRateEstimate float64

	// ReceiveRateMax is the highest ReceiveRateEstimate observed so far.
	ReceiveRateMax float64

	// receiveRateSamples is the rolling window feeding ReceiveRateJitter.
	receiveRateSamples []float64

	// ReceiveRateJitter is the population standard deviation of the last
	// receiveRateSampleWindow receive-rate estimates.
	ReceiveRateJitter float64

	// SmoothedRtt is the path's smoothed round-trip time estimate, as
	// maintained by the (external) loss-detection module; this package
	// only reads it to size the receive-rate measurement window (§4.6).
	SmoothedRtt time.Duration

	// RetransmitTimer is the current path-challenge retransmission
	// interval.
	RetransmitTimer time.Duration
}

// UpdateReceiveRate implements the accounting described in §4.6: accumulate
// received bytes, and once per measurement window (smoothedRtt, floored at
// bandwidthTimeIntervalMin) compute a new estimate and re-anchor.
func (p *Path) UpdateReceiveRate(payloadLen int, now time.Time) {
	p.Received += uint64(payloadLen)
	if p.ReceiveRateEpoch.IsZero() {
		p.ReceiveRateEpoch = now
		p.ReceivedPrior = p.Received
		return
	}
	interval := p.SmoothedRtt
	if interval < bandwidthTimeIntervalMin {
		interval = bandwidthTimeIntervalMin
	}
	elapsed := now.Sub(p.ReceiveRateEpoch)
	if elapsed <= interval {
		return
	}
	delta := float64(p.Received - p.ReceivedPrior)
	estimate := delta * 1e6 / float64(elapsed.Microseconds())
	p.ReceiveRateEstimate = estimate
	if estimate > p.ReceiveRateMax {
		p.ReceiveRateMax = estimate
	}
	p.recordReceiveRateSample(estimate)
	p.ReceiveRateEpoch = now
	p.ReceivedPrior = p.Received
}

// recordReceiveRateSample appends estimate to the rolling window and
// recomputes ReceiveRateJitter using stats.StandardDeviation.
func (p *Path) recordReceiveRateSample(estimate float64) {
	p.receiveRateSamples = append(p.receiveRateSamples, estimate)
	if len(p.receiveRateSamples) > receiveRateSampleWindow {
		p.receiveRateSamples = p.receiveRateSamples[len(p.receiveRateSamples)-receiveRateSampleWindow:]
	}
	if len(p.receiveRateSamples) < 2 {
		return
	}
	sd, err := stats.StandardDeviation(stats.Float64Data(p.receiveRateSamples))
	if err == nil {
		p.ReceiveRateJitter = sd
	}
}

