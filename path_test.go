package quicrx

import (
	"net"
	"testing"
	"time"
)

func TestPktCtxRecordReceivedAdvancesEndOfSackRange(t *testing.T) {
	var pc PktCtx
	if pc.HasReceived(5) {
		t.Fatalf("empty PktCtx should not report any packet as received")
	}
	pc.RecordReceived(5)
	if !pc.HasReceived(5) {
		t.Fatalf("expected pn 5 to be recorded")
	}
	if pc.EndOfSackRange != 6 {
		t.Fatalf("EndOfSackRange = %d, want 6", pc.EndOfSackRange)
	}
	// An older packet number must never move EndOfSackRange backwards.
	pc.RecordReceived(2)
	if pc.EndOfSackRange != 6 {
		t.Fatalf("EndOfSackRange regressed to %d after recording an older pn", pc.EndOfSackRange)
	}
}

func TestPktCtxPruneSackBefore(t *testing.T) {
	var pc PktCtx
	pc.RecordReceived(1)
	pc.RecordReceived(2)
	pc.RecordReceived(10)
	pc.PruneSackBefore(5)
	if pc.HasReceived(1) || pc.HasReceived(2) {
		t.Fatalf("expected entries below 5 to be pruned")
	}
	if !pc.HasReceived(10) {
		t.Fatalf("expected entries at or above 5 to survive pruning")
	}
}

func TestUpdateReceiveRateAnchorsOnFirstCall(t *testing.T) {
	p := &Path{}
	now := time.Now()
	p.UpdateReceiveRate(100, now)
	if p.Received != 100 {
		t.Fatalf("Received = %d, want 100", p.Received)
	}
	if p.ReceiveRateEpoch != now {
		t.Fatalf("expected the first call to anchor ReceiveRateEpoch")
	}
	if p.ReceiveRateEstimate != 0 {
		t.Fatalf("ReceiveRateEstimate should remain 0 until a full window elapses")
	}
}

func TestUpdateReceiveRateComputesEstimateAfterWindow(t *testing.T) {
	p := &Path{SmoothedRtt: 200 * time.Millisecond}
	start := time.Now()
	p.UpdateReceiveRate(1000, start)

	later := start.Add(300 * time.Millisecond)
	p.UpdateReceiveRate(2000, later)

	if p.ReceiveRateEstimate <= 0 {
		t.Fatalf("expected a positive receive-rate estimate, got %v", p.ReceiveRateEstimate)
	}
	if p.ReceiveRateMax != p.ReceiveRateEstimate {
		t.Fatalf("ReceiveRateMax = %v, want it to track the first estimate %v", p.ReceiveRateMax, p.ReceiveRateEstimate)
	}
	if p.ReceiveRateEpoch != later {
		t.Fatalf("expected the epoch to re-anchor to %v, got %v", later, p.ReceiveRateEpoch)
	}
}

func TestUpdateReceiveRateSkipsBeforeWindowElapses(t *testing.T) {
	p := &Path{SmoothedRtt: 500 * time.Millisecond}
	start := time.Now()
	p.UpdateReceiveRate(1000, start)
	p.UpdateReceiveRate(2000, start.Add(10*time.Millisecond))
	if p.ReceiveRateEstimate != 0 {
		t.Fatalf("expected no estimate before the measurement window elapses, got %v", p.ReceiveRateEstimate)
	}
}

func TestUpdateReceiveRateUsesMinimumInterval(t *testing.T) {
	p := &Path{} // SmoothedRtt zero, floors to bandwidthTimeIntervalMin
	start := time.Now()
	p.UpdateReceiveRate(500, start)
	p.UpdateReceiveRate(500, start.Add(bandwidthTimeIntervalMin/2))
	if p.ReceiveRateEstimate != 0 {
		t.Fatalf("expected no estimate before the floored interval elapses")
	}
	p.UpdateReceiveRate(500, start.Add(2*bandwidthTimeIntervalMin))
	if p.ReceiveRateEstimate == 0 {
		t.Fatalf("expected an estimate once the floored interval elapses")
	}
}

type recordingObserver struct {
	NopObserver
	changed []*Path
}

func (r *recordingObserver) PeerAddressChanged(path *Path) {
	r.changed = append(r.changed, path)
}

func TestHandlePeerAddressChangeIssuesChallenge(t *testing.T) {
	path := &Path{
		PeerAddr:        &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1},
		RetransmitTimer: time.Second,
		ChallengeRepeatCount: 3,
	}
	random := newFixedRandom(42)
	observer := &recordingObserver{}
	now := time.Now()

	newAddr := &net.UDPAddr{IP: net.ParseIP("203.0.113.2"), Port: 2}
	HandlePeerAddressChange(path, newAddr, now, random, observer)

	if path.PeerAddr != newAddr {
		t.Fatalf("expected PeerAddr to be updated to the new address")
	}
	if path.ChallengeVerified {
		t.Fatalf("a freshly issued challenge must not start verified")
	}
	if path.ChallengeRepeatCount != 0 {
		t.Fatalf("ChallengeRepeatCount = %d, want reset to 0", path.ChallengeRepeatCount)
	}
	if !path.ChallengeTime.Equal(now.Add(path.RetransmitTimer)) {
		t.Fatalf("ChallengeTime = %v, want %v", path.ChallengeTime, now.Add(path.RetransmitTimer))
	}
	if len(observer.changed) != 1 || observer.changed[0] != path {
		t.Fatalf("expected the observer to be notified exactly once with this path")
	}
}

func TestHandlePeerAddressChangeIgnoresSameAddress(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1}
	path := &Path{PeerAddr: addr, ChallengeVerified: true}
	observer := &recordingObserver{}

	HandlePeerAddressChange(path, &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1}, time.Now(), newFixedRandom(1), observer)

	if !path.ChallengeVerified {
		t.Fatalf("same-address notification must not disturb an already-verified challenge")
	}
	if len(observer.changed) != 0 {
		t.Fatalf("expected no observer notification for an unchanged address")
	}
}

func TestHandlePeerAddressChangeIgnoresUnspecifiedAddress(t *testing.T) {
	path := &Path{PeerAddr: &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1}}
	observer := &recordingObserver{}

	HandlePeerAddressChange(path, &net.UDPAddr{IP: net.IPv4zero, Port: 1}, time.Now(), newFixedRandom(1), observer)

	if len(observer.changed) != 0 {
		t.Fatalf("expected the unspecified address to be ignored")
	}
}
