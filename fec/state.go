package fec

//
// State (§3's FECState): per-connection sender/receiver pair.
//

// defaultN and defaultK pick a modest default repair ratio (2 repair
// symbols per 5 source symbols) for connections that never call
// [State.UseScheme] explicitly.
const (
	defaultK = 5
	defaultN = 7
)

// State is the per-connection FEC bookkeeping of §3: a sender and a
// receiver sharing one coding scheme.
type State struct {
	Sender   *Sender
	Receiver *Receiver

	lastSFPID   int64
	blockCursor uint32
}

// NewState implements createFrameworks(cnx) of §4.8 with the default
// [BlockScheme] ratio; callers that want the sliding-window scheme instead
// call [State.UseScheme] before any packet is protected.
func NewState() *State {
	return newStateWithScheme(NewBlockScheme(defaultN, defaultK))
}

// NewStateWithScheme implements createFrameworks(cnx) with an explicitly
// chosen scheme, atomically allocating both the sender and the receiver
// (§4.8: "Atomically succeed or free both").
func NewStateWithScheme(scheme Scheme) *State {
	return newStateWithScheme(scheme)
}

func newStateWithScheme(scheme Scheme) *State {
	return &State{
		Sender:   NewSender(scheme),
		Receiver: NewReceiver(scheme),
		lastSFPID: -1,
	}
}

// BlockNumberForSFPID maps an incoming bare SFPID (the only field the
// SourceFPID wire frame carries, §4.8) to a receive-side block number. The
// frame carries no block number of its own, so this tracks a cursor that
// advances whenever sfpid does not strictly increase relative to the
// previous call, treating that as a block boundary — sound for
// [BlockScheme], where SFPIDs are block-relative and therefore reset to 0
// each block; an approximation for [WindowScheme], whose SFPIDs never
// reset (see DESIGN.md for the tradeoff).
func (s *State) BlockNumberForSFPID(sfpid uint32) uint32 {
	if s.lastSFPID >= 0 && int64(sfpid) <= s.lastSFPID {
		s.blockCursor++
	}
	s.lastSFPID = int64(sfpid)
	return s.blockCursor
}

// UseScheme atomically replaces both the sender's and the receiver's
// coding scheme. Only safe to call before any symbol has been protected or
// received, since neither side's in-progress block survives the swap.
func (s *State) UseScheme(scheme Scheme) {
	s.Sender = NewSender(scheme)
	s.Receiver = NewReceiver(scheme)
}
