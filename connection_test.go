package quicrx

import (
	"testing"
	"time"
)

func TestNewConnectionServerVsClientMode(t *testing.T) {
	now := time.Now()
	destCID := []byte{1, 2, 3, 4}
	srceCID := []byte{5, 6, 7, 8}

	server := newConnection(destCID, srceCID, SupportedVersions[0], false, now)
	if server.State != StateServerInit {
		t.Fatalf("server State = %v, want StateServerInit", server.State)
	}
	if server.ClientMode() {
		t.Fatalf("server-constructed connection reports ClientMode() true")
	}

	client := newConnection(destCID, srceCID, SupportedVersions[0], true, now)
	if client.State != StateClientInit {
		t.Fatalf("client State = %v, want StateClientInit", client.State)
	}
	if !client.ClientMode() {
		t.Fatalf("client-constructed connection reports ClientMode() false")
	}

	if !bytesEqual(server.InitialCID(), destCID) {
		t.Fatalf("InitialCID = %x, want %x", server.InitialCID(), destCID)
	}
	if _, ok := server.CryptoContext(EpochInitial); !ok {
		t.Fatalf("expected an Initial crypto context to be installed")
	}
}

func TestPathForDestCIDMatchesInitialOrLocalCID(t *testing.T) {
	now := time.Now()
	destCID := []byte{1, 2, 3, 4}
	srceCID := []byte{5, 6, 7, 8}
	cnx := newConnection(destCID, srceCID, SupportedVersions[0], false, now)

	if got := cnx.pathForDestCID(destCID); got != cnx.Paths[0] {
		t.Fatalf("expected initialCID to resolve to the primary path")
	}
	if got := cnx.pathForDestCID(srceCID); got != cnx.Paths[0] {
		t.Fatalf("expected the path's LocalCID to resolve to the primary path")
	}
	if got := cnx.pathForDestCID([]byte{9, 9, 9, 9}); got != nil {
		t.Fatalf("expected an unrelated destCID not to resolve, got %v", got)
	}
}

func TestResetToVersionUpdatesStateAndCryptoContext(t *testing.T) {
	now := time.Now()
	destCID := []byte{1, 2, 3, 4}
	cnx := newConnection(destCID, nil, SupportedVersions[0], true, now)

	newVersion := SupportedVersions[len(SupportedVersions)-1]
	cnx.ResetToVersion(newVersion, now)

	if cnx.State != StateClientInitSent {
		t.Fatalf("State = %v, want StateClientInitSent", cnx.State)
	}
	if cnx.VersionIndex() != versionIndex(newVersion) {
		t.Fatalf("VersionIndex = %d, want %d", cnx.VersionIndex(), versionIndex(newVersion))
	}
	if _, ok := cnx.CryptoContext(EpochInitial); !ok {
		t.Fatalf("expected a fresh Initial crypto context after reset")
	}
}

func TestUpdateSpinTogglesOnXORMismatch(t *testing.T) {
	now := time.Now()
	cnx := newConnection([]byte{1}, nil, SupportedVersions[0], true, now)

	// A client XORs the peer's spin bit against its own clientMode (true);
	// an incoming spin of true flips to newSpin=false, matching the
	// initial CurrentSpin=false, so no edge fires yet.
	cnx.UpdateSpin(true, now)
	if !cnx.SpinEdge.IsZero() {
		t.Fatalf("expected no spin edge when the XORed value matches CurrentSpin")
	}

	later := now.Add(time.Millisecond)
	cnx.UpdateSpin(false, later)
	if cnx.SpinEdge != later {
		t.Fatalf("expected a spin edge at %v, got %v", later, cnx.SpinEdge)
	}
	if !cnx.CurrentSpin {
		t.Fatalf("expected CurrentSpin to flip to true")
	}
	if cnx.SpinVec != 1 {
		t.Fatalf("SpinVec = %d, want 1", cnx.SpinVec)
	}
}

func TestUpdateSpinVecCapsAtThree(t *testing.T) {
	now := time.Now()
	cnx := newConnection([]byte{1}, nil, SupportedVersions[0], true, now)
	spin := false
	for i := 0; i < 6; i++ {
		spin = !spin
		cnx.UpdateSpin(spin, now.Add(time.Duration(i)*time.Millisecond))
	}
	if cnx.SpinVec != 3 {
		t.Fatalf("SpinVec = %d, want capped at 3", cnx.SpinVec)
	}
}

func TestRemoteCIDForPeerAndPrimaryPath(t *testing.T) {
	now := time.Now()
	srceCID := []byte{5, 6, 7, 8}
	cnx := newConnection([]byte{1, 2, 3, 4}, srceCID, SupportedVersions[0], false, now)

	if !bytesEqual(cnx.remoteCIDForPeer(), srceCID) {
		t.Fatalf("remoteCIDForPeer = %x, want %x", cnx.remoteCIDForPeer(), srceCID)
	}
	if cnx.PrimaryPath() != cnx.Paths[0] {
		t.Fatalf("PrimaryPath did not return Paths[0]")
	}

	empty := &Connection{}
	if empty.remoteCIDForPeer() != nil {
		t.Fatalf("remoteCIDForPeer on a pathless connection should return nil")
	}
	if empty.PrimaryPath() != nil {
		t.Fatalf("PrimaryPath on a pathless connection should return nil")
	}
}
