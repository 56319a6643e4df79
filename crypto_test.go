package quicrx

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestCryptoGateRoundTrip builds a protected Initial packet the way a
// sender would (seal, then mask the header) and checks that
// [CryptoGate.Unprotect] and [CryptoGate.Decrypt] invert it exactly,
// exercising §8's "header parse/format round-trip" property end to end
// through the crypto layer.
func TestCryptoGateRoundTrip(t *testing.T) {
	destCID := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	clientCtx := NewInitialCryptoContext(destCID, true)
	serverCtx := NewInitialCryptoContext(destCID, false)

	payload := []byte("hello quic initial payload, long enough to cover a header protection sample")
	const pn64 = uint64(2)
	const pnLength = 1

	header := []byte{0xC0, 0, 0, 0, 1, byte(len(destCID))}
	header = append(header, destCID...)
	header = append(header, 0) // srce CID length
	header = append(header, 0) // token length varint
	header = append(header, byte(len(payload)+16+pnLength))
	header = append(header, byte(pn64))

	aad := append([]byte{}, header...)

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], pn64)
	ciphertext := clientCtx.AeadEncrypt.Seal(nil, nonce[:], payload, aad)

	raw := append([]byte{}, header...)
	raw = append(raw, ciphertext...)

	pnOffset := len(header) - pnLength
	sampleOffset := pnOffset + 4
	sampleSize := clientCtx.HPEnc.IVSize()
	for sampleOffset+sampleSize > len(raw) {
		raw = append(raw, 0)
	}

	mask := clientCtx.HPEnc.Mask(raw[sampleOffset : sampleOffset+sampleSize])
	raw[0] ^= mask[0] & 0x0f
	for i := 0; i < pnLength; i++ {
		raw[pnOffset+i] ^= mask[1+i]
	}

	ph := &PacketHeader{
		Type:          PacketTypeInitial,
		PnOffset:      pnOffset,
		PayloadLength: pnLength + len(ciphertext),
	}

	gate := CryptoGate{}
	gate.Unprotect(ph, raw, serverCtx)
	if ph.PN != uint32(pn64) {
		t.Fatalf("recovered PN = %d, want %d", ph.PN, pn64)
	}
	ph.PN64 = pn64

	plaintext, err := gate.Decrypt(ph, raw, serverCtx)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if diff := cmp.Diff(payload, plaintext); diff != "" {
		t.Fatalf("decrypted payload mismatch (-want +got):\n%s", diff)
	}
}

func TestCryptoGateUnprotectSentinelOnShortSample(t *testing.T) {
	destCID := []byte{1, 2, 3, 4}
	ctx := NewInitialCryptoContext(destCID, false)
	raw := make([]byte, 5) // far too short for a header-protection sample
	ph := &PacketHeader{PnOffset: 4}

	CryptoGate{}.Unprotect(ph, raw, ctx)
	if ph.PN != pnSentinel {
		t.Fatalf("PN = %#x, want sentinel %#x", ph.PN, uint32(pnSentinel))
	}

	if _, err := (CryptoGate{}).Decrypt(ph, raw, ctx); err == nil {
		t.Fatalf("expected Decrypt to fail once PN carries the sentinel value")
	}
}

func TestComputeInitialSecretsClientServerDiffer(t *testing.T) {
	destCID := []byte{9, 8, 7, 6, 5}
	clientSecret, serverSecret := computeInitialSecrets(destCID)
	if cmp.Equal(clientSecret, serverSecret) {
		t.Fatalf("client and server Initial secrets must differ")
	}

	clientSecret2, serverSecret2 := computeInitialSecrets(destCID)
	if diff := cmp.Diff(clientSecret, clientSecret2); diff != "" {
		t.Fatalf("computeInitialSecrets is not deterministic for the client secret:\n%s", diff)
	}
	if diff := cmp.Diff(serverSecret, serverSecret2); diff != "" {
		t.Fatalf("computeInitialSecrets is not deterministic for the server secret:\n%s", diff)
	}
}

func TestNewInitialCryptoContextDirectionsAreComplementary(t *testing.T) {
	destCID := []byte{1, 1, 1, 1}
	client := NewInitialCryptoContext(destCID, true)
	server := NewInitialCryptoContext(destCID, false)

	plaintext := []byte("some plaintext well over fifty bytes long to clear any minimum length check")
	aad := []byte("associated data")
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], 7)

	ciphertext := client.AeadEncrypt.Seal(nil, nonce[:], plaintext, aad)
	got, err := server.AeadDecrypt.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		t.Fatalf("server failed to open what client sealed: %v", err)
	}
	if diff := cmp.Diff(plaintext, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	// The reverse direction (server writes, client reads) must also work.
	ciphertext2 := server.AeadEncrypt.Seal(nil, nonce[:], plaintext, aad)
	got2, err := client.AeadDecrypt.Open(nil, nonce[:], ciphertext2, aad)
	if err != nil {
		t.Fatalf("client failed to open what server sealed: %v", err)
	}
	if diff := cmp.Diff(plaintext, got2); diff != "" {
		t.Fatalf("reverse round trip mismatch (-want +got):\n%s", diff)
	}
}
