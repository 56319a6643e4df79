package quicrx

//
// CryptoGate (§4.3): header-protection unmask and AEAD decrypt, both
// in-place on the segment buffer.
//
// The TLS handshake driver and key schedule are external collaborators
// (§1), except for the Initial epoch: RFC 9001 derives Initial secrets
// from the destination connection ID alone, so this package can and does
// compute them itself. This is a direct generalization of the teacher's
// quiccrypto.go, which already derives the Initial client secret, header
// protection key, and AEAD key/IV from a destination CID using
// golang.org/x/crypto/hkdf and crypto/aes; the HP-mask-then-AEAD sequence
// there is lifted almost unchanged into CryptoGate below and made to work
// for both read and write directions and for the server secret, not just
// the client one.
//

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/hkdf"
)

// HeaderProtector produces the 5-byte header-protection mask from a
// ciphertext sample, per RFC 9001 §5.4.
type HeaderProtector interface {
	// IVSize is hpIvSize(hp) of §4.3: the sample size this protector needs.
	IVSize() int

	// Mask returns the mask derived from sample.
	Mask(sample []byte) []byte
}

// AEADOpener decrypts a packet payload. nonce is the per-packet nonce
// already derived from pn64 by the caller's AEAD context (the IV/pn64 XOR
// is the AEAD implementation's concern, not CryptoGate's).
type AEADOpener interface {
	Open(dst, nonce, ciphertext, aad []byte) ([]byte, error)
	NonceSize() int
}

// AEADSealer encrypts a packet payload. Nothing in this module's
// decrypt-only pipeline calls it; it is kept symmetric with AEADOpener since
// CryptoContext always carries both directions, per §3.
type AEADSealer interface {
	Seal(dst, nonce, plaintext, aad []byte) []byte
	NonceSize() int
}

// CryptoContext is the per-epoch {aeadDecrypt, aeadEncrypt, hpDec, hpEnc}
// bundle of §3, supplied by the external TLS key schedule for every epoch
// except Initial.
type CryptoContext struct {
	AeadDecrypt AEADOpener
	AeadEncrypt AEADSealer
	HPDec       HeaderProtector
	HPEnc       HeaderProtector
}

// initialSalt is the version-specific salt RFC 9001 §5.2 defines for
// deriving Initial secrets (the draft-29 / v1 salt used by the teacher).
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
	0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
}

// hkdfExpandLabel HKDF-expands a label, per RFC 8446 §7.1. Ported from the
// teacher's quiccrypto.go helper of the same name.
func hkdfExpandLabel(hash crypto.Hash, secret, context []byte, label string, length int) []byte {
	b := make([]byte, 3, 3+6+len(label)+1+len(context))
	binary.BigEndian.PutUint16(b, uint16(length))
	b[2] = uint8(6 + len(label))
	b = append(b, []byte("tls13 ")...)
	b = append(b, []byte(label)...)
	b = b[:3+6+len(label)+1]
	b[3+6+len(label)] = uint8(len(context))
	b = append(b, context...)

	out := make([]byte, length)
	n, err := hkdf.Expand(hash.New, secret, b).Read(out)
	if err != nil || n != length {
		panic("quicrx: HKDF-Expand-Label invocation failed unexpectedly")
	}
	return out
}

// computeInitialSecrets derives the client and server Initial secrets from
// a destination connection ID (RFC 9001 §5.2). Ported from
// quiccrypto.go's computeSecrets.
func computeInitialSecrets(destCID []byte) (clientSecret, serverSecret []byte) {
	initialSecret := hkdf.Extract(crypto.SHA256.New, destCID, initialSalt)
	clientSecret = hkdfExpandLabel(crypto.SHA256, initialSecret, []byte{}, "client in", crypto.SHA256.Size())
	serverSecret = hkdfExpandLabel(crypto.SHA256, initialSecret, []byte{}, "server in", crypto.SHA256.Size())
	return
}

// computeHP derives a header-protection key from a traffic secret. Ported
// from quiccrypto.go's computeHP.
func computeHP(secret []byte) []byte {
	return hkdfExpandLabel(crypto.SHA256, secret, []byte{}, "quic hp", 16)
}

// computeKeyAndIV derives the AEAD key and IV from a traffic secret. Ported
// from quiccrypto.go's computeInitialKeyAndIV, generalized to any traffic
// secret (not just Initial).
func computeKeyAndIV(secret []byte) (key, iv []byte) {
	key = hkdfExpandLabel(crypto.SHA256, secret, []byte{}, "quic key", 16)
	iv = hkdfExpandLabel(crypto.SHA256, secret, []byte{}, "quic iv", 12)
	return
}

// aesECBHeaderProtector implements [HeaderProtector] using AES-ECB single
// block encryption, the primitive RFC 9001 §5.4.3 specifies for AEAD_AES
// cipher suites. Ported from quiccrypto.go's inline use of aes.NewCipher
// plus block.Encrypt in clientInitial.Decrypt.
type aesECBHeaderProtector struct {
	block cipher.Block
}

func newAESHeaderProtector(hpKey []byte) *aesECBHeaderProtector {
	block, err := aes.NewCipher(hpKey)
	if err != nil {
		panic("quicrx: invalid AES header protection key: " + err.Error())
	}
	return &aesECBHeaderProtector{block: block}
}

func (p *aesECBHeaderProtector) IVSize() int { return p.block.BlockSize() }

func (p *aesECBHeaderProtector) Mask(sample []byte) []byte {
	mask := make([]byte, p.block.BlockSize())
	p.block.Encrypt(mask, sample)
	return mask
}

// aeadNonceLength is the AES-GCM nonce length QUIC uses (RFC 9001 §5.3).
const aeadNonceLength = 12

// xorNonceAEAD wraps a cipher.AEAD by XORing the packet-number-derived
// nonce into a fixed IV before each call, per RFC 9001 §5.3. Ported from
// quiccrypto.go's xorNonceAEAD / aeadAESGCMTLS13.
type xorNonceAEAD struct {
	iv   [aeadNonceLength]byte
	aead cipher.AEAD
}

func newAESGCMAEAD(key, iv []byte) *xorNonceAEAD {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic("quicrx: invalid AES-GCM key: " + err.Error())
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic("quicrx: cipher.NewGCM: " + err.Error())
	}
	ret := &xorNonceAEAD{aead: gcm}
	copy(ret.iv[:], iv)
	return ret
}

func (a *xorNonceAEAD) NonceSize() int { return 8 }

func (a *xorNonceAEAD) nonce(pn64 uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], pn64)
	nonce := make([]byte, aeadNonceLength)
	copy(nonce, a.iv[:])
	for i, b := range buf {
		nonce[4+i] ^= b
	}
	return nonce
}

func (a *xorNonceAEAD) Open(dst, _, ciphertext, aad []byte) ([]byte, error) {
	// dst is unused; callers pass the pn64-derived nonce via Open's second
	// argument normally, but CryptoGate calls OpenPN64 below so that the
	// nonce derivation (packet number XORed into the fixed IV) stays next
	// to the IV it is derived from.
	return a.aead.Open(dst[:0], ciphertext[:0], ciphertext, aad)
}

// OpenPN64 decrypts ciphertext using the nonce derived from pn64.
func (a *xorNonceAEAD) OpenPN64(pn64 uint64, ciphertext, aad []byte) ([]byte, error) {
	return a.aead.Open(ciphertext[:0], a.nonce(pn64), ciphertext, aad)
}

// SealPN64 encrypts plaintext using the nonce derived from pn64.
func (a *xorNonceAEAD) SealPN64(pn64 uint64, plaintext, aad []byte) []byte {
	return a.aead.Seal(nil, a.nonce(pn64), plaintext, aad)
}

func (a *xorNonceAEAD) Seal(dst, _, plaintext, aad []byte) []byte {
	return a.aead.Seal(dst, a.iv[:8], plaintext, aad)
}

// NewInitialCryptoContext derives the Initial-epoch [CryptoContext] for
// destCID. isClient selects which of the two directional secrets backs
// AeadDecrypt vs AeadEncrypt: a client decrypts with the server secret and
// encrypts with the client secret, and vice versa for a server.
func NewInitialCryptoContext(destCID []byte, isClient bool) *CryptoContext {
	clientSecret, serverSecret := computeInitialSecrets(destCID)
	readSecret, writeSecret := serverSecret, clientSecret
	if !isClient {
		readSecret, writeSecret = clientSecret, serverSecret
	}

	readKey, readIV := computeKeyAndIV(readSecret)
	writeKey, writeIV := computeKeyAndIV(writeSecret)

	readAEAD := newAESGCMAEAD(readKey, readIV)
	writeAEAD := newAESGCMAEAD(writeKey, writeIV)

	return &CryptoContext{
		AeadDecrypt: pn64Opener{readAEAD},
		AeadEncrypt: pn64Sealer{writeAEAD},
		HPDec:       newAESHeaderProtector(computeHP(readSecret)),
		HPEnc:       newAESHeaderProtector(computeHP(writeSecret)),
	}
}

// pn64Opener adapts xorNonceAEAD.OpenPN64 to [AEADOpener]: CryptoGate
// always calls Open with nonce set to the 8 big-endian bytes of pn64,
// which is what OpenPN64 expects once decoded back.
type pn64Opener struct{ aead *xorNonceAEAD }

func (o pn64Opener) NonceSize() int { return 8 }
func (o pn64Opener) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	return o.aead.OpenPN64(binary.BigEndian.Uint64(nonce), ciphertext, aad)
}

type pn64Sealer struct{ aead *xorNonceAEAD }

func (s pn64Sealer) NonceSize() int { return 8 }
func (s pn64Sealer) Seal(dst, nonce, plaintext, aad []byte) []byte {
	return s.aead.SealPN64(binary.BigEndian.Uint64(nonce), plaintext, aad)
}

// CryptoGate implements §4.3's two in-place steps.
type CryptoGate struct{}

// pnSentinel is the sentinel PN used when the HP sample doesn't fit, per
// §4.3: "mark the packet's PN as a sentinel (0xFFFFFFFF with top-32-bit
// mask) and skip to AEAD (which will fail)".
const pnSentinel = 0xFFFFFFFF

// Unprotect removes header protection in place on raw, per §4.3 step 1. ph
// must already have PnOffset set by [ParseHeader].
func (CryptoGate) Unprotect(ph *PacketHeader, raw []byte, ctx *CryptoContext) {
	sampleOffset := ph.PnOffset + 4
	sampleSize := ctx.HPDec.IVSize()
	if sampleOffset+sampleSize > len(raw) {
		ph.PN = pnSentinel
		ph.PNMask = 0xFFFFFFFF00000000
		return
	}

	mask := ctx.HPDec.Mask(raw[sampleOffset : sampleOffset+sampleSize])

	isLongHeader := raw[0]&0x80 != 0
	if isLongHeader {
		raw[0] ^= mask[0] & 0x0f
	} else {
		raw[0] ^= mask[0] & 0x1f
	}
	pnLength := int(raw[0]&0x03) + 1

	pn := uint32(0)
	for i := 0; i < pnLength; i++ {
		raw[ph.PnOffset+i] ^= mask[1+i]
		pn = (pn << 8) | uint32(raw[ph.PnOffset+i])
	}
	ph.PN = pn
	ph.Offset = ph.PnOffset + pnLength
	ph.PayloadLength -= pnLength
	ph.PNMask = ^uint64(0) << uint(8*pnLength)

	if !isLongHeader {
		keyPhase := raw[0]&0x04 != 0
		if keyPhase {
			ph.Type = PacketTypeOneRTTPhase1
		} else {
			ph.Type = PacketTypeOneRTTPhase0
		}
	}
}

// Decrypt performs §4.3 step 2 in place on raw, returning the decrypted
// payload (a subslice of raw) or [ErrAeadCheck].
func (CryptoGate) Decrypt(ph *PacketHeader, raw []byte, ctx *CryptoContext) ([]byte, error) {
	if ph.PN == pnSentinel {
		return nil, newErrAeadCheck("header protection sample did not fit")
	}
	aad := raw[:ph.Offset]
	ciphertext := raw[ph.Offset : ph.Offset+ph.PayloadLength]

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], ph.PN64)

	plaintext, err := ctx.AeadDecrypt.Open(ciphertext[:0], nonce[:], ciphertext, aad)
	if err != nil {
		return nil, newErrAeadCheck(err.Error())
	}
	return plaintext, nil
}
