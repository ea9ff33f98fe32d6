package wire

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"

	"synnergy-network/internal/agenterr"
)

// MACSize is the length of the authenticated-packet frame's MAC field.
const MACSize = poly1305.TagSize // 16

// SecretSize is the shared-secret length every authed frame is keyed with.
const SecretSize = 32

// Secret is the per-session symmetric key derived during the handshake
// (internal/session). It is defined here, not in internal/session, so that
// internal/wire has no dependency on the handshake package: the codec only
// needs 32 key bytes and a nonce, never how they were derived.
type Secret [SecretSize]byte

// nonceBytes expands the session's 64-bit counter into the 12-byte nonce
// ChaCha20 requires, left-padding with zeroes per the wire's big-endian
// convention (§4.1: "every multi-byte integer on the wire is big-endian").
func nonceBytes(nonce uint64) [chacha20.NonceSize]byte {
	var nb [chacha20.NonceSize]byte
	binary.BigEndian.PutUint64(nb[4:], nonce)
	return nb
}

// polyKey derives the one-time Poly1305 key from the first ChaCha20
// keystream block (RFC 8439 construction) and leaves c positioned at block
// counter 1, ready to encrypt the frame itself.
func polyKey(c *chacha20.Cipher) *[32]byte {
	var key [32]byte
	c.XORKeyStream(key[:], key[:])
	c.SetCounter(1)
	return &key
}

// EncodeAuthed builds an authenticated packet frame (type 0x30) encrypting
// plaintext under (secret, nonce). The type and size header fields are
// themselves run through the stream cipher before the MAC is computed over
// the encrypted header concatenated with the ciphertext (§4.1).
func EncodeAuthed(nonce uint64, secret Secret, plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxAuthedSize {
		return nil, agenterr.New(agenterr.OutOfMemory, "authed frame payload %d exceeds %d", len(plaintext), MaxAuthedSize)
	}

	c, err := chacha20.NewUnauthenticatedCipher(secret[:], sliceNonce(nonce))
	if err != nil {
		return nil, agenterr.Wrap(err, "chacha20 cipher init")
	}
	key := polyKey(c)

	out := make([]byte, HeaderSize+MACSize+len(plaintext))
	headerPlain := make([]byte, HeaderSize)
	putHeader(headerPlain, TypeAuthed, uint32(len(plaintext)))
	c.XORKeyStream(out[:HeaderSize], headerPlain)
	c.XORKeyStream(out[HeaderSize+MACSize:], plaintext)

	var tag [MACSize]byte
	poly1305.Sum(&tag, macInput(out[:HeaderSize], out[HeaderSize+MACSize:]), key)
	copy(out[HeaderSize:HeaderSize+MACSize], tag[:])
	return out, nil
}

// DecodeAuthed decrypts an authenticated packet frame from the front of
// buf. It requires at least HeaderSize+MACSize bytes to decrypt the header
// and recover the declared size; if the remaining ciphertext has not
// arrived yet it returns agenterr.WouldBlock without touching the MAC. Any
// MAC mismatch is an agenterr.AuthFailure and no plaintext is returned:
// nothing from an unverified payload escapes the decoder (§4.1).
func DecodeAuthed(nonce uint64, secret Secret, buf []byte) (plaintext []byte, consumed int, err error) {
	if len(buf) < HeaderSize+MACSize {
		return nil, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}

	c, err := chacha20.NewUnauthenticatedCipher(secret[:], sliceNonce(nonce))
	if err != nil {
		return nil, 0, agenterr.Wrap(err, "chacha20 cipher init")
	}
	key := polyKey(c)

	var headerPlain [HeaderSize]byte
	c.XORKeyStream(headerPlain[:], buf[:HeaderSize])
	typ, size := parseHeader(headerPlain[:])
	if typ != TypeAuthed {
		return nil, 0, agenterr.New(agenterr.UnexpectedDataType, "want authed frame, got type 0x%02x", typ)
	}
	if size > MaxAuthedSize {
		return nil, 0, agenterr.New(agenterr.PacketBadSize, "authed frame size %d exceeds %d", size, MaxAuthedSize)
	}

	total := HeaderSize + MACSize + int(size)
	if len(buf) < total {
		return nil, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}

	ciphertext := buf[HeaderSize+MACSize : total]
	var wantTag [MACSize]byte
	poly1305.Sum(&wantTag, macInput(buf[:HeaderSize], ciphertext), key)
	gotTag := buf[HeaderSize : HeaderSize+MACSize]
	if subtle.ConstantTimeCompare(wantTag[:], gotTag) != 1 {
		return nil, 0, agenterr.Sentinel(agenterr.AuthFailure)
	}

	out := make([]byte, size)
	// c's keystream position already advanced past the header bytes above;
	// this continues the same stream exactly where encode left off.
	c.XORKeyStream(out, ciphertext)
	return out, total, nil
}

func sliceNonce(nonce uint64) []byte {
	nb := nonceBytes(nonce)
	return nb[:]
}

// macInput concatenates the encrypted header and ciphertext into one slice
// for the MAC, copying rather than aliasing so callers may still mutate
// either input afterward.
func macInput(encHeader, ciphertext []byte) []byte {
	buf := make([]byte, len(encHeader)+len(ciphertext))
	n := copy(buf, encHeader)
	copy(buf[n:], ciphertext)
	return buf
}
