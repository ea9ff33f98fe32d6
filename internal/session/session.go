// Package session implements the authenticated session of §3 and the
// key-derivation and per-direction nonce bookkeeping the handshake (§4.4)
// and command phase depend on. The authed-frame codec itself lives in
// internal/wire; this package is the thing that owns the (secret, nonce)
// pairs the codec is keyed with.
package session

import (
	"io"

	"github.com/flynn/noise"
	"golang.org/x/crypto/blake2b"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/ids"
	"synnergy-network/internal/wire"
)

// NonceSize is the length of a handshake key-nonce or challenge-nonce.
const NonceSize = 16

// dh is the Curve25519 DH function the handshake uses for shared-secret
// derivation; it is package-level because noise.DH25519 carries no state.
var dh = noise.DH25519

// KeyPair is a Curve25519 DH keypair, the long-term identity key of an
// entity or the ephemeral key-nonce key exchanged during the handshake.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair draws a fresh Curve25519 keypair from rng.
func GenerateKeyPair(rng io.Reader) (KeyPair, error) {
	k, err := dh.GenerateKeypair(rng)
	if err != nil {
		return KeyPair{}, agenterr.Wrap(err, "generate keypair")
	}
	var kp KeyPair
	copy(kp.Private[:], k.Private)
	copy(kp.Public[:], k.Public)
	return kp, nil
}

// DeriveSecret computes the session's shared secret from the local private
// key, the peer's public key, and both sides' key-nonces, per §4.4's
// handshake message 2: "derive the shared secret from (server-privkey,
// client-pubkey, server-key-nonce, client-key-nonce)". Both sides pass the
// server's key-nonce first and the client's second, since they are hashed
// in that order. The raw X25519
// output is never used directly as a cipher key; it is whitened through a
// keyed BLAKE2b-256 so that key-nonce reuse across sessions cannot produce
// related keys.
func DeriveSecret(localPriv, peerPub [32]byte, serverKeyNonce, clientKeyNonce []byte) (wire.Secret, error) {
	raw, err := dh.DH(localPriv[:], peerPub[:])
	if err != nil {
		return wire.Secret{}, agenterr.Wrap(err, "x25519 dh")
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return wire.Secret{}, agenterr.Wrap(err, "blake2b init")
	}
	h.Write(raw)
	h.Write(serverKeyNonce)
	h.Write(clientKeyNonce)
	var secret wire.Secret
	copy(secret[:], h.Sum(nil))
	return secret, nil
}

// HandshakeMAC computes the short-MAC over record, keyed by secret, with
// the client's challenge nonce appended to the MAC input (§4.4 message 2).
func HandshakeMAC(secret wire.Secret, record, challengeNonce []byte) ([32]byte, error) {
	var out [32]byte
	h, err := blake2b.New256(secret[:])
	if err != nil {
		return out, agenterr.Wrap(err, "blake2b init")
	}
	h.Write(record)
	h.Write(challengeNonce)
	copy(out[:], h.Sum(nil))
	return out, nil
}

// State tags a Session's progress through the handshake (§3's "state tag
// monotonically advances ... and never returns to a pre-authenticated
// state once authenticated").
type State int

const (
	StateUnauthenticated State = iota
	StateHandshaking
	StateAuthenticated
)

// InitialClientIV and InitialServerIV are the fixed starting nonces (§3),
// exported so a client-side peer (outside this package's server-centric
// Session type) can key its own first authed frames identically.
const (
	InitialClientIV uint64 = 0x0000000000000001
	InitialServerIV uint64 = 0x8000000000000001
)

// Session is the authenticated-session record of §3: a peer identity, its
// long-term public key, the derived shared secret, the two monotonic
// nonces, and the state tag.
type Session struct {
	PeerEntity    ids.ID
	PeerPublicKey [32]byte
	Secret        wire.Secret
	clientIV      uint64
	serverIV      uint64
	state         State
}

// New constructs a Session at its pre-handshake nonces and unauthenticated
// state.
func New() *Session {
	return &Session{
		clientIV: InitialClientIV,
		serverIV: InitialServerIV,
		state:    StateUnauthenticated,
	}
}

// Advance moves the session to a later state. It is an error to move
// backward, enforcing invariant (b) of §3.
func (s *Session) Advance(to State) error {
	if to < s.state {
		return agenterr.New(agenterr.MalformedRequest, "session state regression %d -> %d", s.state, to)
	}
	s.state = to
	return nil
}

// State returns the session's current state tag.
func (s *Session) State() State { return s.state }

// EncryptServer reserves the next server nonce, encodes plaintext as an
// authed frame under it, and commits the reservation only if encoding
// succeeds — an aborted send never consumes a nonce (Design Note, §9).
func (s *Session) EncryptServer(plaintext []byte) ([]byte, error) {
	frame, err := wire.EncodeAuthed(s.serverIV, s.Secret, plaintext)
	if err != nil {
		return nil, err
	}
	s.serverIV++
	return frame, nil
}

// DecryptClient decodes the next authed frame from buf under the session's
// current client nonce, advancing the nonce only once a complete,
// authenticated frame has been consumed.
func (s *Session) DecryptClient(buf []byte) (plaintext []byte, consumed int, err error) {
	plaintext, consumed, err = wire.DecodeAuthed(s.clientIV, s.Secret, buf)
	if err != nil {
		return nil, 0, err
	}
	s.clientIV++
	return plaintext, consumed, nil
}

// ClientIV returns the nonce the next client-sent authed frame must use.
// Exposed for tests asserting the monotonicity invariant.
func (s *Session) ClientIV() uint64 { return s.clientIV }

// ServerIV returns the nonce the next server-sent authed frame will use.
func (s *Session) ServerIV() uint64 { return s.serverIV }
