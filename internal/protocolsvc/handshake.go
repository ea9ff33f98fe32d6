package protocolsvc

import (
	"encoding/binary"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/ids"
)

// ProtocolVersion is the only protocol version this implementation speaks.
const ProtocolVersion uint32 = 1

// HandshakeInitiate is handshake message 1's required request-id.
const HandshakeInitiate uint32 = 1

// HandshakeAck is handshake message 3's request-id, carried as a bare
// root-shaped (method-id only, no body) frame under the session's first
// authed nonce.
const HandshakeAck uint32 = 2

// MACSize is the width of handshake message 2's trailing short-MAC.
const MACSize = 32

// Status is the handshake's response status vocabulary. It reuses
// dataproto's Status rather than inventing a second one: a response
// carrying (request-id, offset, status) means the same thing whether it
// came from the data service or, as here, from the protocol service's own
// handshake and command-phase framing.
type Status = dataproto.Status

// HelloRequest is handshake message 1 (§4.4): client → server, unencrypted
// raw frame.
type HelloRequest struct {
	RequestID       uint32
	RequestOffset   uint32
	ProtocolVersion uint32
	SuiteID         uint32
	ClientEntity    ids.ID
	ClientKeyNonce  []byte
	ClientChallenge []byte
}

// Encode produces message 1's wire payload, for a client-side peer.
func (h HelloRequest) Encode() []byte {
	out := make([]byte, 0, 32+len(h.ClientKeyNonce)+len(h.ClientChallenge))
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], h.RequestID)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], h.RequestOffset)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], h.ProtocolVersion)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], h.SuiteID)
	out = append(out, tmp[:]...)
	out = append(out, h.ClientEntity.Bytes()...)
	out = append(out, h.ClientKeyNonce...)
	out = append(out, h.ClientChallenge...)
	return out
}

// DecodeHelloRequest parses message 1's exact-size payload (§4.4: "Size
// must match exactly").
func DecodeHelloRequest(body []byte, suite CryptoSuite) (HelloRequest, error) {
	want := 16 + 16 + 2*suite.NonceSize
	if len(body) != want {
		return HelloRequest{}, agenterr.New(agenterr.MalformedRequest,
			"handshake init size %d != %d", len(body), want)
	}
	var h HelloRequest
	h.RequestID = binary.BigEndian.Uint32(body[0:4])
	h.RequestOffset = binary.BigEndian.Uint32(body[4:8])
	h.ProtocolVersion = binary.BigEndian.Uint32(body[8:12])
	h.SuiteID = binary.BigEndian.Uint32(body[12:16])
	entity, ok := ids.FromBytes(body[16:32])
	if !ok {
		return HelloRequest{}, agenterr.New(agenterr.MalformedRequest, "malformed client entity id")
	}
	h.ClientEntity = entity
	off := 32
	h.ClientKeyNonce = append([]byte(nil), body[off:off+suite.NonceSize]...)
	off += suite.NonceSize
	h.ClientChallenge = append([]byte(nil), body[off:off+suite.NonceSize]...)
	return h, nil
}

// Validate checks message 1's structural requirements independent of
// whether the entity is known (§4.4: "Any mismatch produces an
// unauthenticated error response and connection teardown").
func (h HelloRequest) Validate(suite CryptoSuite) error {
	if h.RequestID != HandshakeInitiate {
		return agenterr.New(agenterr.MalformedRequest, "handshake request-id %d != %d", h.RequestID, HandshakeInitiate)
	}
	if h.RequestOffset != 0 {
		return agenterr.New(agenterr.MalformedRequest, "handshake request-offset %d != 0", h.RequestOffset)
	}
	if h.ProtocolVersion != ProtocolVersion {
		return agenterr.New(agenterr.MalformedRequest, "protocol version %d != %d", h.ProtocolVersion, ProtocolVersion)
	}
	if h.SuiteID != suite.ID {
		return agenterr.New(agenterr.MalformedRequest, "suite id %d != %d", h.SuiteID, suite.ID)
	}
	return nil
}

// HelloResponse is handshake message 2 (§4.4): server → client, unencrypted
// raw frame, MAC-terminated.
type HelloResponse struct {
	RequestID       uint32
	Offset          uint32
	Status          Status
	ProtocolVersion uint32
	SuiteID         uint32
	ServerEntity    ids.ID
	ServerPublicKey [32]byte
	ServerKeyNonce  []byte
	ServerChallenge []byte
	MAC             [32]byte
}

// RecordBytes encodes every field up to (not including) the MAC -- the
// "entire preceding record" the MAC is computed over (§4.4 message 2).
// Exported so a client-side peer can recompute it to verify the MAC.
func (h HelloResponse) RecordBytes() []byte {
	out := make([]byte, 0, 16+16+32+len(h.ServerKeyNonce)+len(h.ServerChallenge))
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], h.RequestID)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], h.Offset)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], uint32(h.Status))
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], h.ProtocolVersion)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], h.SuiteID)
	out = append(out, tmp[:]...)
	out = append(out, h.ServerEntity.Bytes()...)
	out = append(out, h.ServerPublicKey[:]...)
	out = append(out, h.ServerKeyNonce...)
	out = append(out, h.ServerChallenge...)
	return out
}

// Encode appends h's trailing MAC to its record bytes, producing message
// 2's full wire payload.
func (h HelloResponse) Encode() []byte {
	return append(h.RecordBytes(), h.MAC[:]...)
}

// DecodeHelloResponse parses message 2 as the client observes it.
func DecodeHelloResponse(body []byte, suite CryptoSuite) (HelloResponse, error) {
	want := 20 + 16 + 32 + 2*suite.NonceSize + MACSize
	if len(body) != want {
		return HelloResponse{}, agenterr.New(agenterr.MalformedRequest,
			"handshake response size %d != %d", len(body), want)
	}
	var h HelloResponse
	h.RequestID = binary.BigEndian.Uint32(body[0:4])
	h.Offset = binary.BigEndian.Uint32(body[4:8])
	h.Status = Status(binary.BigEndian.Uint32(body[8:12]))
	h.ProtocolVersion = binary.BigEndian.Uint32(body[12:16])
	h.SuiteID = binary.BigEndian.Uint32(body[16:20])
	entity, ok := ids.FromBytes(body[20:36])
	if !ok {
		return HelloResponse{}, agenterr.New(agenterr.MalformedRequest, "malformed server entity id")
	}
	h.ServerEntity = entity
	copy(h.ServerPublicKey[:], body[36:68])
	off := 68
	h.ServerKeyNonce = append([]byte(nil), body[off:off+suite.NonceSize]...)
	off += suite.NonceSize
	h.ServerChallenge = append([]byte(nil), body[off:off+suite.NonceSize]...)
	off += suite.NonceSize
	copy(h.MAC[:], body[off:off+MACSize])
	return h, nil
}

// EncodeAck encodes handshake message 3's plaintext body: a bare 4-byte
// request-id, framed as an authed frame by the caller.
func EncodeAck() []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, HandshakeAck)
	return out
}

// DecodeAck validates an incoming ack body.
func DecodeAck(body []byte) error {
	if len(body) != 4 {
		return agenterr.New(agenterr.MalformedRequest, "ack size %d != 4", len(body))
	}
	if got := binary.BigEndian.Uint32(body); got != HandshakeAck {
		return agenterr.New(agenterr.MalformedRequest, "ack request-id %d != %d", got, HandshakeAck)
	}
	return nil
}
