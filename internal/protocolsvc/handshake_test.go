package protocolsvc_test

import (
	"bytes"
	"testing"

	"synnergy-network/internal/ids"
	"synnergy-network/internal/protocolsvc"
)

func TestHelloRequestEncodeDecodeRoundTrip(t *testing.T) {
	suite := protocolsvc.DefaultSuite
	want := protocolsvc.HelloRequest{
		RequestID:       protocolsvc.HandshakeInitiate,
		RequestOffset:   0,
		ProtocolVersion: protocolsvc.ProtocolVersion,
		SuiteID:         suite.ID,
		ClientEntity:    ids.New(),
		ClientKeyNonce:  bytes.Repeat([]byte{0xaa}, suite.NonceSize),
		ClientChallenge: bytes.Repeat([]byte{0xbb}, suite.NonceSize),
	}

	got, err := protocolsvc.DecodeHelloRequest(want.Encode(), suite)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestID != want.RequestID || got.RequestOffset != want.RequestOffset ||
		got.ProtocolVersion != want.ProtocolVersion || got.SuiteID != want.SuiteID ||
		got.ClientEntity != want.ClientEntity {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if !bytes.Equal(got.ClientKeyNonce, want.ClientKeyNonce) {
		t.Fatalf("client key nonce mismatch")
	}
	if !bytes.Equal(got.ClientChallenge, want.ClientChallenge) {
		t.Fatalf("client challenge mismatch")
	}
	if err := got.Validate(suite); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestHelloRequestDecodeRejectsWrongSize(t *testing.T) {
	suite := protocolsvc.DefaultSuite
	_, err := protocolsvc.DecodeHelloRequest([]byte("too short"), suite)
	if err == nil {
		t.Fatal("expected an error decoding an undersized handshake init")
	}
}

func TestHelloRequestValidateRejectsWrongVersion(t *testing.T) {
	suite := protocolsvc.DefaultSuite
	h := protocolsvc.HelloRequest{
		RequestID:       protocolsvc.HandshakeInitiate,
		ProtocolVersion: protocolsvc.ProtocolVersion + 1,
		SuiteID:         suite.ID,
	}
	if err := h.Validate(suite); err == nil {
		t.Fatal("expected an error for a mismatched protocol version")
	}
}

func TestHelloResponseEncodeDecodeRoundTrip(t *testing.T) {
	suite := protocolsvc.DefaultSuite
	want := protocolsvc.HelloResponse{
		RequestID:       protocolsvc.HandshakeInitiate,
		Offset:          0,
		Status:          protocolsvc.Status(0),
		ProtocolVersion: protocolsvc.ProtocolVersion,
		SuiteID:         suite.ID,
		ServerEntity:    ids.New(),
		ServerPublicKey: [32]byte{1, 2, 3},
		ServerKeyNonce:  bytes.Repeat([]byte{0xcc}, suite.NonceSize),
		ServerChallenge: bytes.Repeat([]byte{0xdd}, suite.NonceSize),
		MAC:             [32]byte{9, 9, 9},
	}

	got, err := protocolsvc.DecodeHelloResponse(want.Encode(), suite)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestID != want.RequestID || got.ServerEntity != want.ServerEntity ||
		got.ServerPublicKey != want.ServerPublicKey || got.MAC != want.MAC {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if !bytes.Equal(got.RecordBytes(), want.RecordBytes()) {
		t.Fatalf("record bytes mismatch")
	}
}

func TestEncodeAckDecodeAckRoundTrip(t *testing.T) {
	if err := protocolsvc.DecodeAck(protocolsvc.EncodeAck()); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
}

func TestDecodeAckRejectsWrongRequestID(t *testing.T) {
	bad := []byte{0, 0, 0, 99}
	if err := protocolsvc.DecodeAck(bad); err == nil {
		t.Fatal("expected an error for a bad ack request-id")
	}
}
