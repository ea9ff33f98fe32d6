package randomproto

import (
	"bytes"
	"testing"

	"synnergy-network/internal/agenterr"
)

func TestRequestRoundTrip(t *testing.T) {
	wire := EncodeRequest(5, 32)
	got, err := DecodeRequest(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Offset != 5 || got.Length != 32 {
		t.Fatalf("got %+v", got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	entropy := bytes.Repeat([]byte{0xab}, 32)
	wire := EncodeResponse(5, StatusSuccess, entropy)
	got, err := DecodeResponse(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Offset != 5 || got.Status != StatusSuccess || !bytes.Equal(got.Entropy, entropy) {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeRequestRejectsUnknownMethod(t *testing.T) {
	wire := EncodeRequest(0, 0)
	wire[3] = 0xff
	if _, err := DecodeRequest(wire); agenterr.CodeOf(err) != agenterr.MalformedRequest {
		t.Fatalf("expected MalformedRequest, got %v", err)
	}
}

func TestDecodeRequestTooShort(t *testing.T) {
	if _, err := DecodeRequest([]byte{0, 0, 0, 1}); agenterr.CodeOf(err) != agenterr.RequestPacketInvalidSize {
		t.Fatalf("expected RequestPacketInvalidSize, got %v", err)
	}
}
