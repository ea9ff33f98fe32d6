package randomsvc

import (
	"bytes"
	"testing"

	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/randomproto"
)

func TestGenerateReturnsRequestedLength(t *testing.T) {
	s := New()
	buf, err := s.Generate(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(buf) != 32 {
		t.Fatalf("len = %d, want 32", len(buf))
	}
}

func TestGenerateRejectsOversizedRequest(t *testing.T) {
	s := New()
	if _, err := s.Generate(MaxRequestLength + 1); err == nil {
		t.Fatalf("expected oversized request to fail")
	}
}

func TestHandleRequestRoundTrip(t *testing.T) {
	s := New()
	req := randomproto.EncodeRequest(9, 16)
	respWire := s.HandleRequest(req)
	resp, err := randomproto.DecodeResponse(respWire)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Offset != 9 || resp.Status != dataproto.StatusSuccess || len(resp.Entropy) != 16 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleRequestMalformedYieldsErrorStatus(t *testing.T) {
	s := New()
	respWire := s.HandleRequest([]byte{0, 0, 0, 1})
	resp, err := randomproto.DecodeResponse(respWire)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status == dataproto.StatusSuccess {
		t.Fatalf("expected a failure status for a too-short request")
	}
	if len(resp.Entropy) != 0 {
		t.Fatalf("expected no entropy on failure, got %d bytes", len(resp.Entropy))
	}
}

func TestTwoGenerateCallsDiffer(t *testing.T) {
	s := New()
	a, _ := s.Generate(32)
	b, _ := s.Generate(32)
	if bytes.Equal(a, b) {
		t.Fatalf("two independent generate calls returned identical bytes")
	}
}
