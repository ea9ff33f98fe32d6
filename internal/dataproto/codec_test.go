package dataproto

import (
	"bytes"
	"testing"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/ids"
)

func TestRequestHeaderRoundTripNonRoot(t *testing.T) {
	body := ArtifactReadRequest{ArtifactID: ids.New()}.Encode()
	wire := EncodeRequest(MethodArtifactRead, 7, body)

	got, err := DecodeRequestHeader(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Method != MethodArtifactRead || !got.HasChildIdx || got.ChildIndex != 7 {
		t.Fatalf("unexpected header: %+v", got)
	}
	if !bytes.Equal(got.Body, body) {
		t.Fatalf("body mismatch: %x != %x", got.Body, body)
	}
}

func TestRequestHeaderRoundTripRootOmitsChildIndex(t *testing.T) {
	body := RootContextInitRequest{DatabasePath: "/var/lib/agentd"}.Encode()
	wire := EncodeRootRequest(MethodRootContextInit, body)

	got, err := DecodeRequestHeader(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Method != MethodRootContextInit || got.HasChildIdx {
		t.Fatalf("unexpected header: %+v", got)
	}
	if string(got.Body) != "/var/lib/agentd" {
		t.Fatalf("body = %q", got.Body)
	}
}

func TestResponseHeaderRoundTrip(t *testing.T) {
	body := BlockIDResponse{BlockID: ids.New()}.Encode()
	wire := EncodeResponse(MethodBlockIDLatestGet, 3, StatusSuccess, body)

	got, err := DecodeResponseHeader(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Method != MethodBlockIDLatestGet || got.Offset != 3 || got.Status != StatusSuccess {
		t.Fatalf("unexpected header: %+v", got)
	}
	if !bytes.Equal(got.Body, body) {
		t.Fatalf("body mismatch")
	}
}

func TestDecodeRequestHeaderTooShortIsInvalidSize(t *testing.T) {
	if _, err := DecodeRequestHeader([]byte{0, 0}); agenterr.CodeOf(err) != agenterr.RequestPacketInvalidSize {
		t.Fatalf("expected RequestPacketInvalidSize, got %v", err)
	}
	// A non-root method id with no room for the child-index word.
	short := make([]byte, 4)
	short[3] = byte(MethodArtifactRead)
	if _, err := DecodeRequestHeader(short); agenterr.CodeOf(err) != agenterr.RequestPacketInvalidSize {
		t.Fatalf("expected RequestPacketInvalidSize, got %v", err)
	}
}

func TestStatusErrorRoundTrip(t *testing.T) {
	for status, code := range statusToCode {
		got := StatusFromError(agenterr.Sentinel(code))
		if got != status {
			t.Fatalf("StatusFromError(%v) = %v, want %v", code, got, status)
		}
	}
	if StatusFromError(nil) != StatusSuccess {
		t.Fatalf("StatusFromError(nil) != StatusSuccess")
	}
	if ErrorFromStatus(StatusSuccess) != nil {
		t.Fatalf("ErrorFromStatus(StatusSuccess) != nil")
	}
}

func TestChildContextCreateBodyRoundTrip(t *testing.T) {
	req := ChildContextCreateRequest{Caps: CapBlockRead | CapBlockWrite}
	got, err := DecodeChildContextCreateRequest(req.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Caps != req.Caps {
		t.Fatalf("caps = %v, want %v", got.Caps, req.Caps)
	}

	resp := ChildContextCreateResponse{ChildIndex: 42}
	gotResp, err := DecodeChildContextCreateResponse(resp.Encode())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if gotResp.ChildIndex != 42 {
		t.Fatalf("child index = %d, want 42", gotResp.ChildIndex)
	}
}

func TestGlobalSettingSetRoundTrip(t *testing.T) {
	req := GlobalSettingSetRequest{Key: "block_max_milliseconds", Value: []byte{1, 2, 3, 4}}
	got, err := DecodeGlobalSettingSetRequest(req.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != req.Key || !bytes.Equal(got.Value, req.Value) {
		t.Fatalf("got %+v, want %+v", got, req)
	}
}

func TestArtifactReadResponseRoundTrip(t *testing.T) {
	want := ArtifactReadResponse{
		ArtifactID:   ids.New(),
		TxnFirst:     ids.New(),
		TxnLatest:    ids.New(),
		HeightFirst:  1,
		HeightLatest: 9,
		StateLatest:  2,
	}
	got, err := DecodeArtifactReadResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTransactionSubmitRoundTrip(t *testing.T) {
	want := TransactionSubmitRequest{TxnID: ids.New(), ArtifactID: ids.New(), Cert: []byte("cert-bytes")}
	got, err := DecodeTransactionSubmitRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TxnID != want.TxnID || got.ArtifactID != want.ArtifactID || !bytes.Equal(got.Cert, want.Cert) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPendingTransactionRecordRoundTrip(t *testing.T) {
	want := PendingTransactionRecord{
		Key: ids.New(), Prev: ids.Nil, Next: ids.QueueEnd,
		ArtifactID: ids.New(), State: TxnStateAttested, Cert: []byte("cert"),
	}
	got, err := DecodePendingTransactionRecord(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != want.Key || got.Prev != want.Prev || got.Next != want.Next ||
		got.ArtifactID != want.ArtifactID || got.State != want.State || !bytes.Equal(got.Cert, want.Cert) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCanonizedTransactionRecordRoundTrip(t *testing.T) {
	want := CanonizedTransactionRecord{
		Key: ids.New(), Prev: ids.Nil, Next: ids.QueueEnd,
		ArtifactID: ids.New(), BlockID: ids.New(), NetTxnState: 3, Cert: []byte("cert"),
	}
	got, err := DecodeCanonizedTransactionRecord(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != want.Key || got.Prev != want.Prev || got.Next != want.Next ||
		got.ArtifactID != want.ArtifactID || got.BlockID != want.BlockID ||
		got.NetTxnState != want.NetTxnState || !bytes.Equal(got.Cert, want.Cert) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestBlockReadRoundTrip(t *testing.T) {
	want := BlockReadResponse{
		BlockID: ids.New(), Prev: ids.Nil, Next: ids.QueueEnd, FirstTxn: ids.New(),
		Height: 12, Cert: []byte("block-cert"),
	}
	got, err := DecodeBlockReadResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BlockID != want.BlockID || got.Height != want.Height || !bytes.Equal(got.Cert, want.Cert) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestBlockMakeRoundTrip(t *testing.T) {
	want := BlockMakeRequest{BlockID: ids.New(), Cert: []byte("cert")}
	got, err := DecodeBlockMakeRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BlockID != want.BlockID || !bytes.Equal(got.Cert, want.Cert) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestBlockIDByHeightRoundTrip(t *testing.T) {
	want := BlockIDByHeightReadRequest{Height: 99}
	got, err := DecodeBlockIDByHeightReadRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCapabilityIntersectAndHas(t *testing.T) {
	parent := CapBlockRead | CapBlockWrite | CapArtifactRead
	requested := CapBlockWrite | CapTransactionRead
	got := parent.Intersect(requested)
	if got != CapBlockWrite {
		t.Fatalf("intersect = %v, want CapBlockWrite", got)
	}
	if !parent.Has(CapBlockRead) {
		t.Fatalf("parent should have CapBlockRead")
	}
	if parent.Has(CapTransactionRead) {
		t.Fatalf("parent should not have CapTransactionRead")
	}
}
