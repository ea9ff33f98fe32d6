package canon

import (
	"bytes"
	"testing"

	"synnergy-network/internal/ids"
)

func TestBuildParseCertRoundTrip(t *testing.T) {
	h := Header{
		Version:         1,
		Timestamp:       1700000000,
		SuiteID:         1,
		CertType:        ids.New(),
		BlockID:         ids.New(),
		PreviousBlockID: ids.RootBlock,
		Height:          1,
		SignerID:        ids.New(),
	}
	copy(h.PreviousBlockHash[:], bytes.Repeat([]byte{0xaa}, 32))

	entries := []TxnEntry{
		{TxnID: ids.New(), Cert: []byte("first-cert")},
		{TxnID: ids.New(), Cert: []byte("second-cert-longer")},
	}

	buf, err := BuildCert(h, entries)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	gotHeader, gotEntries, err := ParseCert(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if gotHeader.Version != h.Version || gotHeader.Timestamp != h.Timestamp ||
		gotHeader.SuiteID != h.SuiteID || gotHeader.CertType != h.CertType ||
		gotHeader.BlockID != h.BlockID || gotHeader.PreviousBlockID != h.PreviousBlockID ||
		gotHeader.Height != h.Height || gotHeader.SignerID != h.SignerID ||
		gotHeader.PreviousBlockHash != h.PreviousBlockHash {
		t.Fatalf("header mismatch: got %+v, want %+v", gotHeader, h)
	}
	if len(gotEntries) != len(entries) {
		t.Fatalf("entry count = %d, want %d", len(gotEntries), len(entries))
	}
	for i, e := range entries {
		if gotEntries[i].TxnID != e.TxnID || !bytes.Equal(gotEntries[i].Cert, e.Cert) {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, gotEntries[i], e)
		}
	}
}

func TestParseCertEmptyEntryList(t *testing.T) {
	h := Header{Version: 1, BlockID: ids.New(), PreviousBlockID: ids.RootBlock, Height: 1}
	buf, err := BuildCert(h, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, entries, err := ParseCert(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestParseCertRejectsTruncatedHeader(t *testing.T) {
	if _, _, err := ParseCert(make([]byte, headerSize-1)); err == nil {
		t.Fatalf("expected a truncated header to fail to parse")
	}
}
