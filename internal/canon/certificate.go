// Package canon implements the canonization pipeline of §4.5: the
// block-certificate byte layout and the timer-driven state machine that
// drains the pending transaction queue into blocks. The certificate parser
// and attestor are explicitly out of scope (spec.md non-goals); this
// package only produces and reads the certificate's byte layout, it never
// validates a signature.
package canon

import (
	"encoding/binary"

	"lukechampine.com/blake3"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/ids"
	"synnergy-network/internal/wire"
)

// SignatureSize is the fixed width of a certificate's trailing signature
// field. Signing and verification are out of scope; the pipeline writes
// zero bytes here and the data service never inspects them.
const SignatureSize = 64

// headerSize is the byte length of every fixed-type/fixed-size field
// §4.5's "Block assembly" lists before the variable-length transaction
// list: version(4) timestamp(8) suite-id(2) cert-type(16) block-id(16)
// previous-block-id(16) previous-block-hash(32, a blake3-256 digest)
// height(8) signer-id(16) signature(64).
const headerSize = 4 + 8 + 2 + 16 + 16 + 16 + 32 + 8 + 16 + SignatureSize

// Header holds a block certificate's fixed fields.
type Header struct {
	Version           uint32
	Timestamp         uint64
	SuiteID           uint16
	CertType          ids.ID
	BlockID           ids.ID
	PreviousBlockID   ids.ID
	PreviousBlockHash [32]byte
	Height            uint64
	SignerID          ids.ID
	Signature         [SignatureSize]byte
}

// HashPreviousBlock computes the blake3-256 digest of the previous block's
// own certificate bytes, the value §4.5's "previous-block-hash" field
// carries forward. The root block has no certificate, so its successor
// hashes an empty input.
func HashPreviousBlock(prevCert []byte) [32]byte {
	return blake3.Sum256(prevCert)
}

// TxnEntry is one transaction referenced by a block certificate: the
// transaction id it canonizes plus a verbatim copy of that transaction's
// own certificate bytes.
type TxnEntry struct {
	TxnID ids.ID
	Cert  []byte
}

// BuildCert assembles a block certificate: header fields in order, then for
// each entry a framed (txn-id || cert) tuple, matching §4.5's "append the
// transaction certificate as a wrapped tuple" — "wrapped" here means framed
// with internal/wire's raw-data frame so the parser can recover each
// entry's boundary without a separate count field.
func BuildCert(h Header, entries []TxnEntry) ([]byte, error) {
	out := make([]byte, 0, headerSize+len(entries)*32)
	out = appendHeader(out, h)
	for _, e := range entries {
		tuple := make([]byte, 0, 16+len(e.Cert))
		tuple = append(tuple, e.TxnID.Bytes()...)
		tuple = append(tuple, e.Cert...)
		framed, err := wire.EncodeData(tuple)
		if err != nil {
			return nil, agenterr.Wrap(err, "frame transaction entry")
		}
		out = append(out, framed...)
	}
	return out, nil
}

func appendHeader(out []byte, h Header) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint32(tmp[:4], h.Version)
	out = append(out, tmp[:4]...)
	binary.BigEndian.PutUint64(tmp[:8], h.Timestamp)
	out = append(out, tmp[:8]...)
	binary.BigEndian.PutUint16(tmp[:2], h.SuiteID)
	out = append(out, tmp[:2]...)
	out = append(out, h.CertType.Bytes()...)
	out = append(out, h.BlockID.Bytes()...)
	out = append(out, h.PreviousBlockID.Bytes()...)
	out = append(out, h.PreviousBlockHash[:]...)
	binary.BigEndian.PutUint64(tmp[:8], h.Height)
	out = append(out, tmp[:8]...)
	out = append(out, h.SignerID.Bytes()...)
	out = append(out, h.Signature[:]...)
	return out
}

// ParseCert is BuildCert's inverse: it recovers the header and every
// referenced transaction entry, which is how the data service discovers
// which pending transactions a block_make call canonizes (§6's wire table
// gives block_make's request body as just block-id and cert bytes — the
// referenced transaction ids live inside the cert, not a separate field).
func ParseCert(buf []byte) (Header, []TxnEntry, error) {
	if len(buf) < headerSize {
		return Header{}, nil, agenterr.New(agenterr.PacketBadSize, "block cert shorter than fixed header (%d < %d)", len(buf), headerSize)
	}
	h, off, err := parseHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}

	var entries []TxnEntry
	for off < len(buf) {
		tuple, consumed, err := wire.DecodeData(buf[off:])
		if err != nil {
			return Header{}, nil, agenterr.Wrap(err, "parse transaction entry")
		}
		if len(tuple) < 16 {
			return Header{}, nil, agenterr.New(agenterr.PacketBadSize, "transaction entry shorter than a txn id")
		}
		txnID, ok := ids.FromBytes(tuple[:16])
		if !ok {
			return Header{}, nil, agenterr.New(agenterr.PacketBadSize, "malformed txn id in transaction entry")
		}
		cert := make([]byte, len(tuple)-16)
		copy(cert, tuple[16:])
		entries = append(entries, TxnEntry{TxnID: txnID, Cert: cert})
		off += consumed
	}
	return h, entries, nil
}

func parseHeader(buf []byte) (Header, int, error) {
	var h Header
	off := 0
	h.Version = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.Timestamp = binary.BigEndian.Uint64(buf[off:])
	off += 8
	h.SuiteID = binary.BigEndian.Uint16(buf[off:])
	off += 2
	certType, ok := ids.FromBytes(buf[off : off+16])
	if !ok {
		return h, 0, agenterr.New(agenterr.PacketBadSize, "malformed cert-type id")
	}
	h.CertType = certType
	off += 16
	blockID, ok := ids.FromBytes(buf[off : off+16])
	if !ok {
		return h, 0, agenterr.New(agenterr.PacketBadSize, "malformed block id")
	}
	h.BlockID = blockID
	off += 16
	prevID, ok := ids.FromBytes(buf[off : off+16])
	if !ok {
		return h, 0, agenterr.New(agenterr.PacketBadSize, "malformed previous-block id")
	}
	h.PreviousBlockID = prevID
	off += 16
	copy(h.PreviousBlockHash[:], buf[off:off+32])
	off += 32
	h.Height = binary.BigEndian.Uint64(buf[off:])
	off += 8
	signerID, ok := ids.FromBytes(buf[off : off+16])
	if !ok {
		return h, 0, agenterr.New(agenterr.PacketBadSize, "malformed signer id")
	}
	h.SignerID = signerID
	off += 16
	copy(h.Signature[:], buf[off:off+SignatureSize])
	off += SignatureSize
	return h, off, nil
}
